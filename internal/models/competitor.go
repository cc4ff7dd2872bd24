package models

import "time"

// Entity types assigned by competitor revalidation.
const (
	EntityCompetitor = "competitor"
	EntityPublisher  = "publisher"
	EntityAnalyst    = "analyst"
	EntityDirectory  = "directory"
	EntityUnknown    = "unknown"
)

// ValidEntityType reports whether the value is one of the known entity
// types.
func ValidEntityType(t string) bool {
	switch t {
	case EntityCompetitor, EntityPublisher, EntityAnalyst, EntityDirectory, EntityUnknown:
		return true
	}
	return false
}

// Competitor is a tracked competitor-like entity discovered for a brand.
type Competitor struct {
	ID         string    `json:"id"`
	BrandID    string    `json:"brandId"`
	Name       string    `json:"name"`
	Domain     string    `json:"domain"`
	EntityType string    `json:"entityType"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
