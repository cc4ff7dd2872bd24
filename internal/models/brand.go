package models

import "time"

// Brand is a tenant's represented company profile. The Context blob carries
// the semi-structured marketing profile inside the relational row.
type Brand struct {
	ID                 string       `json:"id"`
	OrgID              string       `json:"orgId"`
	Name               string       `json:"name"`
	Domain             string       `json:"domain"`
	AutoPublish        bool         `json:"autoPublish"`
	Context            BrandContext `json:"context"`
	ContextVersion     int          `json:"contextVersion"`
	ContextFilledScore int          `json:"contextFilledScore"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// BrandContext is the schema-on-read document stored in the brand's JSON
// context column.
type BrandContext struct {
	Summary     string                 `json:"summary,omitempty"`
	Personas    []Persona              `json:"personas,omitempty"`
	Offers      []Offer                `json:"offers,omitempty"`
	Theme       *Theme                 `json:"theme,omitempty"`
	Positioning map[string]interface{} `json:"positioning,omitempty"`
}

// Persona is a structured buyer profile used to tailor generated content.
type Persona struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Seniority  string   `json:"seniority,omitempty"`
	Function   string   `json:"function,omitempty"`
	Priorities []string `json:"priorities,omitempty"`
}

// Offer is a product or service line listed in the brand profile.
type Offer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Theme holds the brand's presentation settings.
type Theme struct {
	PrimaryColor string `json:"primaryColor,omitempty"`
	LogoURL      string `json:"logoUrl,omitempty"`
	Tone         string `json:"tone,omitempty"`
}
