package models

import "time"

// Query is a tracked search/AI prompt the brand wants visibility for.
type Query struct {
	ID          string    `json:"id"`
	BrandID     string    `json:"brandId"`
	Text        string    `json:"text"`
	FunnelStage string    `json:"funnelStage,omitempty"`
	Vertical    string    `json:"vertical,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// QueryResult is one observed ranking/citation of the brand for a query.
type QueryResult struct {
	ID         string    `json:"id"`
	QueryID    string    `json:"queryId"`
	Engine     string    `json:"engine"`
	Position   int       `json:"position"`
	Cited      bool      `json:"cited"`
	CapturedAt time.Time `json:"capturedAt"`
}
