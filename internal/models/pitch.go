package models

import "time"

// PitchView is one logged view of a pitch-deck section.
type PitchView struct {
	ID       string    `json:"id"`
	DeckSlug string    `json:"deckSlug"`
	Email    string    `json:"email"`
	Section  string    `json:"section,omitempty"`
	ViewedAt time.Time `json:"viewedAt"`
}

// PitchAccess records a successful email-code verification.
type PitchAccess struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	GrantedAt time.Time `json:"grantedAt"`
}

// PrivacyAudit is one row of the privacy-subsystem audit trail.
type PrivacyAudit struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"orgId"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
