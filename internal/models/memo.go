package models

import "time"

// Memo statuses.
const (
	MemoDraft     = "draft"
	MemoPublished = "published"
)

// Memo is a generated content artifact published on behalf of a brand.
type Memo struct {
	ID          string     `json:"id"`
	BrandID     string     `json:"brandId"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Body        string     `json:"body,omitempty"`
	Status      string     `json:"status"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// MemoView is a logged public view of a memo.
type MemoView struct {
	ID       string    `json:"id"`
	MemoID   string    `json:"memoId"`
	ViewerIP string    `json:"viewerIp,omitempty"`
	Referrer string    `json:"referrer,omitempty"`
	ViewedAt time.Time `json:"viewedAt"`
}
