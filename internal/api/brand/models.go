package brand

import "encoding/json"

// updateBrandRequest carries the PATCH /brands/:id body. Nil fields are
// left untouched.
type updateBrandRequest struct {
	Name        *string `json:"name"`
	Domain      *string `json:"domain"`
	AutoPublish *bool   `json:"autoPublish"`
}

// updateContextRequest replaces one named top-level section of the brand
// context blob.
type updateContextRequest struct {
	Section string          `json:"section"`
	Value   json.RawMessage `json:"value"`
}
