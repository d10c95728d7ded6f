package models

import "time"

// AuthorRef is the compact author form embedded in content items.
type AuthorRef struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// ContentItem is a unit of content to which metrics and events attach.
// Rows are unique per (org, url, type).
type ContentItem struct {
	ID          int64          `json:"id" db:"id"`
	OrgID       int64          `json:"org_id" db:"org_id"`
	RecipeID    *int64         `json:"recipe_id" db:"recipe_id"`
	URL         string         `json:"url" db:"url"`
	Domain      string         `json:"domain" db:"domain"`
	Type        string         `json:"type" db:"type"`
	Provenance  string         `json:"provenance" db:"provenance"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	Body        string         `json:"body,omitempty" db:"body"`
	SiteName    string         `json:"site_name" db:"site_name"`
	Favicon     string         `json:"favicon" db:"favicon"`
	ImgURL      string         `json:"img_url" db:"img_url"`
	Meta        map[string]any `json:"meta" db:"-"`
	Created     time.Time      `json:"created" db:"created"`
	Updated     time.Time      `json:"updated" db:"updated"`

	Authors []AuthorRef `json:"authors" db:"-"`
	TagIDs  []int64     `json:"tag_ids" db:"-"`
}

// AuthorIDs returns the ids of the item's authors.
func (c ContentItem) AuthorIDs() []int64 {
	ids := make([]int64, len(c.Authors))
	for i, a := range c.Authors {
		ids[i] = a.ID
	}
	return ids
}
