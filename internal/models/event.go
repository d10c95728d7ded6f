package models

import "time"

// Event is an occurrence surfaced by a recipe (or entered manually) that a
// newsroom reviews. Only impact tags may be attached to it.
type Event struct {
	ID          int64          `json:"id" db:"id"`
	OrgID       int64          `json:"org_id" db:"org_id"`
	RecipeID    *int64         `json:"recipe_id" db:"recipe_id"`
	SourceID    string         `json:"source_id" db:"source_id"`
	Status      string         `json:"status" db:"status"`
	URL         string         `json:"url" db:"url"`
	ImgURL      string         `json:"img_url" db:"img_url"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	Body        string         `json:"body" db:"body"`
	Authors     []string       `json:"authors" db:"-"`
	Meta        map[string]any `json:"meta" db:"-"`
	Created     time.Time      `json:"created" db:"created"`
	Updated     time.Time      `json:"updated" db:"updated"`

	TagIDs         []int64 `json:"tag_ids" db:"-"`
	ThingIDs       []int64 `json:"thing_ids" db:"-"`
	ContentItemIDs []int64 `json:"content_item_ids" db:"-"`
}
