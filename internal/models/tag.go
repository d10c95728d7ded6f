package models

import "time"

// Tag annotates content items (subject tags) or approved events (impact
// tags). Category and level are only meaningful for impact tags.
type Tag struct {
	ID       int64     `json:"id" db:"id"`
	OrgID    int64     `json:"org_id" db:"org_id"`
	Name     string    `json:"name" db:"name"`
	Slug     string    `json:"slug" db:"slug"`
	Type     string    `json:"type" db:"type"`
	Category *string   `json:"category" db:"category"`
	Level    *string   `json:"level" db:"level"`
	Color    string    `json:"color" db:"color"`
	Created  time.Time `json:"created" db:"created"`
	Updated  time.Time `json:"updated" db:"updated"`
}

// IsImpact reports whether the tag may be attached to events.
func (t Tag) IsImpact() bool { return t.Type == TagTypeImpact }
