package models

import "time"

// AuthToken is a per-org, per-provider credential blob. At most one exists
// for each (org, name) pair.
type AuthToken struct {
	ID      int64          `json:"id" db:"id"`
	OrgID   int64          `json:"org_id" db:"org_id"`
	Name    string         `json:"name" db:"name"`
	Value   map[string]any `json:"value" db:"-"`
	Created time.Time      `json:"created" db:"created"`
	Updated time.Time      `json:"updated" db:"updated"`
}
