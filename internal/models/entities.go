package models

import "time"

// Org scopes every other entity.
type Org struct {
	ID      int64     `json:"id" db:"id"`
	Name    string    `json:"name" db:"name"`
	Slug    string    `json:"slug" db:"slug"`
	Created time.Time `json:"created" db:"created"`
}

// Thing is an entity an approved event can be linked to.
type Thing struct {
	ID      int64     `json:"id" db:"id"`
	OrgID   int64     `json:"org_id" db:"org_id"`
	URL     string    `json:"url" db:"url"`
	Title   string    `json:"title" db:"title"`
	Created time.Time `json:"created" db:"created"`
}

// Author writes content items.
type Author struct {
	ID      int64     `json:"id" db:"id"`
	OrgID   int64     `json:"org_id" db:"org_id"`
	Name    string    `json:"name" db:"name"`
	ImgURL  string    `json:"img_url" db:"img_url"`
	Created time.Time `json:"created" db:"created"`
}

// SousChef is a named processing template a recipe is built from.
type SousChef struct {
	ID          int64  `json:"id" db:"id"`
	OrgID       int64  `json:"org_id" db:"org_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
}

// Task groups recipes.
type Task struct {
	ID    int64  `json:"id" db:"id"`
	OrgID int64  `json:"org_id" db:"org_id"`
	Name  string `json:"name" db:"name"`
}

// Recipe is a configured sous chef run under a task. Content items and
// events record the recipe that produced them.
type Recipe struct {
	ID         int64     `json:"id" db:"id"`
	OrgID      int64     `json:"org_id" db:"org_id"`
	TaskID     *int64    `json:"task_id" db:"task_id"`
	SousChefID *int64    `json:"sous_chef_id" db:"sous_chef_id"`
	Name       string    `json:"name" db:"name"`
	Created    time.Time `json:"created" db:"created"`
}
