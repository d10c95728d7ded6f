package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/models"
)

// Org returns an org by id.
func (o ops) Org(ctx context.Context, id int64) (*models.Org, error) {
	var org models.Org
	err := sqlx.GetContext(ctx, o.q, &org, `SELECT id, name, slug, created FROM orgs WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err, "org %d does not exist", id)
	}
	return &org, nil
}

// OrgBySlug returns an org by slug.
func (o ops) OrgBySlug(ctx context.Context, slug string) (*models.Org, error) {
	var org models.Org
	err := sqlx.GetContext(ctx, o.q, &org, `SELECT id, name, slug, created FROM orgs WHERE slug = ?`, slug)
	if err != nil {
		return nil, notFound(err, "org %q does not exist", slug)
	}
	return &org, nil
}

// Tags returns the org's tags among ids.
func (o ops) Tags(ctx context.Context, orgID int64, ids []int64) ([]models.Tag, error) {
	var tags []models.Tag
	err := sqlx.SelectContext(ctx, o.q, &tags, `
		SELECT id, org_id, name, slug, type, category, level, color, created, updated
		FROM tags WHERE org_id = ? AND id IN (SELECT value FROM json_each(?))
		ORDER BY id`, orgID, idSet(ids))
	if err != nil {
		return nil, fmt.Errorf("store: tags: %w", err)
	}
	return tags, nil
}

// Tag returns one tag of the org.
func (o ops) Tag(ctx context.Context, orgID, id int64) (*models.Tag, error) {
	tags, err := o.Tags(ctx, orgID, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, apperr.NotFound("tag %d does not exist", id)
	}
	return &tags[0], nil
}

// Things returns the org's things among ids.
func (o ops) Things(ctx context.Context, orgID int64, ids []int64) ([]models.Thing, error) {
	var things []models.Thing
	err := sqlx.SelectContext(ctx, o.q, &things, `
		SELECT id, org_id, url, title, created
		FROM things WHERE org_id = ? AND id IN (SELECT value FROM json_each(?))
		ORDER BY id`, orgID, idSet(ids))
	if err != nil {
		return nil, fmt.Errorf("store: things: %w", err)
	}
	return things, nil
}

// Thing returns one thing of the org.
func (o ops) Thing(ctx context.Context, orgID, id int64) (*models.Thing, error) {
	things, err := o.Things(ctx, orgID, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(things) == 0 {
		return nil, apperr.NotFound("thing %d does not exist", id)
	}
	return &things[0], nil
}

// CreateOrg inserts an org.
func (o ops) CreateOrg(ctx context.Context, org *models.Org) error {
	org.Created = now()
	res, err := o.q.ExecContext(ctx, `INSERT INTO orgs (name, slug, created) VALUES (?, ?, ?)`, org.Name, org.Slug, org.Created)
	if err != nil {
		return fmt.Errorf("store: insert org: %w", err)
	}
	org.ID, err = res.LastInsertId()
	return err
}

// CreateTag inserts a tag.
func (o ops) CreateTag(ctx context.Context, t *models.Tag) error {
	t.Created = now()
	t.Updated = t.Created
	if t.Slug == "" {
		t.Slug = t.Name
	}
	res, err := o.q.ExecContext(ctx, `
		INSERT INTO tags (org_id, name, slug, type, category, level, color, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.OrgID, t.Name, t.Slug, t.Type, t.Category, t.Level, t.Color, t.Created, t.Updated)
	if err != nil {
		return fmt.Errorf("store: insert tag: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

// CreateThing inserts a thing.
func (o ops) CreateThing(ctx context.Context, t *models.Thing) error {
	t.Created = now()
	res, err := o.q.ExecContext(ctx, `INSERT INTO things (org_id, url, title, created) VALUES (?, ?, ?, ?)`,
		t.OrgID, t.URL, t.Title, t.Created)
	if err != nil {
		return fmt.Errorf("store: insert thing: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

// CreateAuthor inserts an author.
func (o ops) CreateAuthor(ctx context.Context, a *models.Author) error {
	a.Created = now()
	res, err := o.q.ExecContext(ctx, `INSERT INTO authors (org_id, name, img_url, created) VALUES (?, ?, ?, ?)`,
		a.OrgID, a.Name, a.ImgURL, a.Created)
	if err != nil {
		return fmt.Errorf("store: insert author: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// CreateSousChef inserts a sous chef.
func (o ops) CreateSousChef(ctx context.Context, sc *models.SousChef) error {
	res, err := o.q.ExecContext(ctx, `INSERT INTO sous_chefs (org_id, name, description) VALUES (?, ?, ?)`,
		sc.OrgID, sc.Name, sc.Description)
	if err != nil {
		return fmt.Errorf("store: insert sous chef: %w", err)
	}
	sc.ID, err = res.LastInsertId()
	return err
}

// CreateTask inserts a task.
func (o ops) CreateTask(ctx context.Context, t *models.Task) error {
	res, err := o.q.ExecContext(ctx, `INSERT INTO tasks (org_id, name) VALUES (?, ?)`, t.OrgID, t.Name)
	if err != nil {
		return fmt.Errorf("store: insert task: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

// CreateRecipe inserts a recipe.
func (o ops) CreateRecipe(ctx context.Context, r *models.Recipe) error {
	r.Created = now()
	res, err := o.q.ExecContext(ctx, `INSERT INTO recipes (org_id, task_id, sous_chef_id, name, created) VALUES (?, ?, ?, ?, ?)`,
		r.OrgID, r.TaskID, r.SousChefID, r.Name, r.Created)
	if err != nil {
		return fmt.Errorf("store: insert recipe: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}
