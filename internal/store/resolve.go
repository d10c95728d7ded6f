package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func (o ops) ids(ctx context.Context, op, query string, args ...any) ([]int64, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", op, err)
	}
	var out []int64
	if err := sqlx.SelectContext(ctx, o.q, &out, query, args...); err != nil {
		return nil, fmt.Errorf("store: %s: %w", op, err)
	}
	return out, nil
}

// TagIDsByCategories returns the org's impact tag ids in any of categories.
func (o ops) TagIDsByCategories(ctx context.Context, orgID int64, categories []string) ([]int64, error) {
	return o.ids(ctx, "tag ids by category",
		`SELECT id FROM tags WHERE org_id = ? AND type = 'impact' AND category IN (?)`, orgID, categories)
}

// TagIDsByLevels returns the org's impact tag ids in any of levels.
func (o ops) TagIDsByLevels(ctx context.Context, orgID int64, levels []string) ([]int64, error) {
	return o.ids(ctx, "tag ids by level",
		`SELECT id FROM tags WHERE org_id = ? AND type = 'impact' AND level IN (?)`, orgID, levels)
}

// EventIDsByCategories returns ids of the org's events carrying an impact
// tag in any of categories.
func (o ops) EventIDsByCategories(ctx context.Context, orgID int64, categories []string) ([]int64, error) {
	return o.ids(ctx, "event ids by category", `
		SELECT DISTINCT et.event_id FROM events_tags et
		JOIN tags t ON t.id = et.tag_id
		WHERE t.org_id = ? AND t.type = 'impact' AND t.category IN (?)`, orgID, categories)
}

// EventIDsByLevels returns ids of the org's events carrying an impact tag in
// any of levels.
func (o ops) EventIDsByLevels(ctx context.Context, orgID int64, levels []string) ([]int64, error) {
	return o.ids(ctx, "event ids by level", `
		SELECT DISTINCT et.event_id FROM events_tags et
		JOIN tags t ON t.id = et.tag_id
		WHERE t.org_id = ? AND t.type = 'impact' AND t.level IN (?)`, orgID, levels)
}

// RecipeIDsBySousChefs returns ids of the org's recipes built from any of
// the named sous chefs.
func (o ops) RecipeIDsBySousChefs(ctx context.Context, orgID int64, names []string) ([]int64, error) {
	return o.ids(ctx, "recipe ids by sous chef", `
		SELECT r.id FROM recipes r JOIN sous_chefs sc ON sc.id = r.sous_chef_id
		WHERE r.org_id = ? AND sc.name IN (?)`, orgID, names)
}

// RecipeIDsByTasks returns ids of the org's recipes run under any of the
// named tasks.
func (o ops) RecipeIDsByTasks(ctx context.Context, orgID int64, names []string) ([]int64, error) {
	return o.ids(ctx, "recipe ids by task", `
		SELECT r.id FROM recipes r JOIN tasks tk ON tk.id = r.task_id
		WHERE r.org_id = ? AND tk.name IN (?)`, orgID, names)
}
