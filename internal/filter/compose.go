package filter

import (
	"context"

	"github.com/starford/lynx/internal/models"
	"github.com/starford/lynx/internal/sqlq"
)

// Resolver turns indirect filters into id sets and full-text queries into
// restrictions. *store.DB implements it.
type Resolver interface {
	TagIDsByCategories(ctx context.Context, orgID int64, categories []string) ([]int64, error)
	TagIDsByLevels(ctx context.Context, orgID int64, levels []string) ([]int64, error)
	EventIDsByCategories(ctx context.Context, orgID int64, categories []string) ([]int64, error)
	EventIDsByLevels(ctx context.Context, orgID int64, levels []string) ([]int64, error)
	RecipeIDsBySousChefs(ctx context.Context, orgID int64, names []string) ([]int64, error)
	RecipeIDsByTasks(ctx context.Context, orgID int64, names []string) ([]int64, error)
	ContentTextSearch(alias, vector, query string) (where, rank sqlq.Expr)
	EventTextSearch(alias, query string) (where, rank sqlq.Expr)
}

type resolveFunc func(ctx context.Context, orgID int64, names []string) ([]int64, error)

// ContentQuery restricts content items by p and orders them. It also returns
// the ids of events matched by category/level filters (included minus
// excluded), for event-derived facets.
//
// Exclusion never depends on inclusion: each excluded category or level
// resolves its own event set and drops content linked to any of them.
func ContentQuery(ctx context.Context, r Resolver, p ContentParams) (*sqlq.Select, []int64, error) {
	sel := sqlq.From(ContentFrom).Where("c.org_id = ?", p.OrgID)

	var rank sqlq.Expr
	if p.Query != "" {
		var where sqlq.Expr
		where, rank = r.ContentTextSearch(ContentAlias, p.Vector, p.Query)
		sel.WhereExpr(where)
	}
	if p.Type != "" && p.Type != models.All {
		sel.Where("c.type = ?", p.Type)
	}
	if p.Provenance != "" {
		sel.Where("c.provenance = ?", p.Provenance)
	}
	if p.URL != "" {
		sel.Where("c.url = ?", p.URL)
	}
	if p.URLRegex != "" {
		sel.Where("c.url REGEXP ?", p.URLRegex)
	}
	if p.Domain != "" {
		sel.Where("c.domain = ?", p.Domain)
	}
	applyDates(sel, ContentAlias, p.Dates)
	applyIDs(sel, "c.recipe_id", p.RecipeIDs)

	applyLinks(sel, "EXISTS (SELECT 1 FROM content_items_tags x WHERE x.content_item_id = c.id AND x.tag_id IN (?))", p.TagIDs)
	applyLinks(sel, "EXISTS (SELECT 1 FROM content_items_authors x WHERE x.content_item_id = c.id AND x.author_id IN (?))", p.AuthorIDs)

	var acc idAccumulator
	hasEvents := func(ids []int64) sqlq.Expr {
		return sqlq.E("EXISTS (SELECT 1 FROM content_items_events ce WHERE ce.content_item_id = c.id"+
			" AND ce.event_id IN (SELECT value FROM json_each(?)))", sqlq.IDSet(ids))
	}
	for _, f := range []struct {
		set     Set[string]
		resolve resolveFunc
	}{
		{p.Categories, r.EventIDsByCategories},
		{p.Levels, r.EventIDsByLevels},
	} {
		if err := applyResolved(ctx, sel, p.OrgID, f.set, f.resolve, hasEvents, &acc); err != nil {
			return nil, nil, err
		}
	}

	if err := applyRecipeNames(ctx, sel, "c.recipe_id", p.OrgID, p.SousChefs, r.RecipeIDsBySousChefs); err != nil {
		return nil, nil, err
	}
	if err := applyRecipeNames(ctx, sel, "c.recipe_id", p.OrgID, p.Tasks, r.RecipeIDsByTasks); err != nil {
		return nil, nil, err
	}

	applySort(sel, ContentColumns, ContentID, p.Sort, p.Query, rank)
	return sel, acc.ids(), nil
}

// EventQuery restricts events by p and orders them. Category and level
// filters resolve to impact tag ids.
func EventQuery(ctx context.Context, r Resolver, p EventParams) (*sqlq.Select, error) {
	sel := sqlq.From(EventFrom).Where("e.org_id = ?", p.OrgID)

	var rank sqlq.Expr
	if p.Query != "" {
		var where sqlq.Expr
		where, rank = r.EventTextSearch(EventAlias, p.Query)
		sel.WhereExpr(where)
	}
	if p.Status != "" && p.Status != models.All {
		sel.Where("e.status = ?", p.Status)
	}
	applyDates(sel, EventAlias, p.Dates)
	applyIDs(sel, "e.recipe_id", p.RecipeIDs)

	applyLinks(sel, "EXISTS (SELECT 1 FROM events_tags x WHERE x.event_id = e.id AND x.tag_id IN (?))", p.TagIDs)
	applyLinks(sel, "EXISTS (SELECT 1 FROM things_events x WHERE x.event_id = e.id AND x.thing_id IN (?))", p.ThingIDs)

	hasTagSet := func(ids []int64) sqlq.Expr {
		return sqlq.E("EXISTS (SELECT 1 FROM events_tags x WHERE x.event_id = e.id"+
			" AND x.tag_id IN (SELECT value FROM json_each(?)))", sqlq.IDSet(ids))
	}
	for _, f := range []struct {
		set     Set[string]
		resolve resolveFunc
	}{
		{p.Categories, r.TagIDsByCategories},
		{p.Levels, r.TagIDsByLevels},
	} {
		if err := applyResolved(ctx, sel, p.OrgID, f.set, f.resolve, hasTagSet, nil); err != nil {
			return nil, err
		}
	}

	if err := applyRecipeNames(ctx, sel, "e.recipe_id", p.OrgID, p.SousChefs, r.RecipeIDsBySousChefs); err != nil {
		return nil, err
	}
	if err := applyRecipeNames(ctx, sel, "e.recipe_id", p.OrgID, p.Tasks, r.RecipeIDsByTasks); err != nil {
		return nil, err
	}

	applySort(sel, EventColumns, EventID, p.Sort, p.Query, rank)
	return sel, nil
}

func applyDates(sel *sqlq.Select, alias string, d Dates) {
	if d.CreatedAfter != nil {
		sel.Where(alias+".created >= ?", *d.CreatedAfter)
	}
	if d.CreatedBefore != nil {
		sel.Where(alias+".created <= ?", *d.CreatedBefore)
	}
	if d.UpdatedAfter != nil {
		sel.Where(alias+".updated >= ?", *d.UpdatedAfter)
	}
	if d.UpdatedBefore != nil {
		sel.Where(alias+".updated <= ?", *d.UpdatedBefore)
	}
}

// applyIDs filters a nullable foreign key column directly.
func applyIDs(sel *sqlq.Select, col string, s Set[int64]) {
	if len(s.Include) > 0 {
		sel.WhereExpr(sqlq.InIDs(col, s.Include))
	}
	if len(s.Exclude) > 0 {
		sel.WhereExpr(sqlq.NotInIDs(col, s.Exclude))
	}
}

// applyLinks filters through an association table; exists is an EXISTS
// clause with a single IN (?) placeholder.
func applyLinks(sel *sqlq.Select, exists string, s Set[int64]) {
	if len(s.Include) > 0 {
		sel.Where(exists, s.Include)
	}
	if len(s.Exclude) > 0 {
		sel.Where("NOT "+exists, s.Exclude)
	}
}

// applyResolved resolves names to an id set per side and restricts with has.
// An empty resolved include set matches nothing; an empty exclude set
// excludes nothing.
func applyResolved(ctx context.Context, sel *sqlq.Select, orgID int64, s Set[string], resolve resolveFunc, has func([]int64) sqlq.Expr, acc *idAccumulator) error {
	if len(s.Include) > 0 {
		ids, err := resolve(ctx, orgID, s.Include)
		if err != nil {
			return err
		}
		sel.WhereExpr(has(ids))
		if acc != nil {
			acc.include(ids)
		}
	}
	if len(s.Exclude) > 0 {
		ids, err := resolve(ctx, orgID, s.Exclude)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			e := has(ids)
			sel.WhereExpr(sqlq.E("NOT "+e.SQL, e.Args...))
		}
		if acc != nil {
			acc.exclude(ids)
		}
	}
	return nil
}

func applyRecipeNames(ctx context.Context, sel *sqlq.Select, col string, orgID int64, s Set[string], resolve resolveFunc) error {
	var ids Set[int64]
	var err error
	if len(s.Include) > 0 {
		if ids.Include, err = resolve(ctx, orgID, s.Include); err != nil {
			return err
		}
		// A name that resolves to no recipe still restricts.
		sel.WhereExpr(sqlq.InIDs(col, ids.Include))
	}
	if len(s.Exclude) > 0 {
		if ids.Exclude, err = resolve(ctx, orgID, s.Exclude); err != nil {
			return err
		}
		if len(ids.Exclude) > 0 {
			sel.WhereExpr(sqlq.NotInIDs(col, ids.Exclude))
		}
	}
	return nil
}

func applySort(sel *sqlq.Select, cols map[string]sqlq.Column, idCol string, s Sort, query string, rank sqlq.Expr) {
	if s.Field == Relevance {
		if query != "" && !rank.IsZero() {
			sel.OrderBy(rank.SQL, rank.Args...)
			sel.OrderBy(idCol + " DESC")
			return
		}
		s = Sort{Field: "created", Desc: true}
	}
	if s.Field == "" {
		s = Sort{Field: "created", Desc: true}
	}
	dir := " ASC"
	if s.Desc {
		dir = " DESC"
	}
	sel.OrderBy(cols[s.Field].Expr + dir)
	sel.OrderBy(idCol + dir)
}

// idAccumulator collects included ids minus excluded ids, keeping first-seen
// order.
type idAccumulator struct {
	order   []int64
	in, out map[int64]bool
}

func (a *idAccumulator) include(ids []int64) {
	if a.in == nil {
		a.in = map[int64]bool{}
	}
	for _, id := range ids {
		if !a.in[id] {
			a.in[id] = true
			a.order = append(a.order, id)
		}
	}
}

func (a *idAccumulator) exclude(ids []int64) {
	if a.out == nil {
		a.out = map[int64]bool{}
	}
	for _, id := range ids {
		a.out[id] = true
	}
}

func (a *idAccumulator) ids() []int64 {
	out := make([]int64, 0, len(a.order))
	for _, id := range a.order {
		if !a.out[id] {
			out = append(out, id)
		}
	}
	return out
}
