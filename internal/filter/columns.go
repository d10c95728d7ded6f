package filter

import (
	"sort"

	"github.com/starford/lynx/internal/sqlq"
)

// Base tables and their id columns.
const (
	ContentFrom  = "content_items c"
	ContentAlias = "c"
	ContentID    = "c.id"

	EventFrom  = "events e"
	EventAlias = "e"
	EventID    = "e.id"
)

// Relevance is the pseudo sort field that ranks by full-text score.
const Relevance = "relevance"

// ContentColumns maps every selectable content item field to its column.
var ContentColumns = registry(ContentAlias, []sqlq.Column{
	{Name: "id"},
	{Name: "org_id"},
	{Name: "recipe_id"},
	{Name: "url"},
	{Name: "domain"},
	{Name: "type"},
	{Name: "provenance"},
	{Name: "title"},
	{Name: "description"},
	{Name: "body"},
	{Name: "site_name"},
	{Name: "favicon"},
	{Name: "img_url"},
	{Name: "meta", Kind: sqlq.KindJSON},
	{Name: "created", Kind: sqlq.KindTime},
	{Name: "updated", Kind: sqlq.KindTime},
})

// EventColumns maps every selectable event field to its column.
var EventColumns = registry(EventAlias, []sqlq.Column{
	{Name: "id"},
	{Name: "org_id"},
	{Name: "recipe_id"},
	{Name: "source_id"},
	{Name: "status"},
	{Name: "url"},
	{Name: "img_url"},
	{Name: "title"},
	{Name: "description"},
	{Name: "body"},
	{Name: "authors", Kind: sqlq.KindJSON},
	{Name: "meta", Kind: sqlq.KindJSON},
	{Name: "created", Kind: sqlq.KindTime},
	{Name: "updated", Kind: sqlq.KindTime},
})

func registry(alias string, cols []sqlq.Column) map[string]sqlq.Column {
	m := make(map[string]sqlq.Column, len(cols))
	for _, c := range cols {
		c.Expr = alias + "." + c.Name
		m[c.Name] = c
	}
	return m
}

// Names returns the registry's field names, sorted.
func Names(cols map[string]sqlq.Column) []string {
	out := make([]string, 0, len(cols))
	for name := range cols {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// sortable reports the fields a result set can be ordered by.
func sortable(cols map[string]sqlq.Column) []string {
	var out []string
	for _, name := range Names(cols) {
		if cols[name].Kind != sqlq.KindJSON {
			out = append(out, name)
		}
	}
	return out
}

// Project resolves requested field names to columns, in request order.
// Names must already be validated.
func Project(cols map[string]sqlq.Column, fields []string) []sqlq.Column {
	out := make([]sqlq.Column, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, cols[f])
	}
	return out
}
