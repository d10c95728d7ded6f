package store

import (
	"context"
	"fmt"
	"strings"
)

// Grouping describes one grouped count over an entity id set.
type Grouping struct {
	// Keys are aliased select expressions, e.g. "t.id AS id".
	Keys []string
	// From is the joined source; it must expose the counted entity id as IDCol.
	From  string
	IDCol string
	// Where is an optional fixed restriction with its args.
	Where string
	Args  []any
}

// GroupCount counts distinct ids of the set per key and returns one map per
// group with the key aliases plus "count", largest groups first.
func (o ops) GroupCount(ctx context.Context, g Grouping, ids []int64) ([]map[string]any, error) {
	groupBy := make([]string, len(g.Keys))
	for i := range g.Keys {
		groupBy[i] = fmt.Sprint(i + 1)
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(g.Keys, ", "))
	b.WriteString(", count(DISTINCT " + g.IDCol + ") AS count FROM " + g.From)
	b.WriteString(" WHERE " + g.IDCol + " IN (SELECT value FROM json_each(?))")
	if g.Where != "" {
		b.WriteString(" AND (" + g.Where + ")")
	}
	b.WriteString(" GROUP BY " + strings.Join(groupBy, ", "))
	b.WriteString(" ORDER BY count DESC, 1")

	args := append([]any{idSet(ids)}, g.Args...)
	rows, err := o.q.QueryxContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: group count: %w", err)
	}
	defer rows.Close()

	out := []map[string]any{}
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("store: group count scan: %w", err)
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
