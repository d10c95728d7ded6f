package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/starford/lynx/internal/sqlq"
)

// ContentTextSearch returns the restriction and relevance ordering of a
// full-text query over one content vector ("all" spans every vector).
func (db *DB) ContentTextSearch(alias, vector, query string) (where, rank sqlq.Expr) {
	return contentText(alias, vector, query)
}

// EventTextSearch returns the restriction and relevance ordering of a
// full-text query over events.
func (db *DB) EventTextSearch(alias, query string) (where, rank sqlq.Expr) {
	return eventText(alias, query)
}

// Count returns the number of rows matched by sel.
func (o ops) Count(ctx context.Context, sel *sqlq.Select) (int, error) {
	query, args, err := sel.BuildCount()
	if err != nil {
		return 0, err
	}
	var n int
	if err := sqlx.GetContext(ctx, o.q, &n, query, args...); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// PageIDs returns idCol for one ordered page of sel.
func (o ops) PageIDs(ctx context.Context, sel *sqlq.Select, idCol string, limit, offset int) ([]int64, error) {
	query, args, err := sel.Build([]string{idCol}, limit, offset)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := sqlx.SelectContext(ctx, o.q, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("store: page ids: %w", err)
	}
	return ids, nil
}

// SelectIDs returns every idCol matched by sel, unordered.
func (o ops) SelectIDs(ctx context.Context, sel *sqlq.Select, idCol string) ([]int64, error) {
	query, args, err := sel.BuildUnordered(idCol)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := sqlx.SelectContext(ctx, o.q, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("store: select ids: %w", err)
	}
	return ids, nil
}

// Project returns one ordered page of sel as maps holding exactly cols.
func (o ops) Project(ctx context.Context, sel *sqlq.Select, cols []sqlq.Column, limit, offset int) ([]map[string]any, error) {
	query, args, err := sel.Build(sqlq.Columns(cols), limit, offset)
	if err != nil {
		return nil, err
	}
	rows, err := o.q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: project: %w", err)
	}
	defer rows.Close()

	out := make([]map[string]any, 0, limit)
	for rows.Next() {
		raw := make(map[string]any, len(cols))
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("store: project scan: %w", err)
		}
		item := make(map[string]any, len(cols))
		for _, c := range cols {
			v, err := decode(raw[c.Name], c.Kind)
			if err != nil {
				return nil, fmt.Errorf("store: project %s: %w", c.Name, err)
			}
			item[c.Name] = v
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// decode normalises a raw driver value according to its column kind.
func decode(v any, kind sqlq.Kind) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch kind {
	case sqlq.KindJSON:
		s, ok := v.(string)
		if !ok || s == "" {
			return v, nil
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, err
		}
		return out, nil
	case sqlq.KindTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			for _, layout := range []string{"2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05", time.RFC3339Nano} {
				if parsed, err := time.Parse(layout, t); err == nil {
					return parsed.UTC(), nil
				}
			}
		}
		return v, nil
	case sqlq.KindBool:
		if n, ok := v.(int64); ok {
			return n != 0, nil
		}
		return v, nil
	default:
		return v, nil
	}
}

func idSet(ids []int64) string { return sqlq.IDSet(ids) }

func marshalJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}
