// Package sqlq composes SELECT statements over a single aliased table from
// independent restrictions. Every restriction is a self-contained boolean
// expression (typically an EXISTS subquery), so the base row set never
// fans out and count(*) equals the number of matching entities.
package sqlq

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Expr is a SQL fragment with its bound arguments. Slice arguments are
// expanded into IN lists at build time.
type Expr struct {
	SQL  string
	Args []any
}

// E builds an Expr.
func E(sql string, args ...any) Expr {
	return Expr{SQL: sql, Args: args}
}

// IsZero reports whether the expression is empty.
func (e Expr) IsZero() bool { return e.SQL == "" }

// Kind tells a projection how to decode a raw column value.
type Kind int

const (
	KindPlain Kind = iota
	KindJSON
	KindTime
	KindBool
)

// Column maps a public field name to the SQL expression that produces it.
type Column struct {
	Name string
	Expr string
	Kind Kind
}

// Select accumulates restrictions and ordering over a base table.
type Select struct {
	from  string
	where []Expr
	order []Expr
}

// From starts a query over from, e.g. "content_items c".
func From(from string) *Select {
	return &Select{from: from}
}

// Where appends a restriction. Restrictions are joined with AND.
func (s *Select) Where(sql string, args ...any) *Select {
	s.where = append(s.where, E(sql, args...))
	return s
}

// WhereExpr appends a prepared restriction; zero expressions are ignored.
func (s *Select) WhereExpr(e Expr) *Select {
	if e.IsZero() {
		return s
	}
	s.where = append(s.where, e)
	return s
}

// OrderBy appends an ordering term.
func (s *Select) OrderBy(sql string, args ...any) *Select {
	s.order = append(s.order, E(sql, args...))
	return s
}

// Ordered reports whether any ordering term has been set.
func (s *Select) Ordered() bool { return len(s.order) > 0 }

// Clone returns an independent copy that can be narrowed further without
// affecting s.
func (s *Select) Clone() *Select {
	c := &Select{from: s.from}
	c.where = append(c.where, s.where...)
	c.order = append(c.order, s.order...)
	return c
}

// Restrictions returns the number of WHERE terms.
func (s *Select) Restrictions() int { return len(s.where) }

// Build renders SELECT cols with ordering and an optional page window.
// limit <= 0 disables the window.
func (s *Select) Build(cols []string, limit, offset int) (string, []any, error) {
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("sqlq: no columns selected")
	}
	var b strings.Builder
	var args []any

	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	args = s.writeFromWhere(&b, args)

	if len(s.order) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.order {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(o.SQL)
			args = append(args, o.Args...)
		}
	}
	if limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, limit, offset)
	}
	return expand(b.String(), args)
}

// BuildUnordered renders SELECT cols without ordering or window; used for
// ID-set extraction where order is irrelevant.
func (s *Select) BuildUnordered(cols ...string) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	args := s.writeFromWhere(&b, nil)
	return expand(b.String(), args)
}

// BuildCount renders SELECT count(*) over the restricted set.
func (s *Select) BuildCount() (string, []any, error) {
	return s.BuildUnordered("count(*)")
}

func (s *Select) writeFromWhere(b *strings.Builder, args []any) []any {
	b.WriteString(" FROM ")
	b.WriteString(s.from)
	for i, w := range s.where {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString("(")
		b.WriteString(w.SQL)
		b.WriteString(")")
		args = append(args, w.Args...)
	}
	return args
}

func expand(query string, args []any) (string, []any, error) {
	if !hasSlice(args) {
		return query, args, nil
	}
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("sqlq: expand: %w", err)
	}
	return q, a, nil
}

func hasSlice(args []any) bool {
	for _, a := range args {
		switch a.(type) {
		case []int64, []string, []int, []any:
			return true
		}
	}
	return false
}

// Columns returns the SQL expressions of cols aliased to their names.
func Columns(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Expr + " AS " + c.Name
	}
	return out
}

// IDSet encodes ids as a JSON array for `IN (SELECT value FROM json_each(?))`,
// which stays a single bind parameter regardless of set size.
func IDSet(ids []int64) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

// InIDs restricts col to ids. An empty set matches nothing.
func InIDs(col string, ids []int64) Expr {
	return E(col+" IN (SELECT value FROM json_each(?))", IDSet(ids))
}

// NotInIDs excludes ids from col. An empty set excludes nothing; NULL values
// of col are kept.
func NotInIDs(col string, ids []int64) Expr {
	return E("("+col+" IS NULL OR "+col+" NOT IN (SELECT value FROM json_each(?)))", IDSet(ids))
}
