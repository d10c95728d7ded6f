package filter

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/lynx/internal/apperr"
)

// dateLayouts are the accepted ISO date forms, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// List splits a comma-separated parameter, dropping blanks.
func List(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// excluded strips a leading "!" or "-" and reports whether one was present.
func excluded(s string) (string, bool) {
	if strings.HasPrefix(s, "!") || strings.HasPrefix(s, "-") {
		return s[1:], true
	}
	return s, false
}

// NameSet parses "a,!b,-c" into Include [a] and Exclude [b c].
func NameSet(raw string) Set[string] {
	var s Set[string]
	for _, item := range List(raw) {
		if name, ex := excluded(item); ex {
			s.Exclude = append(s.Exclude, name)
		} else {
			s.Include = append(s.Include, name)
		}
	}
	return s
}

// IDSet parses "1,!2,-3" into Include [1] and Exclude [2 3].
func IDSet(param, raw string) (Set[int64], error) {
	var s Set[int64]
	for _, item := range List(raw) {
		v, ex := excluded(item)
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return s, apperr.Validation("%s: %q is not an integer id", param, item)
		}
		if ex {
			s.Exclude = append(s.Exclude, id)
		} else {
			s.Include = append(s.Include, id)
		}
	}
	return s, nil
}

// ParseSort reads "field" (ascending) or "-field" (descending).
func ParseSort(raw string) Sort {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Sort{}
	}
	if strings.HasPrefix(raw, "-") {
		return Sort{Field: raw[1:], Desc: true}
	}
	return Sort{Field: raw}
}

// Date parses an ISO date or timestamp. Values without a zone are UTC.
func Date(param, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.Validation("%s: %q is not an ISO date", param, raw)
}

// Int parses an optional integer parameter.
func Int(param, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s: %q is not an integer", param, raw)
	}
	return n, nil
}

// Bool parses an optional boolean parameter ("true", "1", "yes", "on").
func Bool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

type parser struct {
	q   url.Values
	err error
}

func (p *parser) ids(param string) Set[int64] {
	s, err := IDSet(param, p.q.Get(param))
	p.keep(err)
	return s
}

func (p *parser) date(param string) *time.Time {
	t, err := Date(param, p.q.Get(param))
	p.keep(err)
	return t
}

func (p *parser) integer(param string) int {
	n, err := Int(param, p.q.Get(param), 0)
	p.keep(err)
	return n
}

func (p *parser) keep(err error) {
	if p.err == nil && err != nil {
		p.err = err
	}
}

func (p *parser) common(orgID int64) Common {
	return Common{
		OrgID:   orgID,
		Query:   strings.TrimSpace(p.q.Get("q")),
		Fields:  List(p.q.Get("fields")),
		Sort:    ParseSort(p.q.Get("sort")),
		Page:    p.integer("page"),
		PerPage: p.integer("per_page"),
		Facets:  List(p.q.Get("facets")),
		Dates: Dates{
			CreatedAfter:  p.date("created_after"),
			CreatedBefore: p.date("created_before"),
			UpdatedAfter:  p.date("updated_after"),
			UpdatedBefore: p.date("updated_before"),
		},
		RecipeIDs:  p.ids("recipe_ids"),
		TagIDs:     p.ids("tag_ids"),
		Categories: NameSet(p.q.Get("categories")),
		Levels:     NameSet(p.q.Get("levels")),
		SousChefs:  NameSet(p.q.Get("sous_chefs")),
		Tasks:      NameSet(p.q.Get("tasks")),
	}
}

// ContentParamsFromQuery reads the content search parameter surface.
func ContentParamsFromQuery(orgID int64, q url.Values) (ContentParams, error) {
	p := &parser{q: q}
	out := ContentParams{
		Common:     p.common(orgID),
		Vector:     q.Get("search"),
		Type:       q.Get("type"),
		Provenance: q.Get("provenance"),
		Domain:     q.Get("domain"),
		URL:        q.Get("url"),
		URLRegex:   q.Get("url_regex"),
		AuthorIDs:  p.ids("author_ids"),
		InclBody:   Bool(q.Get("incl_body")),
	}
	return out, p.err
}

// EventParamsFromQuery reads the event search parameter surface.
func EventParamsFromQuery(orgID int64, q url.Values) (EventParams, error) {
	p := &parser{q: q}
	out := EventParams{
		Common:   p.common(orgID),
		Status:   q.Get("status"),
		ThingIDs: p.ids("thing_ids"),
	}
	return out, p.err
}
