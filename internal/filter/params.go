// Package filter composes content item and event searches from request
// parameters into restricted, ordered queries.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/models"
	"github.com/starford/lynx/internal/paginate"
	"github.com/starford/lynx/internal/sqlq"
)

// Set is an inclusion/exclusion pair. Include keeps rows associated with at
// least one member; Exclude drops rows associated with any member.
type Set[T comparable] struct {
	Include []T
	Exclude []T
}

// IsZero reports whether neither side has members.
func (s Set[T]) IsZero() bool { return len(s.Include) == 0 && len(s.Exclude) == 0 }

// Sort is an ordering request. A zero Sort means descending creation time.
type Sort struct {
	Field string
	Desc  bool
}

// Dates are inclusive timestamp bounds.
type Dates struct {
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time
}

// Common holds the parameters shared by content and event searches.
type Common struct {
	OrgID   int64
	Query   string
	Fields  []string
	Sort    Sort
	Page    int
	PerPage int
	Facets  []string
	Dates

	RecipeIDs  Set[int64]
	TagIDs     Set[int64]
	Categories Set[string]
	Levels     Set[string]
	SousChefs  Set[string]
	Tasks      Set[string]
}

// Window returns the LIMIT/OFFSET of the requested page.
func (c Common) Window() (limit, offset int) {
	return c.PerPage, paginate.Offset(c.Page, c.PerPage)
}

func (c *Common) applyDefaults(perPage, maxPerPage int) {
	if c.Sort.Field == "" {
		c.Sort = Sort{Field: "created", Desc: true}
	}
	if c.Page < 1 {
		c.Page = 1
	}
	if c.PerPage < 1 {
		c.PerPage = perPage
	}
	if maxPerPage > 0 && c.PerPage > maxPerPage {
		c.PerPage = maxPerPage
	}
}

// ContentParams filters content items.
type ContentParams struct {
	Common

	Vector     string
	Type       string
	Provenance string
	Domain     string
	URL        string
	URLRegex   string
	AuthorIDs  Set[int64]
	InclBody   bool
}

// ApplyDefaults fills unset parameters: search vector and type "all",
// newest first, page 1 of perPage (capped at maxPerPage).
func (p *ContentParams) ApplyDefaults(perPage, maxPerPage int) {
	p.applyDefaults(perPage, maxPerPage)
	if p.Vector == "" {
		p.Vector = models.All
	}
	if p.Type == "" {
		p.Type = models.All
	}
}

// Validate checks every parameter against its legal values.
func (p ContentParams) Validate() error {
	err := validation.Errors{
		"search":     validation.Validate(p.Vector, oneOf(models.ContentSearchVectors)),
		"type":       validation.Validate(p.Type, oneOf(append([]string{models.All}, models.ContentItemTypes...))),
		"provenance": validation.Validate(p.Provenance, oneOf(models.ContentItemProvenances)),
		"url_regex":  validation.Validate(p.URLRegex, validation.By(compiles)),
		"fields":     validation.Validate(p.Fields, validation.Each(oneOf(Names(ContentColumns)))),
		"sort":       validateSort(p.Sort, ContentColumns),
		"categories": validation.Validate(p.Categories, setOf(models.TagCategories)),
		"levels":     validation.Validate(p.Levels, setOf(models.TagLevels)),
		"page":       validation.Validate(p.Page, validation.Min(1)),
		"per_page":   validation.Validate(p.PerPage, validation.Min(1)),
		"dates":      validateDates(p.Dates),
	}.Filter()
	return asValidation(err)
}

// EventParams filters events.
type EventParams struct {
	Common

	Status   string
	ThingIDs Set[int64]
}

// ApplyDefaults fills unset parameters: pending events, newest first, page 1
// of perPage (capped at maxPerPage).
func (p *EventParams) ApplyDefaults(perPage, maxPerPage int) {
	p.applyDefaults(perPage, maxPerPage)
	if p.Status == "" {
		p.Status = models.EventStatusPending
	}
}

// Validate checks every parameter against its legal values.
func (p EventParams) Validate() error {
	err := validation.Errors{
		"status":     validation.Validate(p.Status, oneOf(append([]string{models.All}, models.EventStatuses...))),
		"fields":     validation.Validate(p.Fields, validation.Each(oneOf(Names(EventColumns)))),
		"sort":       validateSort(p.Sort, EventColumns),
		"categories": validation.Validate(p.Categories, setOf(models.TagCategories)),
		"levels":     validation.Validate(p.Levels, setOf(models.TagLevels)),
		"page":       validation.Validate(p.Page, validation.Min(1)),
		"per_page":   validation.Validate(p.PerPage, validation.Min(1)),
		"dates":      validateDates(p.Dates),
	}.Filter()
	return asValidation(err)
}

func asValidation(err error) error {
	if err == nil {
		return nil
	}
	return apperr.Validation("%s", err.Error())
}

func oneOf(values []string) validation.Rule {
	return validation.In(models.Strings(values)...).
		Error("must be one of: " + strings.Join(values, ", "))
}

func setOf(values []string) validation.Rule {
	in := oneOf(values)
	return validation.By(func(v any) error {
		s, _ := v.(Set[string])
		for _, side := range [][]string{s.Include, s.Exclude} {
			for _, x := range side {
				if err := validation.Validate(x, in); err != nil {
					return fmt.Errorf("%q %w", x, err)
				}
			}
		}
		return nil
	})
}

func compiles(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, err := regexp.Compile(s); err != nil {
		return fmt.Errorf("is not a valid regular expression: %w", err)
	}
	return nil
}

func validateSort(s Sort, cols map[string]sqlq.Column) error {
	if s.Field == "" || s.Field == Relevance {
		return nil
	}
	for _, name := range sortable(cols) {
		if name == s.Field {
			return nil
		}
	}
	return fmt.Errorf("cannot sort by %q; must be one of: %s", s.Field, strings.Join(append(sortable(cols), Relevance), ", "))
}

func validateDates(d Dates) error {
	if d.CreatedAfter != nil && d.CreatedBefore != nil && d.CreatedAfter.After(*d.CreatedBefore) {
		return fmt.Errorf("created_after must not be later than created_before")
	}
	if d.UpdatedAfter != nil && d.UpdatedBefore != nil && d.UpdatedAfter.After(*d.UpdatedBefore) {
		return fmt.Errorf("updated_after must not be later than updated_before")
	}
	return nil
}
