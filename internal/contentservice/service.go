// Package contentservice answers content item searches and lookups.
package contentservice

import (
	"context"

	"github.com/starford/lynx/internal/facet"
	"github.com/starford/lynx/internal/filter"
	"github.com/starford/lynx/internal/models"
	"github.com/starford/lynx/internal/store"
)

// Result is one page of a search. Items holds []models.ContentItem, or
// []map[string]any when fields were projected.
type Result struct {
	Items   any
	Total   int
	Facets  map[string]any
	Page    int
	PerPage int
}

// Service runs content searches against the store.
type Service struct {
	db         *store.DB
	facets     *facet.Aggregator
	perPage    int
	maxPerPage int
}

// NewService creates a content service. perPage is the default page size,
// maxPerPage caps what callers may request.
func NewService(db *store.DB, facets *facet.Aggregator, perPage, maxPerPage int) *Service {
	return &Service{db: db, facets: facets, perPage: perPage, maxPerPage: maxPerPage}
}

// FacetNames lists the facets a search can request.
func (s *Service) FacetNames() []string { return s.facets.Names() }

// Search validates p, then returns the requested page, the total match count
// and any requested facets. Nothing is queried when validation fails.
func (s *Service) Search(ctx context.Context, p filter.ContentParams) (*Result, error) {
	p.ApplyDefaults(s.perPage, s.maxPerPage)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	names, err := s.facets.Expand(p.Facets)
	if err != nil {
		return nil, err
	}

	sel, eventIDs, err := filter.ContentQuery(ctx, s.db, p)
	if err != nil {
		return nil, err
	}
	total, err := s.db.Count(ctx, sel)
	if err != nil {
		return nil, err
	}

	res := &Result{Total: total, Page: p.Page, PerPage: p.PerPage}
	limit, offset := p.Window()
	if len(p.Fields) > 0 {
		rows, err := s.db.Project(ctx, sel, filter.Project(filter.ContentColumns, p.Fields), limit, offset)
		if err != nil {
			return nil, err
		}
		res.Items = rows
	} else {
		ids, err := s.db.PageIDs(ctx, sel, filter.ContentID, limit, offset)
		if err != nil {
			return nil, err
		}
		items, err := s.db.ContentItemsByIDs(ctx, p.OrgID, ids, p.InclBody)
		if err != nil {
			return nil, err
		}
		res.Items = items
	}

	if len(names) > 0 {
		ids, err := s.db.SelectIDs(ctx, sel, filter.ContentID)
		if err != nil {
			return nil, err
		}
		// Without category or level filters the event facets cover every
		// event linked to the matched items.
		if len(eventIDs) == 0 && s.facets.NeedsEvents(names) {
			if eventIDs, err = s.db.EventIDsForContent(ctx, ids); err != nil {
				return nil, err
			}
		}
		res.Facets, err = s.facets.Compute(ctx, names, facet.Input{IDs: ids, EventIDs: eventIDs})
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Get returns one content item of the org.
func (s *Service) Get(ctx context.Context, orgID, id int64, inclBody bool) (*models.ContentItem, error) {
	return s.db.ContentItem(ctx, orgID, id, inclBody)
}
