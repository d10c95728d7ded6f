// Package eventservice searches events and drives their review lifecycle:
// pending events are approved by assigning things and impact tags, and any
// event can be soft-deleted.
package eventservice

import (
	"context"

	"github.com/starford/lynx/internal/facet"
	"github.com/starford/lynx/internal/filter"
	"github.com/starford/lynx/internal/metrics"
	"github.com/starford/lynx/internal/models"
	"github.com/starford/lynx/internal/store"
)

// Notifier is told about every committed event change.
type Notifier interface {
	EventChanged(orgID int64, kind string, eventID int64)
}

// Result is one page of a search. Items holds []models.Event, or
// []map[string]any when fields were projected.
type Result struct {
	Items   any
	Total   int
	Facets  map[string]any
	Page    int
	PerPage int
}

// Service coordinates event queries and mutations.
type Service struct {
	db         *store.DB
	facets     *facet.Aggregator
	notify     Notifier
	metrics    *metrics.Metrics
	perPage    int
	maxPerPage int
}

// NewService creates an event service. notify and m may be nil.
func NewService(db *store.DB, facets *facet.Aggregator, notify Notifier, m *metrics.Metrics, perPage, maxPerPage int) *Service {
	return &Service{db: db, facets: facets, notify: notify, metrics: m, perPage: perPage, maxPerPage: maxPerPage}
}

// FacetNames lists the facets a search can request.
func (s *Service) FacetNames() []string { return s.facets.Names() }

// Search validates p, then returns the requested page, the total match count
// and any requested facets. Only pending events match unless p.Status says
// otherwise.
func (s *Service) Search(ctx context.Context, p filter.EventParams) (*Result, error) {
	p.ApplyDefaults(s.perPage, s.maxPerPage)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	names, err := s.facets.Expand(p.Facets)
	if err != nil {
		return nil, err
	}

	sel, err := filter.EventQuery(ctx, s.db, p)
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
		if res.Items, err = s.db.Project(ctx, sel, filter.Project(filter.EventColumns, p.Fields), limit, offset); err != nil {
			return nil, err
		}
	} else {
		ids, err := s.db.PageIDs(ctx, sel, filter.EventID, limit, offset)
		if err != nil {
			return nil, err
		}
		if res.Items, err = s.db.EventsByIDs(ctx, p.OrgID, ids); err != nil {
			return nil, err
		}
	}

	if len(names) > 0 {
		ids, err := s.db.SelectIDs(ctx, sel, filter.EventID)
		if err != nil {
			return nil, err
		}
		if res.Facets, err = s.facets.Compute(ctx, names, facet.Input{IDs: ids}); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Get returns one event of the org.
func (s *Service) Get(ctx context.Context, orgID, id int64) (*models.Event, error) {
	return s.db.Event(ctx, orgID, id)
}

func (s *Service) changed(e *models.Event, action, kind string) {
	s.metrics.Transition(action, e.Status)
	if s.notify != nil {
		s.notify.EventChanged(e.OrgID, kind, e.ID)
	}
}
