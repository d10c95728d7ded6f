// Package facet computes named aggregates over a filtered id set
// concurrently, one worker per facet.
package facet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/models"
)

// Input is the set a facet is computed over. EventIDs feeds event-derived
// facets of content searches.
type Input struct {
	IDs      []int64
	EventIDs []int64
}

// Func computes one facet. Results are either a list of
// {key..., count} maps or a scalar count.
type Func func(ctx context.Context, in Input) (any, error)

type entry struct {
	fn     Func
	events bool
}

// Aggregator is a registry of named facets.
type Aggregator struct {
	names   []string
	entries map[string]entry
	observe func(name string, elapsed time.Duration)
}

// New returns an empty aggregator. observe, when non-nil, receives the
// duration of every computed facet.
func New(observe func(name string, elapsed time.Duration)) *Aggregator {
	return &Aggregator{entries: map[string]entry{}, observe: observe}
}

// Register adds a facet computed over Input.IDs.
func (a *Aggregator) Register(name string, fn Func) *Aggregator {
	return a.add(name, entry{fn: fn})
}

// RegisterEvents adds a facet computed over Input.EventIDs.
func (a *Aggregator) RegisterEvents(name string, fn Func) *Aggregator {
	return a.add(name, entry{fn: fn, events: true})
}

func (a *Aggregator) add(name string, e entry) *Aggregator {
	if _, dup := a.entries[name]; dup {
		panic("facet: duplicate facet " + name)
	}
	a.names = append(a.names, name)
	a.entries[name] = e
	return a
}

// Names returns every registered facet in registration order.
func (a *Aggregator) Names() []string {
	return append([]string(nil), a.names...)
}

// Expand resolves requested names: "all" selects every facet, duplicates
// collapse, unknown names fail validation.
func (a *Aggregator) Expand(requested []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, name := range requested {
		if name == models.All {
			return a.Names(), nil
		}
		if _, ok := a.entries[name]; !ok {
			return nil, apperr.Validation("facets: %q is not a facet; must be one of: %s, %s",
				name, models.All, strings.Join(a.names, ", "))
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// NeedsEvents reports whether any of names is event-derived.
func (a *Aggregator) NeedsEvents(names []string) bool {
	for _, name := range names {
		if a.entries[name].events {
			return true
		}
	}
	return false
}

// Compute runs every named facet concurrently and merges the results. The
// pool has one slot per registered facet, so no facet waits for another.
// The first failure cancels the rest.
func (a *Aggregator) Compute(ctx context.Context, names []string, in Input) (map[string]any, error) {
	out := make(map[string]any, len(names))
	if len(names) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(len(a.names))
	for _, name := range names {
		e, ok := a.entries[name]
		if !ok {
			return nil, apperr.Validation("facets: %q is not a facet", name)
		}
		g.Go(func() error {
			start := time.Now()
			v, err := e.fn(ctx, in)
			if err != nil {
				return fmt.Errorf("facet %s: %w", name, err)
			}
			if a.observe != nil {
				a.observe(name, time.Since(start))
			}
			mu.Lock()
			out[name] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
