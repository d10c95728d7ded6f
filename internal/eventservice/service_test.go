package eventservice_test

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/eventservice"
	"github.com/starford/lynx/internal/facet"
	"github.com/starford/lynx/internal/filter"
	"github.com/starford/lynx/internal/metrics"
	"github.com/starford/lynx/internal/models"
	"github.com/starford/lynx/internal/sse"
	"github.com/starford/lynx/internal/testutil"
)

type change struct {
	org  int64
	kind string
	id   int64
}

type recorder struct {
	mu      sync.Mutex
	changes []change
}

func (r *recorder) EventChanged(orgID int64, kind string, eventID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change{orgID, kind, eventID})
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.changes {
		out = append(out, c.kind)
	}
	return out
}

type world struct {
	*testutil.Fixture
	svc     *eventservice.Service
	notes   *recorder
	metrics *metrics.Metrics

	impact, impact2, subject models.Tag
	council, mayor           models.Thing
}

func newWorld(t *testing.T) *world {
	f := testutil.NewFixture(t)
	w := &world{Fixture: f, notes: &recorder{}, metrics: metrics.New(prometheus.NewRegistry())}
	w.svc = eventservice.NewService(f.DB, facet.Events(f.DB, nil), w.notes, w.metrics, 10, 50)
	w.impact = f.ImpactTag("policy change", "change", "institution")
	w.impact2 = f.ImpactTag("shared", "promotion", "media")
	w.subject = f.SubjectTag("politics")
	w.council = f.Thing("City council")
	w.mayor = f.Thing("Mayor")
	return w
}

func ptr[T any](v T) *T { return &v }

func TestUpdate_ApproveWithTagsAndThings(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	e := w.Event(models.Event{Title: "Bill passes"})

	got, err := w.svc.Update(ctx, w.Org.ID, e.ID, eventservice.Update{
		Title:    ptr("Bill passes council"),
		TagIDs:   []int64{w.impact.ID, w.impact.ID},
		ThingIDs: []int64{w.council.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusApproved, got.Status)
	assert.Equal(t, "Bill passes council", got.Title)
	assert.Equal(t, []int64{w.impact.ID}, got.TagIDs)
	assert.Equal(t, []int64{w.council.ID}, got.ThingIDs)
	assert.False(t, got.Updated.Before(e.Updated))

	assert.Equal(t, []string{sse.EventApproved}, w.notes.kinds())
	assert.Equal(t, 1.0, promtest.ToFloat64(w.metrics.EventTransitions.WithLabelValues("update", models.EventStatusApproved)))

	// Approving again skips links that already exist.
	got, err = w.svc.Update(ctx, w.Org.ID, e.ID, eventservice.Update{
		Status:   ptr(models.EventStatusApproved),
		TagIDs:   []int64{w.impact.ID, w.impact2.ID},
		ThingIDs: []int64{w.council.ID, w.mayor.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{w.impact.ID, w.impact2.ID}, got.TagIDs)
	assert.Equal(t, []int64{w.council.ID, w.mayor.ID}, got.ThingIDs)
}

func TestUpdate_RejectedApprovalsWriteNothing(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	e := w.Event(models.Event{Title: "Original"})

	cases := map[string]struct {
		update eventservice.Update
		kind   error
	}{
		"status only": {eventservice.Update{Status: ptr(models.EventStatusApproved)}, apperr.ErrTransition},
		"tags only":   {eventservice.Update{TagIDs: []int64{w.impact.ID}}, apperr.ErrTransition},
		"things only": {eventservice.Update{Status: ptr(models.EventStatusApproved), ThingIDs: []int64{w.council.ID}}, apperr.ErrTransition},
		"subject tag": {eventservice.Update{TagIDs: []int64{w.impact.ID, w.subject.ID}, ThingIDs: []int64{w.council.ID}}, apperr.ErrTransition},
		"unknown tag": {eventservice.Update{TagIDs: []int64{999}, ThingIDs: []int64{w.council.ID}}, apperr.ErrNotFound},
		"unknown thing": {eventservice.Update{TagIDs: []int64{w.impact.ID}, ThingIDs: []int64{w.council.ID, 999}}, apperr.ErrNotFound},
		"conflicting status": {eventservice.Update{Status: ptr(models.EventStatusPending), TagIDs: []int64{w.impact.ID}, ThingIDs: []int64{w.council.ID}}, apperr.ErrTransition},
		"bad status": {eventservice.Update{Status: ptr("archived")}, apperr.ErrValidation},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			u := c.update
			u.Title = ptr("Changed")
			_, err := w.svc.Update(ctx, w.Org.ID, e.ID, u)
			require.ErrorIs(t, err, c.kind)

			got, err := w.svc.Get(ctx, w.Org.ID, e.ID)
			require.NoError(t, err)
			assert.Equal(t, models.EventStatusPending, got.Status)
			assert.Equal(t, "Original", got.Title)
			assert.Empty(t, got.TagIDs)
			assert.Empty(t, got.ThingIDs)
		})
	}
	assert.Empty(t, w.notes.kinds())
}

func TestUpdate_TagsOfAnotherOrgAreUnknown(t *testing.T) {
	w := newWorld(t)
	other := testutil.ForOrg(t, w.DB, "courier")
	foreign := other.ImpactTag("shared", "promotion", "media")
	e := w.Event(models.Event{})

	_, err := w.svc.Update(context.Background(), w.Org.ID, e.ID, eventservice.Update{
		TagIDs: []int64{foreign.ID}, ThingIDs: []int64{w.council.ID},
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdate_FieldsAndStatusRules(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	e := w.Event(models.Event{})

	got, err := w.svc.Update(ctx, w.Org.ID, e.ID, eventservice.Update{
		Description: ptr("desc"),
		Authors:     []string{"Ada"},
		Meta:        map[string]any{"source": "rss"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusPending, got.Status)
	assert.Equal(t, "desc", got.Description)
	assert.Equal(t, []string{"Ada"}, got.Authors)
	assert.Equal(t, map[string]any{"source": "rss"}, got.Meta)

	approved := w.Event(models.Event{Status: models.EventStatusApproved, TagIDs: []int64{w.impact.ID}, ThingIDs: []int64{w.mayor.ID}})
	got, err = w.svc.Update(ctx, w.Org.ID, approved.ID, eventservice.Update{Status: ptr(models.EventStatusApproved), Title: ptr("still approved")})
	require.NoError(t, err)
	assert.Equal(t, "still approved", got.Title)

	_, err = w.svc.Update(ctx, w.Org.ID, approved.ID, eventservice.Update{Status: ptr(models.EventStatusPending)})
	assert.ErrorIs(t, err, apperr.ErrTransition)

	_, err = w.svc.Update(ctx, w.Org.ID, 424242, eventservice.Update{Title: ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdate_StatusDeletedSoftDeletes(t *testing.T) {
	w := newWorld(t)
	e := w.Event(models.Event{Status: models.EventStatusApproved, TagIDs: []int64{w.impact.ID}, ThingIDs: []int64{w.mayor.ID}})

	got, err := w.svc.Update(context.Background(), w.Org.ID, e.ID, eventservice.Update{Status: ptr(models.EventStatusDeleted)})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusDeleted, got.Status)
	assert.Empty(t, got.TagIDs)
	assert.Empty(t, got.ThingIDs)
	assert.Equal(t, []string{sse.EventDeleted}, w.notes.kinds())
}

func TestUpdate_ApprovesDeletedEvent(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	e := w.Event(models.Event{Title: "Retracted"})
	require.NoError(t, w.svc.Delete(ctx, w.Org.ID, e.ID))

	// Field edits alone keep the event deleted.
	got, err := w.svc.Update(ctx, w.Org.ID, e.ID, eventservice.Update{Title: ptr("Retracted story")})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusDeleted, got.Status)

	got, err = w.svc.Update(ctx, w.Org.ID, e.ID, eventservice.Update{
		TagIDs:   []int64{w.impact.ID},
		ThingIDs: []int64{w.council.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusApproved, got.Status)
	assert.Equal(t, []int64{w.impact.ID}, got.TagIDs)
	assert.Equal(t, []int64{w.council.ID}, got.ThingIDs)

	_, err = w.svc.Update(ctx, w.Org.ID, e.ID, eventservice.Update{
		Status:   ptr(models.EventStatusDeleted),
		TagIDs:   []int64{w.impact.ID},
		ThingIDs: []int64{w.council.ID},
	})
	assert.ErrorIs(t, err, apperr.ErrTransition)
}

func TestDelete(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	e := w.Event(models.Event{Status: models.EventStatusApproved, TagIDs: []int64{w.impact.ID}, ThingIDs: []int64{w.mayor.ID}})
	pending := w.Event(models.Event{})

	require.NoError(t, w.svc.Delete(ctx, w.Org.ID, e.ID))
	require.NoError(t, w.svc.Delete(ctx, w.Org.ID, pending.ID))

	got, err := w.svc.Get(ctx, w.Org.ID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusDeleted, got.Status)
	assert.Empty(t, got.TagIDs)
	assert.Empty(t, got.ThingIDs)

	// Deleted events drop out of the default (pending) search.
	res, err := w.svc.Search(ctx, filter.EventParams{Common: filter.Common{OrgID: w.Org.ID}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)

	res, err = w.svc.Search(ctx, filter.EventParams{Common: filter.Common{OrgID: w.Org.ID}, Status: models.EventStatusDeleted})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	assert.ErrorIs(t, w.svc.Delete(ctx, w.Org.ID, 424242), apperr.ErrNotFound)
	assert.Equal(t, 2.0, promtest.ToFloat64(w.metrics.EventTransitions.WithLabelValues("delete", models.EventStatusDeleted)))
}

func TestTagAndThingAssociations(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	pending := w.Event(models.Event{})
	e := w.Event(models.Event{Status: models.EventStatusApproved, TagIDs: []int64{w.impact.ID}, ThingIDs: []int64{w.mayor.ID}})

	_, err := w.svc.AddTag(ctx, w.Org.ID, pending.ID, w.impact.ID)
	assert.ErrorIs(t, err, apperr.ErrTransition)
	_, err = w.svc.AddThing(ctx, w.Org.ID, pending.ID, w.council.ID)
	assert.ErrorIs(t, err, apperr.ErrTransition)

	_, err = w.svc.AddTag(ctx, w.Org.ID, e.ID, w.subject.ID)
	assert.ErrorIs(t, err, apperr.ErrTransition)
	_, err = w.svc.AddTag(ctx, w.Org.ID, e.ID, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = w.svc.AddThing(ctx, w.Org.ID, e.ID, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := w.svc.AddTag(ctx, w.Org.ID, e.ID, w.impact2.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{w.impact.ID, w.impact2.ID}, got.TagIDs)

	got, err = w.svc.AddTag(ctx, w.Org.ID, e.ID, w.impact2.ID)
	require.NoError(t, err)
	assert.Len(t, got.TagIDs, 2)

	got, err = w.svc.AddThing(ctx, w.Org.ID, e.ID, w.council.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{w.council.ID, w.mayor.ID}, got.ThingIDs)

	got, err = w.svc.RemoveTag(ctx, w.Org.ID, e.ID, w.impact.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{w.impact2.ID}, got.TagIDs)
	_, err = w.svc.RemoveTag(ctx, w.Org.ID, e.ID, w.impact.ID)
	assert.ErrorIs(t, err, apperr.ErrTransition)

	got, err = w.svc.RemoveThing(ctx, w.Org.ID, e.ID, w.mayor.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{w.council.ID}, got.ThingIDs)
	_, err = w.svc.RemoveThing(ctx, w.Org.ID, e.ID, w.mayor.ID)
	assert.ErrorIs(t, err, apperr.ErrTransition)

	assert.Equal(t, []string{
		sse.EventTagAdded, sse.EventTagAdded, sse.EventThingAdded, sse.EventTagRemoved, sse.EventThingRemoved,
	}, w.notes.kinds())
}

func TestSearch(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	a := w.Event(models.Event{Title: "Council vote", TagIDs: []int64{w.impact.ID}})
	b := w.Event(models.Event{Title: "Mayor resigns"})
	w.Event(models.Event{Status: models.EventStatusApproved, TagIDs: []int64{w.impact2.ID}, ThingIDs: []int64{w.mayor.ID}})

	res, err := w.svc.Search(ctx, filter.EventParams{Common: filter.Common{OrgID: w.Org.ID, Facets: []string{"statuses", "tags"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 10, res.PerPage)
	events := res.Items.([]models.Event)
	require.Len(t, events, 2)
	assert.Equal(t, []int64{a.ID, b.ID}, []int64{events[0].ID, events[1].ID})
	assert.Equal(t, []map[string]any{{"status": "pending", "count": int64(2)}}, res.Facets["statuses"])
	assert.Equal(t, []map[string]any{{"id": w.impact.ID, "name": "policy change", "count": int64(1)}}, res.Facets["tags"])

	res, err = w.svc.Search(ctx, filter.EventParams{
		Common: filter.Common{OrgID: w.Org.ID, Fields: []string{"id", "status"}, Categories: filter.Set[string]{Include: []string{"promotion"}}},
		Status: models.All,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	rows := res.Items.([]map[string]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "approved", rows[0]["status"])
	assert.Len(t, rows[0], 2)

	_, err = w.svc.Search(ctx, filter.EventParams{Common: filter.Common{OrgID: w.Org.ID}, Status: "archived"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
