package eventservice

import (
	"context"
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/models"
	"github.com/starford/lynx/internal/sse"
	"github.com/starford/lynx/internal/store"
)

// Update is a partial event edit. Nil fields are left unchanged. Supplying
// both TagIDs and ThingIDs approves the event.
type Update struct {
	Status      *string        `json:"status"`
	URL         *string        `json:"url"`
	ImgURL      *string        `json:"img_url"`
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Body        *string        `json:"body"`
	Authors     []string       `json:"authors"`
	Meta        map[string]any `json:"meta"`
	TagIDs      []int64        `json:"tag_ids"`
	ThingIDs    []int64        `json:"thing_ids"`
}

// Validate checks the requested status.
func (u Update) Validate() error {
	err := validation.ValidateStruct(&u,
		validation.Field(&u.Status, validation.NilOrNotEmpty,
			validation.In(models.Strings(models.EventStatuses)...).Error("must be one of: pending, approved, deleted")),
	)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

func (u Update) approves() bool { return len(u.TagIDs) > 0 && len(u.ThingIDs) > 0 }

func (u Update) apply(e *models.Event) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&e.URL, u.URL)
	set(&e.ImgURL, u.ImgURL)
	set(&e.Title, u.Title)
	set(&e.Description, u.Description)
	set(&e.Body, u.Body)
	if u.Authors != nil {
		e.Authors = u.Authors
	}
	if u.Meta != nil {
		e.Meta = u.Meta
	}
}

// next decides the status an update moves an event to.
//
//	any      -> approved  only with tag_ids and thing_ids (or already approved)
//	any      -> deleted   when asked for explicitly
//	pending  -> pending   field edits only
//
// Supplying both ID lists approves even a deleted event.
func (u Update) next(current string) (string, error) {
	requested := current
	if u.Status != nil {
		requested = *u.Status
	}
	switch {
	case u.Status != nil && requested == models.EventStatusDeleted:
		if len(u.TagIDs) > 0 || len(u.ThingIDs) > 0 {
			return "", apperr.Transition("an event cannot be approved and deleted in the same update")
		}
		return models.EventStatusDeleted, nil
	case u.approves():
		if requested != models.EventStatusApproved && u.Status != nil {
			return "", apperr.Transition("assigning tag_ids and thing_ids approves an event; status %q conflicts", requested)
		}
		return models.EventStatusApproved, nil
	case len(u.TagIDs) > 0 || len(u.ThingIDs) > 0:
		return "", apperr.Transition("to approve an event you must assign it to one or more things and impact tags using both thing_ids and tag_ids")
	case requested == models.EventStatusApproved && current != models.EventStatusApproved:
		return "", apperr.Transition("to approve an event you must assign it to one or more things and impact tags using both thing_ids and tag_ids")
	case requested == models.EventStatusPending && current != models.EventStatusPending:
		return "", apperr.Transition("a %s event cannot return to pending", current)
	}
	return requested, nil
}

// Update edits an event and applies the status transition it implies.
// Approval links the listed things and impact tags in the same transaction;
// nothing is written when any of them is missing or a tag is not an impact
// tag. Moving to deleted takes the soft-delete path.
func (s *Service) Update(ctx context.Context, orgID, id int64, u Update) (*models.Event, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	var (
		out    *models.Event
		before string
	)
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		e, err := tx.Event(ctx, orgID, id)
		if err != nil {
			return err
		}
		before = e.Status
		status, err := u.next(e.Status)
		if err != nil {
			return err
		}

		var tagIDs, thingIDs []int64
		if status == models.EventStatusApproved && u.approves() {
			if tagIDs, err = impactTags(ctx, tx, orgID, u.TagIDs); err != nil {
				return err
			}
			if thingIDs, err = things(ctx, tx, orgID, u.ThingIDs); err != nil {
				return err
			}
		}

		u.apply(e)
		e.Status = status
		if err := tx.SaveEvent(ctx, e); err != nil {
			return err
		}
		if status == models.EventStatusDeleted {
			if err := tx.ClearEventAssociations(ctx, e.ID); err != nil {
				return err
			}
		}
		if err := tx.AddEventTags(ctx, e.ID, tagIDs); err != nil {
			return err
		}
		if err := tx.AddEventThings(ctx, e.ID, thingIDs); err != nil {
			return err
		}
		out, err = tx.Event(ctx, orgID, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	kind := sse.EventUpdated
	switch {
	case out.Status == models.EventStatusDeleted && before != models.EventStatusDeleted:
		kind = sse.EventDeleted
	case out.Status == models.EventStatusApproved && u.approves():
		kind = sse.EventApproved
	}
	s.changed(out, "update", kind)
	return out, nil
}

// Delete soft-deletes an event: its tag and thing links are removed and its
// status becomes deleted. The row stays so that the same upstream source is
// not ingested again.
func (s *Service) Delete(ctx context.Context, orgID, id int64) error {
	var out *models.Event
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		e, err := tx.Event(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := tx.ClearEventAssociations(ctx, e.ID); err != nil {
			return err
		}
		e.Status = models.EventStatusDeleted
		if err := tx.SaveEvent(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return err
	}
	s.changed(out, "delete", sse.EventDeleted)
	return nil
}

// AddTag links an impact tag to an approved event. Linking a tag twice is a
// no-op.
func (s *Service) AddTag(ctx context.Context, orgID, id, tagID int64) (*models.Event, error) {
	return s.mutate(ctx, orgID, id, "add_tag", sse.EventTagAdded, func(tx *store.Tx, e *models.Event) error {
		if e.Status != models.EventStatusApproved {
			return apperr.Transition("event %d must be approved before tags can be added", e.ID)
		}
		ids, err := impactTags(ctx, tx, orgID, []int64{tagID})
		if err != nil {
			return err
		}
		return tx.AddEventTags(ctx, e.ID, ids)
	})
}

// RemoveTag unlinks a tag from an event.
func (s *Service) RemoveTag(ctx context.Context, orgID, id, tagID int64) (*models.Event, error) {
	return s.mutate(ctx, orgID, id, "remove_tag", sse.EventTagRemoved, func(tx *store.Tx, e *models.Event) error {
		if e.Status != models.EventStatusApproved {
			return apperr.Transition("event %d must be approved before tags can be removed", e.ID)
		}
		ok, err := tx.RemoveEventTag(ctx, e.ID, tagID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Transition("event %d is not associated with tag %d", e.ID, tagID)
		}
		return nil
	})
}

// AddThing links a thing to an approved event. Linking a thing twice is a
// no-op.
func (s *Service) AddThing(ctx context.Context, orgID, id, thingID int64) (*models.Event, error) {
	return s.mutate(ctx, orgID, id, "add_thing", sse.EventThingAdded, func(tx *store.Tx, e *models.Event) error {
		if e.Status != models.EventStatusApproved {
			return apperr.Transition("event %d must be approved before things can be added", e.ID)
		}
		if _, err := tx.Thing(ctx, orgID, thingID); err != nil {
			return err
		}
		return tx.AddEventThings(ctx, e.ID, []int64{thingID})
	})
}

// RemoveThing unlinks a thing from an event.
func (s *Service) RemoveThing(ctx context.Context, orgID, id, thingID int64) (*models.Event, error) {
	return s.mutate(ctx, orgID, id, "remove_thing", sse.EventThingRemoved, func(tx *store.Tx, e *models.Event) error {
		if e.Status != models.EventStatusApproved {
			return apperr.Transition("event %d must be approved before things can be removed", e.ID)
		}
		ok, err := tx.RemoveEventThing(ctx, e.ID, thingID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Transition("event %d is not associated with thing %d", e.ID, thingID)
		}
		return nil
	})
}

// mutate runs fn on the loaded event inside one transaction, stamps the
// event and returns it reloaded.
func (s *Service) mutate(ctx context.Context, orgID, id int64, action, kind string, fn func(tx *store.Tx, e *models.Event) error) (*models.Event, error) {
	var out *models.Event
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		e, err := tx.Event(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := fn(tx, e); err != nil {
			return err
		}
		if err := tx.TouchEvent(ctx, e.ID); err != nil {
			return err
		}
		out, err = tx.Event(ctx, orgID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.changed(out, action, kind)
	return out, nil
}

// impactTags checks that every id names an impact tag of the org.
func impactTags(ctx context.Context, tx *store.Tx, orgID int64, ids []int64) ([]int64, error) {
	ids = unique(ids)
	tags, err := tx.Tags(ctx, orgID, ids)
	if err != nil {
		return nil, err
	}
	if missing := missingIDs(ids, tags, func(t models.Tag) int64 { return t.ID }); len(missing) > 0 {
		return nil, apperr.NotFound("tag(s) %v do not exist", missing)
	}
	for _, t := range tags {
		if !t.IsImpact() {
			return nil, apperr.Transition("events can only be assigned impact tags; tag %d is a %s tag", t.ID, t.Type)
		}
	}
	return ids, nil
}

func things(ctx context.Context, tx *store.Tx, orgID int64, ids []int64) ([]int64, error) {
	ids = unique(ids)
	found, err := tx.Things(ctx, orgID, ids)
	if err != nil {
		return nil, err
	}
	if missing := missingIDs(ids, found, func(t models.Thing) int64 { return t.ID }); len(missing) > 0 {
		return nil, apperr.NotFound("thing(s) %v do not exist", missing)
	}
	return ids, nil
}

func unique(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func missingIDs[T any](want []int64, found []T, id func(T) int64) []int64 {
	have := make(map[int64]bool, len(found))
	for _, f := range found {
		have[id(f)] = true
	}
	var missing []int64
	for _, w := range want {
		if !have[w] {
			missing = append(missing, w)
		}
	}
	return missing
}
