package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/models"
)

type eventRow struct {
	models.Event
	AuthorsJSON string `db:"authors"`
	MetaJSON    string `db:"meta"`
}

const eventCols = `e.id, e.org_id, e.recipe_id, e.source_id, e.status, e.url, e.img_url,
	e.title, e.description, e.body, e.authors, e.meta, e.created, e.updated`

// Event returns one event of the org with its associations.
func (o ops) Event(ctx context.Context, orgID, id int64) (*models.Event, error) {
	events, err := o.EventsByIDs(ctx, orgID, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, apperr.NotFound("event %d does not exist", id)
	}
	return &events[0], nil
}

// EventsByIDs hydrates events in the order of ids with tag, thing and
// content item ids. Unknown ids are skipped.
func (o ops) EventsByIDs(ctx context.Context, orgID int64, ids []int64) ([]models.Event, error) {
	if len(ids) == 0 {
		return []models.Event{}, nil
	}
	var rows []eventRow
	if err := sqlx.SelectContext(ctx, o.q, &rows, `SELECT `+eventCols+` FROM events e
		WHERE e.org_id = ? AND e.id IN (SELECT value FROM json_each(?))`, orgID, idSet(ids)); err != nil {
		return nil, fmt.Errorf("store: events: %w", err)
	}

	byID := make(map[int64]*models.Event, len(rows))
	for i := range rows {
		e := &rows[i].Event
		if err := json.Unmarshal([]byte(rows[i].AuthorsJSON), &e.Authors); err != nil {
			return nil, fmt.Errorf("store: event %d authors: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(rows[i].MetaJSON), &e.Meta); err != nil {
			return nil, fmt.Errorf("store: event %d meta: %w", e.ID, err)
		}
		if e.Authors == nil {
			e.Authors = []string{}
		}
		e.Created = e.Created.UTC()
		e.Updated = e.Updated.UTC()
		e.TagIDs = []int64{}
		e.ThingIDs = []int64{}
		e.ContentItemIDs = []int64{}
		byID[e.ID] = e
	}

	links := []struct {
		table, col string
		add        func(*models.Event, int64)
	}{
		{"events_tags", "tag_id", func(e *models.Event, id int64) { e.TagIDs = append(e.TagIDs, id) }},
		{"things_events", "thing_id", func(e *models.Event, id int64) { e.ThingIDs = append(e.ThingIDs, id) }},
		{"content_items_events", "content_item_id", func(e *models.Event, id int64) { e.ContentItemIDs = append(e.ContentItemIDs, id) }},
	}
	for _, l := range links {
		var pairs []struct {
			EventID int64 `db:"event_id"`
			ID      int64 `db:"id"`
		}
		query := `SELECT event_id, ` + l.col + ` AS id FROM ` + l.table + `
			WHERE event_id IN (SELECT value FROM json_each(?)) ORDER BY ` + l.col
		if err := sqlx.SelectContext(ctx, o.q, &pairs, query, idSet(ids)); err != nil {
			return nil, fmt.Errorf("store: event %s: %w", l.table, err)
		}
		for _, p := range pairs {
			if e, ok := byID[p.EventID]; ok {
				l.add(e, p.ID)
			}
		}
	}

	out := make([]models.Event, 0, len(rows))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

// CreateEvent inserts an event with its tag, thing and content item links.
func (o ops) CreateEvent(ctx context.Context, e *models.Event) error {
	if e.Status == "" {
		e.Status = models.EventStatusPending
	}
	if e.Created.IsZero() {
		e.Created = now()
	}
	if e.Updated.IsZero() {
		e.Updated = e.Created
	}
	e.Created = e.Created.UTC()
	e.Updated = e.Updated.UTC()
	authors, meta, err := eventJSON(e)
	if err != nil {
		return err
	}

	res, err := o.q.ExecContext(ctx, `
		INSERT INTO events (org_id, recipe_id, source_id, status, url, img_url, title,
			description, body, authors, meta, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.OrgID, e.RecipeID, e.SourceID, e.Status, e.URL, e.ImgURL, e.Title,
		e.Description, e.Body, authors, meta, e.Created, e.Updated)
	if err != nil {
		return fmt.Errorf("store: insert event: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("store: insert event: %w", err)
	}
	if err := o.AddEventTags(ctx, e.ID, e.TagIDs); err != nil {
		return err
	}
	if err := o.AddEventThings(ctx, e.ID, e.ThingIDs); err != nil {
		return err
	}
	for _, cid := range e.ContentItemIDs {
		if err := o.LinkContentEvent(ctx, cid, e.ID); err != nil {
			return err
		}
	}
	return ftsIndexEvent(ctx, o.q, e.ID, e.Title, e.Description, e.Body)
}

// SaveEvent writes the editable fields and status of e and stamps Updated.
// Associations are left untouched.
func (o ops) SaveEvent(ctx context.Context, e *models.Event) error {
	authors, meta, err := eventJSON(e)
	if err != nil {
		return err
	}
	e.Updated = now()
	res, err := o.q.ExecContext(ctx, `
		UPDATE events SET status = ?, url = ?, img_url = ?, title = ?, description = ?,
			body = ?, authors = ?, meta = ?, updated = ?
		WHERE id = ? AND org_id = ?`,
		e.Status, e.URL, e.ImgURL, e.Title, e.Description, e.Body, authors, meta, e.Updated, e.ID, e.OrgID)
	if err != nil {
		return fmt.Errorf("store: update event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("event %d does not exist", e.ID)
	}
	return ftsIndexEvent(ctx, o.q, e.ID, e.Title, e.Description, e.Body)
}

// TouchEvent stamps the event's updated time.
func (o ops) TouchEvent(ctx context.Context, id int64) error {
	if _, err := o.q.ExecContext(ctx, `UPDATE events SET updated = ? WHERE id = ?`, now(), id); err != nil {
		return fmt.Errorf("store: touch event: %w", err)
	}
	return nil
}

// AddEventTags links tags to an event, skipping existing links.
func (o ops) AddEventTags(ctx context.Context, eventID int64, tagIDs []int64) error {
	for _, id := range tagIDs {
		if _, err := o.q.ExecContext(ctx, `INSERT OR IGNORE INTO events_tags (event_id, tag_id) VALUES (?, ?)`, eventID, id); err != nil {
			return fmt.Errorf("store: link event tag: %w", err)
		}
	}
	return nil
}

// AddEventThings links things to an event, skipping existing links.
func (o ops) AddEventThings(ctx context.Context, eventID int64, thingIDs []int64) error {
	for _, id := range thingIDs {
		if _, err := o.q.ExecContext(ctx, `INSERT OR IGNORE INTO things_events (thing_id, event_id) VALUES (?, ?)`, id, eventID); err != nil {
			return fmt.Errorf("store: link event thing: %w", err)
		}
	}
	return nil
}

// RemoveEventTag unlinks a tag and reports whether a link existed.
func (o ops) RemoveEventTag(ctx context.Context, eventID, tagID int64) (bool, error) {
	res, err := o.q.ExecContext(ctx, `DELETE FROM events_tags WHERE event_id = ? AND tag_id = ?`, eventID, tagID)
	if err != nil {
		return false, fmt.Errorf("store: unlink event tag: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RemoveEventThing unlinks a thing and reports whether a link existed.
func (o ops) RemoveEventThing(ctx context.Context, eventID, thingID int64) (bool, error) {
	res, err := o.q.ExecContext(ctx, `DELETE FROM things_events WHERE event_id = ? AND thing_id = ?`, eventID, thingID)
	if err != nil {
		return false, fmt.Errorf("store: unlink event thing: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ClearEventAssociations removes every tag and thing link of an event.
func (o ops) ClearEventAssociations(ctx context.Context, eventID int64) error {
	if _, err := o.q.ExecContext(ctx, `DELETE FROM events_tags WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("store: clear event tags: %w", err)
	}
	if _, err := o.q.ExecContext(ctx, `DELETE FROM things_events WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("store: clear event things: %w", err)
	}
	return nil
}

func eventJSON(e *models.Event) (authors, meta string, err error) {
	if authors, err = marshalJSON(e.Authors, "[]"); err != nil {
		return "", "", fmt.Errorf("store: event authors: %w", err)
	}
	if meta, err = marshalJSON(e.Meta, "{}"); err != nil {
		return "", "", fmt.Errorf("store: event meta: %w", err)
	}
	return authors, meta, nil
}
