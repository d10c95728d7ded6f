package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/models"
)

type contentRow struct {
	models.ContentItem
	MetaJSON string `db:"meta"`
}

// contentDoc is the text indexed for one content item.
type contentDoc struct {
	Title, Body, Description, Meta, Authors string
}

const contentCols = `c.id, c.org_id, c.recipe_id, c.url, c.domain, c.type, c.provenance,
	c.title, c.description, c.site_name, c.favicon, c.img_url, c.meta, c.created, c.updated`

// ContentItem returns one content item of the org. Body is loaded only when
// inclBody is set.
func (o ops) ContentItem(ctx context.Context, orgID, id int64, inclBody bool) (*models.ContentItem, error) {
	items, err := o.ContentItemsByIDs(ctx, orgID, []int64{id}, inclBody)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("content item %d does not exist", id)
	}
	return &items[0], nil
}

// ContentItemsByIDs hydrates content items in the order of ids, with their
// authors and tag ids. Unknown ids are skipped.
func (o ops) ContentItemsByIDs(ctx context.Context, orgID int64, ids []int64, inclBody bool) ([]models.ContentItem, error) {
	if len(ids) == 0 {
		return []models.ContentItem{}, nil
	}
	cols := contentCols
	if inclBody {
		cols += ", c.body"
	}
	query := `SELECT ` + cols + ` FROM content_items c
		WHERE c.org_id = ? AND c.id IN (SELECT value FROM json_each(?))`
	var rows []contentRow
	if err := sqlx.SelectContext(ctx, o.q, &rows, query, orgID, idSet(ids)); err != nil {
		return nil, fmt.Errorf("store: content items: %w", err)
	}

	byID := make(map[int64]*models.ContentItem, len(rows))
	for i := range rows {
		it := &rows[i].ContentItem
		if err := json.Unmarshal([]byte(rows[i].MetaJSON), &it.Meta); err != nil {
			return nil, fmt.Errorf("store: content item %d meta: %w", it.ID, err)
		}
		it.Created = it.Created.UTC()
		it.Updated = it.Updated.UTC()
		it.Authors = []models.AuthorRef{}
		it.TagIDs = []int64{}
		byID[it.ID] = it
	}

	var tags []struct {
		ItemID int64 `db:"content_item_id"`
		TagID  int64 `db:"tag_id"`
	}
	if err := sqlx.SelectContext(ctx, o.q, &tags, `
		SELECT content_item_id, tag_id FROM content_items_tags
		WHERE content_item_id IN (SELECT value FROM json_each(?))
		ORDER BY tag_id`, idSet(ids)); err != nil {
		return nil, fmt.Errorf("store: content item tags: %w", err)
	}
	for _, t := range tags {
		if it, ok := byID[t.ItemID]; ok {
			it.TagIDs = append(it.TagIDs, t.TagID)
		}
	}

	var authors []struct {
		ItemID int64  `db:"content_item_id"`
		ID     int64  `db:"id"`
		Name   string `db:"name"`
	}
	if err := sqlx.SelectContext(ctx, o.q, &authors, `
		SELECT ca.content_item_id, a.id, a.name
		FROM content_items_authors ca JOIN authors a ON a.id = ca.author_id
		WHERE ca.content_item_id IN (SELECT value FROM json_each(?))
		ORDER BY a.name`, idSet(ids)); err != nil {
		return nil, fmt.Errorf("store: content item authors: %w", err)
	}
	for _, a := range authors {
		if it, ok := byID[a.ItemID]; ok {
			it.Authors = append(it.Authors, models.AuthorRef{ID: a.ID, Name: a.Name})
		}
	}

	out := make([]models.ContentItem, 0, len(rows))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, *it)
		}
	}
	return out, nil
}

// EventIDsForContent returns the distinct event ids linked to any of ids.
func (o ops) EventIDsForContent(ctx context.Context, ids []int64) ([]int64, error) {
	var out []int64
	if err := sqlx.SelectContext(ctx, o.q, &out, `
		SELECT DISTINCT event_id FROM content_items_events
		WHERE content_item_id IN (SELECT value FROM json_each(?))`, idSet(ids)); err != nil {
		return nil, fmt.Errorf("store: event ids for content: %w", err)
	}
	return out, nil
}

// CreateContentItem inserts a content item with its tag and author links.
// Created/Updated default to now.
func (o ops) CreateContentItem(ctx context.Context, it *models.ContentItem) error {
	meta, err := marshalJSON(it.Meta, "{}")
	if err != nil {
		return fmt.Errorf("store: content item meta: %w", err)
	}
	if it.Created.IsZero() {
		it.Created = now()
	}
	if it.Updated.IsZero() {
		it.Updated = it.Created
	}
	if it.Provenance == "" {
		it.Provenance = models.ProvenanceManual
	}
	it.Created = it.Created.UTC()
	it.Updated = it.Updated.UTC()

	res, err := o.q.ExecContext(ctx, `
		INSERT INTO content_items (org_id, recipe_id, url, domain, type, provenance, title,
			description, body, site_name, favicon, img_url, meta, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.OrgID, it.RecipeID, it.URL, it.Domain, it.Type, it.Provenance, it.Title,
		it.Description, it.Body, it.SiteName, it.Favicon, it.ImgURL, meta, it.Created, it.Updated)
	if err != nil {
		return fmt.Errorf("store: insert content item: %w", err)
	}
	if it.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("store: insert content item: %w", err)
	}

	for _, tagID := range it.TagIDs {
		if _, err := o.q.ExecContext(ctx, `INSERT OR IGNORE INTO content_items_tags (content_item_id, tag_id) VALUES (?, ?)`, it.ID, tagID); err != nil {
			return fmt.Errorf("store: link content tag: %w", err)
		}
	}
	names := make([]string, 0, len(it.Authors))
	for _, a := range it.Authors {
		if _, err := o.q.ExecContext(ctx, `INSERT OR IGNORE INTO content_items_authors (content_item_id, author_id) VALUES (?, ?)`, it.ID, a.ID); err != nil {
			return fmt.Errorf("store: link content author: %w", err)
		}
		names = append(names, a.Name)
	}

	return ftsIndexContent(ctx, o.q, it.ID, contentDoc{
		Title:       it.Title,
		Body:        it.Body,
		Description: it.Description,
		Meta:        meta,
		Authors:     strings.Join(names, " "),
	})
}

// LinkContentEvent associates a content item with an event.
func (o ops) LinkContentEvent(ctx context.Context, contentItemID, eventID int64) error {
	_, err := o.q.ExecContext(ctx, `INSERT OR IGNORE INTO content_items_events (content_item_id, event_id) VALUES (?, ?)`, contentItemID, eventID)
	if err != nil {
		return fmt.Errorf("store: link content event: %w", err)
	}
	return nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(format, args...)
	}
	return fmt.Errorf("store: %w", err)
}
