//go:build sqlite_fts5

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/starford/lynx/internal/sqlq"
)

// FTSEnabled reports whether full-text search runs on FTS5.
const FTSEnabled = true

func initFTS(conn *sqlx.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS content_fts USING fts5(
			title,
			body,
			description,
			meta,
			authors,
			tokenize = 'unicode61 remove_diacritics 2'
		);
		CREATE VIRTUAL TABLE IF NOT EXISTS events_fts USING fts5(
			title,
			description,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsIndexContent(ctx context.Context, q sqlx.ExecerContext, id int64, doc contentDoc) error {
	_, _ = q.ExecContext(ctx, `DELETE FROM content_fts WHERE rowid = ?`, id)
	_, err := q.ExecContext(ctx, `INSERT INTO content_fts (rowid, title, body, description, meta, authors) VALUES (?, ?, ?, ?, ?, ?)`,
		id, doc.Title, doc.Body, doc.Description, doc.Meta, doc.Authors)
	if err != nil {
		return fmt.Errorf("store: index content fts: %w", err)
	}
	return nil
}

func ftsIndexEvent(ctx context.Context, q sqlx.ExecerContext, id int64, title, description, body string) error {
	_, _ = q.ExecContext(ctx, `DELETE FROM events_fts WHERE rowid = ?`, id)
	_, err := q.ExecContext(ctx, `INSERT INTO events_fts (rowid, title, description, body) VALUES (?, ?, ?, ?)`,
		id, title, description, body)
	if err != nil {
		return fmt.Errorf("store: index event fts: %w", err)
	}
	return nil
}

// matchExpr builds an FTS5 query requiring every term, optionally limited
// to one column.
func matchExpr(column, query string) string {
	terms := strings.Fields(query)
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted := `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
		if column != "" {
			quoted = column + " : " + quoted
		}
		parts = append(parts, quoted)
	}
	return strings.Join(parts, " ")
}

func contentText(alias, vector, query string) (where, rank sqlq.Expr) {
	column := vector
	if vector == "all" {
		column = ""
	}
	m := matchExpr(column, query)
	where = sqlq.E(alias+".id IN (SELECT rowid FROM content_fts WHERE content_fts MATCH ?)", m)
	rank = sqlq.E("(SELECT bm25(content_fts) FROM content_fts WHERE content_fts MATCH ? AND rowid = "+alias+".id) ASC", m)
	return where, rank
}

func eventText(alias, query string) (where, rank sqlq.Expr) {
	m := matchExpr("", query)
	where = sqlq.E(alias+".id IN (SELECT rowid FROM events_fts WHERE events_fts MATCH ?)", m)
	rank = sqlq.E("(SELECT bm25(events_fts) FROM events_fts WHERE events_fts MATCH ? AND rowid = "+alias+".id) ASC", m)
	return where, rank
}
