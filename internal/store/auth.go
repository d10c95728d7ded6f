package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/starford/lynx/internal/models"
)

type authRow struct {
	models.AuthToken
	ValueJSON string `db:"value"`
}

// AuthToken returns the org's credential record for a provider.
func (o ops) AuthToken(ctx context.Context, orgID int64, name string) (*models.AuthToken, error) {
	var row authRow
	err := sqlx.GetContext(ctx, o.q, &row, `
		SELECT id, org_id, name, value, created, updated FROM auths
		WHERE org_id = ? AND name = ?`, orgID, name)
	if err != nil {
		return nil, notFound(err, "there is no %s authorization for this org", name)
	}
	tok := row.AuthToken
	if err := json.Unmarshal([]byte(row.ValueJSON), &tok.Value); err != nil {
		return nil, fmt.Errorf("store: auth value: %w", err)
	}
	return &tok, nil
}

// PutAuthToken creates or overwrites the org's credential record for a
// provider.
func (o ops) PutAuthToken(ctx context.Context, orgID int64, name string, value map[string]any) (*models.AuthToken, error) {
	raw, err := marshalJSON(value, "{}")
	if err != nil {
		return nil, fmt.Errorf("store: auth value: %w", err)
	}
	ts := now()
	_, err = o.q.ExecContext(ctx, `
		INSERT INTO auths (org_id, name, value, created, updated) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(org_id, name) DO UPDATE SET
			value   = excluded.value,
			updated = excluded.updated`, orgID, name, raw, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("store: upsert auth: %w", err)
	}
	return o.AuthToken(ctx, orgID, name)
}

// DeleteAuthToken removes the org's credential record and reports whether it
// existed.
func (o ops) DeleteAuthToken(ctx context.Context, orgID int64, name string) (bool, error) {
	res, err := o.q.ExecContext(ctx, `DELETE FROM auths WHERE org_id = ? AND name = ?`, orgID, name)
	if err != nil {
		return false, fmt.Errorf("store: delete auth: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
