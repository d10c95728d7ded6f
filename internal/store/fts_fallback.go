//go:build !sqlite_fts5

package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/starford/lynx/internal/sqlq"
)

// FTSEnabled reports whether full-text search runs on FTS5.
const FTSEnabled = false

func initFTS(_ *sqlx.DB) error {
	// FTS5 not available; text search uses LIKE over the base columns.
	return nil
}

func ftsIndexContent(_ context.Context, _ sqlx.ExecerContext, _ int64, _ contentDoc) error {
	return nil
}

func ftsIndexEvent(_ context.Context, _ sqlx.ExecerContext, _ int64, _, _, _ string) error {
	return nil
}

// vectorWeights ranks title hits above description hits above the rest.
var vectorWeights = map[string]int{
	"title":       4,
	"description": 2,
	"body":        1,
	"meta":        1,
	"authors":     3,
}

func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func contentVectorLike(alias, vector string) string {
	if vector == "authors" {
		return "EXISTS (SELECT 1 FROM content_items_authors ca JOIN authors a ON a.id = ca.author_id" +
			" WHERE ca.content_item_id = " + alias + ".id AND a.name LIKE ? ESCAPE '\\')"
	}
	return alias + "." + vector + " LIKE ? ESCAPE '\\'"
}

// textMatch requires every term to hit at least one of vectors and scores
// rows by the weighted number of hits.
func textMatch(vectors []string, like func(string) string, query string) (where, rank sqlq.Expr) {
	var conds, scores []string
	var condArgs, scoreArgs []any
	for _, t := range strings.Fields(query) {
		p := likePattern(t)
		ors := make([]string, 0, len(vectors))
		for _, v := range vectors {
			expr := like(v)
			ors = append(ors, expr)
			condArgs = append(condArgs, p)
			scores = append(scores, "CASE WHEN "+expr+" THEN "+strconv.Itoa(vectorWeights[v])+" ELSE 0 END")
			scoreArgs = append(scoreArgs, p)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if len(conds) == 0 {
		return sqlq.Expr{}, sqlq.Expr{}
	}
	where = sqlq.E(strings.Join(conds, " AND "), condArgs...)
	rank = sqlq.E("("+strings.Join(scores, " + ")+") DESC", scoreArgs...)
	return where, rank
}

func contentText(alias, vector, query string) (where, rank sqlq.Expr) {
	vectors := []string{vector}
	if vector == "all" {
		vectors = []string{"title", "body", "description", "meta", "authors"}
	}
	return textMatch(vectors, func(v string) string { return contentVectorLike(alias, v) }, query)
}

func eventText(alias, query string) (where, rank sqlq.Expr) {
	return textMatch([]string{"title", "description", "body"},
		func(v string) string { return alias + "." + v + " LIKE ? ESCAPE '\\'" }, query)
}
