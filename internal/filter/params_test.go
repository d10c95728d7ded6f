package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/lynx/internal/apperr"
)

func validContent() ContentParams {
	p := ContentParams{Common: Common{OrgID: 1}}
	p.ApplyDefaults(25, 100)
	return p
}

func TestContentParams_Validate(t *testing.T) {
	require.NoError(t, validContent().Validate())

	cases := []struct {
		name   string
		mutate func(*ContentParams)
		want   string
	}{
		{"unknown field", func(p *ContentParams) { p.Fields = []string{"title", "nope"} }, "fields"},
		{"bad type", func(p *ContentParams) { p.Type = "tweet" }, "type: must be one of: all, article"},
		{"bad provenance", func(p *ContentParams) { p.Provenance = "scraped" }, "provenance"},
		{"bad vector", func(p *ContentParams) { p.Vector = "comments" }, "search"},
		{"bad category", func(p *ContentParams) { p.Categories.Exclude = []string{"fame"} }, `categories: "fame" must be one of`},
		{"bad level", func(p *ContentParams) { p.Levels.Include = []string{"galaxy"} }, "levels"},
		{"bad regex", func(p *ContentParams) { p.URLRegex = "([" }, "url_regex: is not a valid regular expression"},
		{"bad sort", func(p *ContentParams) { p.Sort = Sort{Field: "meta"} }, `cannot sort by "meta"`},
		{"dates out of order", func(p *ContentParams) {
			a, b := time.Now(), time.Now().Add(-time.Hour)
			p.CreatedAfter, p.CreatedBefore = &a, &b
		}, "created_after must not be later than created_before"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validContent()
			tc.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestContentParams_RelevanceSortIsValid(t *testing.T) {
	p := validContent()
	p.Sort = Sort{Field: Relevance}
	assert.NoError(t, p.Validate())
}

func TestEventParams_Validate(t *testing.T) {
	p := EventParams{Common: Common{OrgID: 1}}
	p.ApplyDefaults(25, 100)
	require.NoError(t, p.Validate())

	p.Status = "all"
	require.NoError(t, p.Validate())

	p.Status = "archived"
	err := p.Validate()
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "status")

	p.Status = "pending"
	p.Fields = []string{"source_id", "domain"}
	err = p.Validate()
	assert.Contains(t, err.Error(), "fields")
}

func TestProject_DedupesInRequestOrder(t *testing.T) {
	cols := Project(ContentColumns, []string{"title", "id", "title"})
	require.Len(t, cols, 2)
	assert.Equal(t, "title", cols[0].Name)
	assert.Equal(t, "c.title", cols[0].Expr)
	assert.Equal(t, "id", cols[1].Name)
}
