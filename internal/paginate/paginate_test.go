package paginate

import (
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestTotalPages(t *testing.T) {
	cases := []struct{ total, perPage, want int }{
		{0, 25, 1},
		{1, 25, 1},
		{25, 25, 1},
		{26, 25, 2},
		{100, 10, 10},
		{5, 0, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TotalPages(c.total, c.perPage), "total=%d per_page=%d", c.total, c.perPage)
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Offset(1, 25))
	assert.Equal(t, 50, Offset(3, 25))
	assert.Equal(t, 0, Offset(0, 25))
	assert.Equal(t, 0, Offset(3, 0))
	assert.Equal(t, math.MaxInt, Offset(math.MaxInt, 2))
	assert.Equal(t, math.MaxInt, Offset(math.MaxInt/2+2, 2))
}

func TestBuild_MiddlePage(t *testing.T) {
	u := mustParse(t, "/api/v1/content?tag_ids=1,!2&sort=-created&page=2&per_page=10&q=mayor")
	p := Build(u, 45, 2, 10)

	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 10, p.PerPage)
	assert.Equal(t, 5, p.TotalPages)

	for name, raw := range map[string]string{"first": p.First, "last": p.Last, "prev": p.Prev, "next": p.Next} {
		got := mustParse(t, raw)
		assert.Equal(t, "/api/v1/content", got.Path, name)
		q := got.Query()
		assert.Equal(t, "1,!2", q.Get("tag_ids"), name)
		assert.Equal(t, "-created", q.Get("sort"), name)
		assert.Equal(t, "10", q.Get("per_page"), name)
		assert.Equal(t, "mayor", q.Get("q"), name)
	}
	assert.Equal(t, "1", mustParse(t, p.First).Query().Get("page"))
	assert.Equal(t, "5", mustParse(t, p.Last).Query().Get("page"))
	assert.Equal(t, "1", mustParse(t, p.Prev).Query().Get("page"))
	assert.Equal(t, "3", mustParse(t, p.Next).Query().Get("page"))
}

func TestBuild_Edges(t *testing.T) {
	u := mustParse(t, "/api/v1/events?status=approved")

	first := Build(u, 30, 1, 10)
	assert.Empty(t, first.Prev)
	assert.Equal(t, "2", mustParse(t, first.Next).Query().Get("page"))

	last := Build(u, 30, 3, 10)
	assert.Empty(t, last.Next)
	assert.NotEmpty(t, last.Prev)

	empty := Build(u, 0, 1, 10)
	assert.Equal(t, 1, empty.TotalPages)
	assert.Empty(t, empty.Prev)
	assert.Empty(t, empty.Next)
	assert.Equal(t, "approved", mustParse(t, empty.First).Query().Get("status"))
}

func TestBuild_BeyondLast(t *testing.T) {
	u := mustParse(t, "/api/v1/content?page=9")
	p := Build(u, 30, 9, 10)
	assert.Equal(t, 9, p.Page)
	assert.Equal(t, 3, p.TotalPages)
	assert.Empty(t, p.Next)
	assert.Equal(t, "3", mustParse(t, p.Prev).Query().Get("page"))
}

func TestBuild_RepeatedParams(t *testing.T) {
	u := mustParse(t, "/api/v1/content?facets=tags&facets=levels")
	p := Build(u, 20, 1, 10)
	assert.Equal(t, []string{"tags", "levels"}, mustParse(t, p.Next).Query()["facets"])
}
