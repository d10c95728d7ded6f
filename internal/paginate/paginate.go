// Package paginate builds the pagination block of search responses.
package paginate

import (
	"math"
	"net/url"
	"strconv"
)

// Page describes where a page sits in a result set. Links echo every query
// parameter of the original request with only "page" replaced.
type Page struct {
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	TotalPages int    `json:"total_pages"`
	First      string `json:"first"`
	Last       string `json:"last"`
	Prev       string `json:"prev,omitempty"`
	Next       string `json:"next,omitempty"`
}

// TotalPages returns ceil(total/perPage), and 1 for an empty set.
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

// Offset returns the row offset of a 1-indexed page. Offsets too large for
// an int saturate at math.MaxInt, which is still past every row.
func Offset(page, perPage int) int {
	if page < 1 || perPage < 1 {
		return 0
	}
	if page-1 > math.MaxInt/perPage {
		return math.MaxInt
	}
	return (page - 1) * perPage
}

// Build returns the descriptor for page. A page past the last still gets a
// descriptor, with prev pointing at the last real page.
func Build(u *url.URL, total, page, perPage int) Page {
	pages := TotalPages(total, perPage)
	p := Page{
		Page:       page,
		PerPage:    perPage,
		TotalPages: pages,
		First:      link(u, 1),
		Last:       link(u, pages),
	}
	if page > 1 {
		p.Prev = link(u, min(page-1, pages))
	}
	if page < pages {
		p.Next = link(u, page+1)
	}
	return p
}

func link(u *url.URL, page int) string {
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	out := *u
	out.RawQuery = q.Encode()
	out.Fragment = ""
	return out.RequestURI()
}
