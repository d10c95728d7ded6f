package api

import (
	"github.com/starford/lynx/internal/eventservice"
	"github.com/starford/lynx/internal/models"
	"github.com/starford/lynx/internal/paginate"
)

// SearchResponse wraps one page of content or event search results.
type SearchResponse struct {
	// Items holds full records, or maps of the requested fields.
	Items      any            `json:"items" validate:"required"`
	Total      int            `json:"total" example:"42" validate:"required"`
	Pagination paginate.Page  `json:"pagination" validate:"required"`
	Facets     map[string]any `json:"facets,omitempty"`
}

// UpdateEventRequest is the request body for updating an event (aliased
// from the domain layer).
type UpdateEventRequest = eventservice.Update

// Event is the event response type.
type Event = models.Event

// ContentItem is the content item response type.
type ContentItem = models.ContentItem
