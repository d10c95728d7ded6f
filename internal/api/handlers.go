package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/contentservice"
	"github.com/starford/lynx/internal/eventservice"
	"github.com/starford/lynx/internal/filter"
	"github.com/starford/lynx/internal/paginate"
	"github.com/starford/lynx/internal/sse"
)

// Handler holds the content and event route handlers.
type Handler struct {
	content *contentservice.Service
	events  *eventservice.Service
	broker  *sse.Broker
}

// NewHandler creates a new Handler.
func NewHandler(content *contentservice.Service, events *eventservice.Service, broker *sse.Broker) *Handler {
	return &Handler{content: content, events: events, broker: broker}
}

// idParam parses the numeric URL parameter name.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("%s: %q is not a valid id", name, raw)
	}
	return id, nil
}

func searchResponse(r *http.Request, items any, total, page, perPage int, facets map[string]any) SearchResponse {
	return SearchResponse{
		Items:      items,
		Total:      total,
		Pagination: paginate.Build(r.URL, total, page, perPage),
		Facets:     facets,
	}
}

// SearchContent handles GET /api/v1/content.
//
//	@Summary		Search content items
//	@Tags			content
//	@Produce		json
//	@Param			q			query		string	false	"Full-text query"
//	@Param			search		query		string	false	"Text vector"	Enums(all, title, body, description, meta, authors)
//	@Param			sort		query		string	false	"Sort field, '-' prefix for descending"
//	@Param			fields		query		string	false	"Comma-separated projection"
//	@Param			facets		query		string	false	"Comma-separated facets or 'all'"
//	@Param			page		query		int		false	"Page number"
//	@Param			per_page	query		int		false	"Page size"
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/content [get]
func (h *Handler) SearchContent(w http.ResponseWriter, r *http.Request) {
	org := orgFrom(r.Context())
	p, err := filter.ContentParamsFromQuery(org.ID, r.URL.Query())
	if err != nil {
		writeError(w, "search content", err)
		return
	}
	res, err := h.content.Search(r.Context(), p)
	if err != nil {
		writeError(w, "search content", err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse(r, res.Items, res.Total, res.Page, res.PerPage, res.Facets))
}

// GetContentItem handles GET /api/v1/content/{id}.
//
//	@Summary		Get a content item
//	@Tags			content
//	@Produce		json
//	@Param			id			path		int		true	"Content item id"
//	@Param			incl_body	query		bool	false	"Include the body"
//	@Success		200			{object}	ContentItem
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/content/{id} [get]
func (h *Handler) GetContentItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, "get content item", err)
		return
	}
	inclBody := false
	if raw := r.URL.Query().Get("incl_body"); raw != "" {
		if inclBody, err = strconv.ParseBool(raw); err != nil {
			writeError(w, "get content item", apperr.Validation("incl_body: %q is not a boolean", raw))
			return
		}
	}
	item, err := h.content.Get(r.Context(), orgFrom(r.Context()).ID, id, inclBody)
	if err != nil {
		writeError(w, "get content item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// SearchEvents handles GET /api/v1/events.
//
//	@Summary		Search events
//	@Tags			events
//	@Produce		json
//	@Param			status		query		string	false	"Event status"	Enums(pending, approved, deleted)
//	@Param			q			query		string	false	"Full-text query"
//	@Param			facets		query		string	false	"Comma-separated facets or 'all'"
//	@Param			page		query		int		false	"Page number"
//	@Param			per_page	query		int		false	"Page size"
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events [get]
func (h *Handler) SearchEvents(w http.ResponseWriter, r *http.Request) {
	org := orgFrom(r.Context())
	p, err := filter.EventParamsFromQuery(org.ID, r.URL.Query())
	if err != nil {
		writeError(w, "search events", err)
		return
	}
	res, err := h.events.Search(r.Context(), p)
	if err != nil {
		writeError(w, "search events", err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse(r, res.Items, res.Total, res.Page, res.PerPage, res.Facets))
}

// GetEvent handles GET /api/v1/events/{id}.
//
//	@Summary		Get an event
//	@Tags			events
//	@Produce		json
//	@Param			id	path		int	true	"Event id"
//	@Success		200	{object}	Event
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id} [get]
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, "get event", err)
		return
	}
	e, err := h.events.Get(r.Context(), orgFrom(r.Context()).ID, id)
	if err != nil {
		writeError(w, "get event", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// UpdateEvent handles PUT and PATCH /api/v1/events/{id}. Supplying both
// tag_ids and thing_ids approves the event.
//
//	@Summary		Update, approve or delete an event
//	@Tags			events
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Event id"
//	@Param			body	body		UpdateEventRequest	true	"Changes"
//	@Success		200		{object}	Event
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id} [put]
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, "update event", err)
		return
	}
	var req UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "update event", err)
		return
	}
	e, err := h.events.Update(r.Context(), orgFrom(r.Context()).ID, id, req)
	if err != nil {
		writeError(w, "update event", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEvent handles DELETE /api/v1/events/{id}. The row is kept with
// status deleted so the event is not ingested again.
//
//	@Summary		Soft-delete an event
//	@Tags			events
//	@Param			id	path	int	true	"Event id"
//	@Success		204	"Event deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id} [delete]
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, "delete event", err)
		return
	}
	if err := h.events.Delete(r.Context(), orgFrom(r.Context()).ID, id); err != nil {
		writeError(w, "delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// association builds a handler for the tag and thing sub-resources.
func (h *Handler) association(op, param string, fn func(r *http.Request, orgID, id, otherID int64) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, op, err)
			return
		}
		otherID, err := idParam(r, param)
		if err != nil {
			writeError(w, op, err)
			return
		}
		out, err := fn(r, orgFrom(r.Context()).ID, id, otherID)
		if err != nil {
			writeError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// AddEventTag handles PUT and PATCH /api/v1/events/{id}/tags/{tag_id}.
//
//	@Summary		Attach an impact tag to an approved event
//	@Tags			events
//	@Produce		json
//	@Param			id		path		int	true	"Event id"
//	@Param			tag_id	path		int	true	"Tag id"
//	@Success		200		{object}	Event
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id}/tags/{tag_id} [put]
func (h *Handler) AddEventTag(w http.ResponseWriter, r *http.Request) {
	h.association("add event tag", "tag_id", func(r *http.Request, orgID, id, tagID int64) (any, error) {
		return h.events.AddTag(r.Context(), orgID, id, tagID)
	})(w, r)
}

// RemoveEventTag handles DELETE /api/v1/events/{id}/tags/{tag_id}.
//
//	@Summary		Detach a tag from an approved event
//	@Tags			events
//	@Produce		json
//	@Param			id		path		int	true	"Event id"
//	@Param			tag_id	path		int	true	"Tag id"
//	@Success		200		{object}	Event
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id}/tags/{tag_id} [delete]
func (h *Handler) RemoveEventTag(w http.ResponseWriter, r *http.Request) {
	h.association("remove event tag", "tag_id", func(r *http.Request, orgID, id, tagID int64) (any, error) {
		return h.events.RemoveTag(r.Context(), orgID, id, tagID)
	})(w, r)
}

// AddEventThing handles PUT /api/v1/events/{id}/things/{thing_id}.
func (h *Handler) AddEventThing(w http.ResponseWriter, r *http.Request) {
	h.association("add event thing", "thing_id", func(r *http.Request, orgID, id, thingID int64) (any, error) {
		return h.events.AddThing(r.Context(), orgID, id, thingID)
	})(w, r)
}

// RemoveEventThing handles DELETE /api/v1/events/{id}/things/{thing_id}.
func (h *Handler) RemoveEventThing(w http.ResponseWriter, r *http.Request) {
	h.association("remove event thing", "thing_id", func(r *http.Request, orgID, id, thingID int64) (any, error) {
		return h.events.RemoveThing(r.Context(), orgID, id, thingID)
	})(w, r)
}

// Stream handles GET /api/v1/stream, the caller's org change feed.
//
//	@Summary		Server-sent event change stream
//	@Tags			events
//	@Produce		text/event-stream
//	@Security		BearerAuth
//	@Router			/stream [get]
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	h.broker.Serve(w, r, orgFrom(r.Context()).ID)
}
