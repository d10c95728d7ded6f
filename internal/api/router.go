package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/lynx/internal/contentservice"
	"github.com/starford/lynx/internal/eventservice"
	"github.com/starford/lynx/internal/gaauth"
	"github.com/starford/lynx/internal/sse"
)

// Deps are the services the router dispatches to.
type Deps struct {
	Content   *contentservice.Service
	Events    *eventservice.Service
	Orgs      OrgLookup
	Analytics *gaauth.Flow
	// Broker, if non-nil, is served at GET /stream.
	Broker *sse.Broker
	Auth   AuthOptions
}

// NewRouter creates a chi router with all v1 routes. It is meant to be
// mounted at /api/v1.
//
// The Google Analytics callback and properties routes sit outside the auth
// group: Google and the user's browser call them, and the handshake state
// they carry identifies the org.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d.Content, d.Events, d.Broker)
	ga := NewAnalyticsHandler(d.Analytics)

	r := chi.NewRouter()

	r.Get("/auth/google-analytics/callback", ga.Callback)
	r.Post("/auth/google-analytics/properties", ga.SaveProperties)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(d.Auth))
		r.Use(OrgMiddleware(d.Orgs))

		// Content.
		r.Get("/content", h.SearchContent)
		r.Get("/content/{id}", h.GetContentItem)

		// Events.
		r.Get("/events", h.SearchEvents)
		r.Get("/events/{id}", h.GetEvent)
		r.Put("/events/{id}", h.UpdateEvent)
		r.Patch("/events/{id}", h.UpdateEvent)
		r.Delete("/events/{id}", h.DeleteEvent)

		r.Put("/events/{id}/tags/{tag_id}", h.AddEventTag)
		r.Patch("/events/{id}/tags/{tag_id}", h.AddEventTag)
		r.Delete("/events/{id}/tags/{tag_id}", h.RemoveEventTag)
		r.Put("/events/{id}/things/{thing_id}", h.AddEventThing)
		r.Delete("/events/{id}/things/{thing_id}", h.RemoveEventThing)

		// Google Analytics authorization.
		r.Get("/auth/google-analytics", ga.Begin)
		r.Get("/auth/google-analytics/revoke", ga.Revoke)
		r.Delete("/auth/google-analytics/revoke", ga.Revoke)

		if d.Broker != nil {
			r.Get("/stream", h.Stream)
		}
	})

	return r
}
