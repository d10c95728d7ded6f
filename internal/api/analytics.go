package api

import (
	"net/http"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/gaauth"
)

// AnalyticsHandler serves the Google Analytics authorization handshake.
type AnalyticsHandler struct {
	flow *gaauth.Flow
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(flow *gaauth.Flow) *AnalyticsHandler {
	return &AnalyticsHandler{flow: flow}
}

// Begin handles GET /api/v1/auth/google-analytics and redirects the user to
// Google's consent page.
//
//	@Summary		Start Google Analytics authorization
//	@Tags			auth
//	@Param			redirect_uri	query	string	false	"Where to send the user once authorization ends"
//	@Success		302
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/auth/google-analytics [get]
func (h *AnalyticsHandler) Begin(w http.ResponseWriter, r *http.Request) {
	consent, err := h.flow.Begin(r.Context(), orgFrom(r.Context()).ID, r.URL.Query().Get("redirect_uri"))
	if err != nil {
		writeError(w, "begin google analytics auth", err)
		return
	}
	http.Redirect(w, r, consent, http.StatusFound)
}

// Callback handles GET /api/v1/auth/google-analytics/callback, where Google
// returns the user with an authorization code.
func (h *AnalyticsHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.flow.Callback(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		writeError(w, "google analytics callback", err)
		return
	}
	if out.Redirect != "" {
		http.Redirect(w, r, out.Redirect, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.HTML)
}

// SaveProperties handles POST /api/v1/auth/google-analytics/properties, the
// submission of the property selection form.
func (h *AnalyticsHandler) SaveProperties(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		writeError(w, "save google analytics properties", apperr.Validation("invalid form body"))
		return
	}
	value, out, err := h.flow.SaveProperties(r.Context(), r.URL.Query().Get("state"), r.PostForm)
	if err != nil {
		writeError(w, "save google analytics properties", err)
		return
	}
	if out != nil && out.Redirect != "" {
		http.Redirect(w, r, out.Redirect, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

// Revoke handles GET and DELETE /api/v1/auth/google-analytics/revoke.
//
//	@Summary		Revoke Google Analytics authorization
//	@Tags			auth
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/auth/google-analytics/revoke [delete]
func (h *AnalyticsHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.flow.Revoke(r.Context(), orgFrom(r.Context()).ID); err != nil {
		writeError(w, "revoke google analytics auth", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
