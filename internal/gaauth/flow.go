// Package gaauth connects an org to Google Analytics: it runs the OAuth
// consent handshake, lets the user pick a reporting view per property and
// keeps the resulting credentials as the org's auth record.
package gaauth

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/models"
	"github.com/starford/lynx/internal/session"
)

// AuthName names the auth record the credentials are kept under.
const AuthName = "google-analytics"

const profilePrefix = "profile:"

//go:embed templates/*.html
var templatesFS embed.FS

var propertiesTmpl = template.Must(template.ParseFS(templatesFS, "templates/properties.html"))

// ErrNotConfigured explains how to enable the integration.
var ErrNotConfigured = apperr.UpstreamAuth(`you must provide a "client_id" and "client_secret" under ` +
	`"google_analytics" in your configuration to enable Google Analytics integration. ` +
	`See https://developers.google.com/analytics/ for details on how to create an application.`)

// TokenStore persists auth records. *store.DB implements it.
type TokenStore interface {
	AuthToken(ctx context.Context, orgID int64, name string) (*models.AuthToken, error)
	PutAuthToken(ctx context.Context, orgID int64, name string, value map[string]any) (*models.AuthToken, error)
	DeleteAuthToken(ctx context.Context, orgID int64, name string) (bool, error)
}

// handshake is the session state of one authorization, keyed by the OAuth
// state parameter.
type handshake struct {
	OrgID       int64         `json:"org_id"`
	RedirectURI string        `json:"redirect_uri,omitempty"`
	Token       *oauth2.Token `json:"token,omitempty"`
}

// Outcome is either an HTML page to render or a URL to redirect to.
type Outcome struct {
	HTML     []byte
	Redirect string
}

// Flow runs the authorization handshake. A nil provider means the
// integration is not configured.
type Flow struct {
	provider Provider
	sessions session.Store
	tokens   TokenStore
	ttl      time.Duration
	postback string
}

// NewFlow creates a flow. Handshakes expire after ttl; postback is the path
// the properties form is submitted to.
func NewFlow(provider Provider, sessions session.Store, tokens TokenStore, ttl time.Duration, postback string) *Flow {
	return &Flow{provider: provider, sessions: sessions, tokens: tokens, ttl: ttl, postback: postback}
}

// Begin starts a handshake for orgID and returns the consent page URL.
// redirectURI, when set, receives the user once the handshake ends.
func (f *Flow) Begin(ctx context.Context, orgID int64, redirectURI string) (string, error) {
	if f.provider == nil {
		return "", ErrNotConfigured
	}
	if redirectURI != "" {
		if u, err := url.Parse(redirectURI); err != nil || !u.IsAbs() {
			return "", apperr.Validation("redirect_uri: must be an absolute URL")
		}
	}
	state := uuid.NewString()
	if err := f.sessions.Put(ctx, state, handshake{OrgID: orgID, RedirectURI: redirectURI}, f.ttl); err != nil {
		return "", err
	}
	return f.provider.AuthCodeURL(state), nil
}

// Callback completes the consent step: it exchanges code for tokens and
// renders the property selection form. When Google returns no refresh
// token the org authorized before, so its stored credentials are reused.
func (f *Flow) Callback(ctx context.Context, state, code string) (*Outcome, error) {
	if f.provider == nil {
		return nil, ErrNotConfigured
	}
	var h handshake
	if err := f.sessions.Get(ctx, state, &h); err != nil {
		return nil, expired(err)
	}
	if code == "" {
		return f.fail(ctx, state, h, "google analytics access was not granted")
	}

	tok, err := f.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" {
		stored, err := f.tokens.AuthToken(ctx, h.OrgID, AuthName)
		if errors.Is(err, apperr.ErrNotFound) {
			return f.fail(ctx, state, h, "it seems you have authorized google analytics already, but there is no "+
				"record of it; revoke access at https://myaccount.google.com/permissions and authorize again")
		}
		if err != nil {
			return nil, err
		}
		if tok, err = tokenFromValue(stored.Value); err != nil {
			return nil, err
		}
	}

	props, err := f.provider.Properties(ctx, tok)
	if err != nil {
		return nil, err
	}
	h.Token = tok
	if err := f.sessions.Put(ctx, state, h, f.ttl); err != nil {
		return nil, err
	}

	var page strings.Builder
	err = propertiesTmpl.Execute(&page, struct {
		Properties []Property
		Postback   string
	}{props, f.postback + "?state=" + url.QueryEscape(state)})
	if err != nil {
		return nil, fmt.Errorf("gaauth: render properties: %w", err)
	}
	return &Outcome{HTML: []byte(page.String())}, nil
}

// SaveProperties ends the handshake: it stores the tokens plus the chosen
// view per property as the org's auth record. form holds one
// "profile:<property>" field per property; empty choices are skipped.
func (f *Flow) SaveProperties(ctx context.Context, state string, form url.Values) (map[string]any, *Outcome, error) {
	var h handshake
	if err := f.sessions.Take(ctx, state, &h); err != nil {
		return nil, nil, expired(err)
	}
	if h.Token == nil {
		return nil, nil, apperr.Validation("the authorization has not been granted yet")
	}

	value, err := tokenValue(h.Token)
	if err != nil {
		return nil, nil, err
	}
	props := []any{}
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		prop, ok := strings.CutPrefix(k, profilePrefix)
		if !ok || form.Get(k) == "" {
			continue
		}
		props = append(props, map[string]any{"property": prop, "profile": form.Get(k)})
	}
	value["properties"] = props

	rec, err := f.tokens.PutAuthToken(ctx, h.OrgID, AuthName, value)
	if err != nil {
		return nil, nil, err
	}
	if h.RedirectURI != "" {
		return rec.Value, &Outcome{Redirect: withQuery(h.RedirectURI, "auth_success", "true")}, nil
	}
	return rec.Value, nil, nil
}

// Revoke invalidates the org's credentials upstream and deletes the record.
func (f *Flow) Revoke(ctx context.Context, orgID int64) error {
	rec, err := f.tokens.AuthToken(ctx, orgID, AuthName)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("you have not authorized google analytics yet")
	}
	if err != nil {
		return err
	}
	if f.provider == nil {
		return ErrNotConfigured
	}
	tok, err := tokenFromValue(rec.Value)
	if err != nil {
		return err
	}
	if err := f.provider.Revoke(ctx, tok); err != nil {
		return err
	}
	_, err = f.tokens.DeleteAuthToken(ctx, orgID, AuthName)
	return err
}

// fail ends the handshake unsuccessfully, redirecting when the caller gave
// a redirect URI.
func (f *Flow) fail(ctx context.Context, state string, h handshake, msg string) (*Outcome, error) {
	_ = f.sessions.Delete(ctx, state)
	if h.RedirectURI == "" {
		return nil, apperr.UpstreamAuth("%s", msg)
	}
	return &Outcome{Redirect: withQuery(h.RedirectURI, "auth_success", "false")}, nil
}

func expired(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.UpstreamAuth("the authorization request is unknown or has expired; start again")
	}
	return err
}

func tokenValue(tok *oauth2.Token) (map[string]any, error) {
	data, err := json.Marshal(tok)
	if err != nil {
		return nil, fmt.Errorf("gaauth: encode token: %w", err)
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("gaauth: encode token: %w", err)
	}
	return v, nil
}

func tokenFromValue(v map[string]any) (*oauth2.Token, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("gaauth: decode token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("gaauth: decode token: %w", err)
	}
	return &tok, nil
}

func withQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
