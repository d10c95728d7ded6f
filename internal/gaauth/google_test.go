package gaauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func fakeGoogle(t *testing.T, revoked *[]string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "code-1", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-1", "refresh_token": "refresh-1", "token_type": "Bearer", "expires_in": 3600,
		})
	})
	mux.HandleFunc("GET /analytics/v3/management/accounts/~all/webproperties/~all/profiles", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{
			{"websiteUrl": "https://news.example.com", "name": "All traffic"},
			{"websiteUrl": "", "name": "Orphan"},
			{"websiteUrl": "https://blog.example.com", "name": "Default"},
			{"websiteUrl": "https://news.example.com", "name": "Mobile"},
		}})
	})
	mux.HandleFunc("POST /revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		*revoked = append(*revoked, r.PostForm.Get("token"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogle(srv *httptest.Server) *Google {
	return NewGoogle(GoogleConfig{
		ClientID:      "client",
		ClientSecret:  "secret",
		RedirectURL:   "https://lynx.example.com/api/v1/auth/google-analytics/callback",
		Endpoint:      oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
		ManagementURL: srv.URL + "/analytics/v3/",
		RevokeURL:     srv.URL + "/revoke",
		HTTPClient:    srv.Client(),
	})
}

func TestGoogle_AuthCodeURL(t *testing.T) {
	g := NewGoogle(GoogleConfig{ClientID: "client", RedirectURL: "https://lynx.example.com/cb"})
	u, err := url.Parse(g.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, Scope, q.Get("scope"))
	assert.Equal(t, "https://lynx.example.com/cb", q.Get("redirect_uri"))
}

func TestGoogle_ExchangeAndProperties(t *testing.T) {
	var revoked []string
	g := newTestGoogle(fakeGoogle(t, &revoked))
	ctx := context.Background()

	tok, err := g.Exchange(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", tok.RefreshToken)

	props, err := g.Properties(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, []Property{
		{Property: "https://blog.example.com", Profiles: []string{"Default"}},
		{Property: "https://news.example.com", Profiles: []string{"All traffic", "Mobile"}},
	}, props)

	_, err = g.Properties(ctx, &oauth2.Token{AccessToken: "wrong"})
	assert.ErrorContains(t, err, "unexpected status 401")
}

func TestGoogle_Revoke(t *testing.T) {
	var revoked []string
	g := newTestGoogle(fakeGoogle(t, &revoked))

	require.NoError(t, g.Revoke(context.Background(), &oauth2.Token{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, g.Revoke(context.Background(), &oauth2.Token{AccessToken: "a"}))
	assert.Equal(t, []string{"r", "a"}, revoked)
}
