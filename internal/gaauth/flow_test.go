package gaauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/session"
	"github.com/starford/lynx/internal/testutil"
)

type fakeProvider struct {
	token    *oauth2.Token
	props    []Property
	revoked  []*oauth2.Token
	lastAuth *oauth2.Token
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if code == "bad" {
		return nil, errors.New("invalid_grant")
	}
	return p.token, nil
}

func (p *fakeProvider) Properties(_ context.Context, tok *oauth2.Token) ([]Property, error) {
	p.lastAuth = tok
	return p.props, nil
}

func (p *fakeProvider) Revoke(_ context.Context, tok *oauth2.Token) error {
	p.revoked = append(p.revoked, tok)
	return nil
}

type flowWorld struct {
	*testutil.Fixture
	provider *fakeProvider
	flow     *Flow
}

func newFlowWorld(t *testing.T) *flowWorld {
	f := testutil.NewFixture(t)
	p := &fakeProvider{
		token: &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1", TokenType: "Bearer"},
		props: []Property{
			{Property: "https://news.example.com", Profiles: []string{"All traffic", "Mobile"}},
			{Property: "https://blog.example.com", Profiles: []string{"Default"}},
		},
	}
	return &flowWorld{
		Fixture:  f,
		provider: p,
		flow:     NewFlow(p, session.NewMemory(), f.DB, time.Minute, "/api/v1/auth/google-analytics/properties"),
	}
}

func stateOf(t *testing.T, consent string) string {
	t.Helper()
	u, err := url.Parse(consent)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestFlow_FullHandshake(t *testing.T) {
	w := newFlowWorld(t)
	ctx := context.Background()

	consent, err := w.flow.Begin(ctx, w.Org.ID, "https://app.example.com/settings?tab=ga")
	require.NoError(t, err)
	state := stateOf(t, consent)

	out, err := w.flow.Callback(ctx, state, "code-1")
	require.NoError(t, err)
	page := string(out.HTML)
	assert.Contains(t, page, `action="/api/v1/auth/google-analytics/properties?state=`+state+`"`)
	assert.Contains(t, page, `name="profile:https://news.example.com"`)
	assert.Contains(t, page, `<option value="Mobile">Mobile</option>`)

	form := url.Values{
		"profile:https://news.example.com": {"Mobile"},
		"profile:https://blog.example.com": {""},
		"unrelated":                        {"x"},
	}
	value, redirect, err := w.flow.SaveProperties(ctx, state, form)
	require.NoError(t, err)
	require.NotNil(t, redirect)
	assert.Equal(t, "https://app.example.com/settings?auth_success=true&tab=ga", redirect.Redirect)
	assert.Equal(t, "refresh-1", value["refresh_token"])
	assert.Equal(t, []any{map[string]any{"property": "https://news.example.com", "profile": "Mobile"}}, value["properties"])

	rec, err := w.DB.AuthToken(ctx, w.Org.ID, AuthName)
	require.NoError(t, err)
	assert.Equal(t, "access-1", rec.Value["access_token"])

	// The state is single use.
	_, _, err = w.flow.SaveProperties(ctx, state, form)
	assert.ErrorIs(t, err, apperr.ErrUpstreamAuth)
}

func TestFlow_SaveWithoutRedirectReturnsValue(t *testing.T) {
	w := newFlowWorld(t)
	ctx := context.Background()
	consent, err := w.flow.Begin(ctx, w.Org.ID, "")
	require.NoError(t, err)
	state := stateOf(t, consent)
	_, err = w.flow.Callback(ctx, state, "code-1")
	require.NoError(t, err)

	value, redirect, err := w.flow.SaveProperties(ctx, state, url.Values{})
	require.NoError(t, err)
	assert.Nil(t, redirect)
	assert.Equal(t, []any{}, value["properties"])
}

func TestFlow_ReauthorizationReusesStoredTokens(t *testing.T) {
	w := newFlowWorld(t)
	ctx := context.Background()
	_, err := w.DB.PutAuthToken(ctx, w.Org.ID, AuthName, map[string]any{
		"access_token":  "stored-access",
		"refresh_token": "stored-refresh",
		"properties":    []any{},
	})
	require.NoError(t, err)
	w.provider.token = &oauth2.Token{AccessToken: "fresh-access"}

	consent, err := w.flow.Begin(ctx, w.Org.ID, "")
	require.NoError(t, err)
	state := stateOf(t, consent)
	_, err = w.flow.Callback(ctx, state, "code-2")
	require.NoError(t, err)
	assert.Equal(t, "stored-refresh", w.provider.lastAuth.RefreshToken)

	value, _, err := w.flow.SaveProperties(ctx, state, url.Values{"profile:https://blog.example.com": {"Default"}})
	require.NoError(t, err)
	assert.Equal(t, "stored-refresh", value["refresh_token"])
}

func TestFlow_MissingRefreshTokenWithoutRecord(t *testing.T) {
	w := newFlowWorld(t)
	ctx := context.Background()
	w.provider.token = &oauth2.Token{AccessToken: "fresh-access"}

	consent, err := w.flow.Begin(ctx, w.Org.ID, "")
	require.NoError(t, err)
	_, err = w.flow.Callback(ctx, stateOf(t, consent), "code")
	require.ErrorIs(t, err, apperr.ErrUpstreamAuth)
	assert.Contains(t, err.Error(), "authorize again")

	consent, err = w.flow.Begin(ctx, w.Org.ID, "https://app.example.com/settings")
	require.NoError(t, err)
	out, err := w.flow.Callback(ctx, stateOf(t, consent), "code")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/settings?auth_success=false", out.Redirect)
}

func TestFlow_Errors(t *testing.T) {
	w := newFlowWorld(t)
	ctx := context.Background()

	_, err := w.flow.Callback(ctx, "unknown-state", "code")
	assert.ErrorIs(t, err, apperr.ErrUpstreamAuth)

	_, err = w.flow.Begin(ctx, w.Org.ID, "not a url")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	consent, err := w.flow.Begin(ctx, w.Org.ID, "")
	require.NoError(t, err)
	state := stateOf(t, consent)
	_, _, err = w.flow.SaveProperties(ctx, state, url.Values{})
	assert.ErrorIs(t, err, apperr.ErrValidation, "properties before consent")

	consent, err = w.flow.Begin(ctx, w.Org.ID, "")
	require.NoError(t, err)
	_, err = w.flow.Callback(ctx, stateOf(t, consent), "bad")
	assert.ErrorContains(t, err, "invalid_grant")

	consent, err = w.flow.Begin(ctx, w.Org.ID, "")
	require.NoError(t, err)
	_, err = w.flow.Callback(ctx, stateOf(t, consent), "")
	assert.ErrorIs(t, err, apperr.ErrUpstreamAuth)
}

func TestFlow_NotConfigured(t *testing.T) {
	f := testutil.NewFixture(t)
	flow := NewFlow(nil, session.NewMemory(), f.DB, time.Minute, "/p")

	_, err := flow.Begin(context.Background(), f.Org.ID, "")
	require.ErrorIs(t, err, apperr.ErrUpstreamAuth)
	assert.True(t, strings.Contains(err.Error(), "client_id"))
}

func TestFlow_Revoke(t *testing.T) {
	w := newFlowWorld(t)
	ctx := context.Background()

	assert.ErrorIs(t, w.flow.Revoke(ctx, w.Org.ID), apperr.ErrNotFound)

	_, err := w.DB.PutAuthToken(ctx, w.Org.ID, AuthName, map[string]any{
		"access_token": "a", "refresh_token": "r", "properties": []any{},
	})
	require.NoError(t, err)
	require.NoError(t, w.flow.Revoke(ctx, w.Org.ID))
	require.Len(t, w.provider.revoked, 1)
	assert.Equal(t, "r", w.provider.revoked[0].RefreshToken)

	_, err = w.DB.AuthToken(ctx, w.Org.ID, AuthName)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
