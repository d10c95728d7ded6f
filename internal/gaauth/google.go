package gaauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Scope grants read access to Google Analytics reporting data.
const Scope = "https://www.googleapis.com/auth/analytics.readonly"

const (
	defaultManagementURL = "https://www.googleapis.com/analytics/v3"
	defaultRevokeURL     = "https://oauth2.googleapis.com/revoke"
)

// Provider is the upstream OAuth and property listing API.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Properties(ctx context.Context, tok *oauth2.Token) ([]Property, error)
	Revoke(ctx context.Context, tok *oauth2.Token) error
}

// Property is a tracked website with the names of its reporting views.
type Property struct {
	Property string   `json:"property"`
	Profiles []string `json:"profiles"`
}

// GoogleConfig configures the Google provider. Zero URLs and endpoint select
// Google's production services.
type GoogleConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	Endpoint      oauth2.Endpoint
	ManagementURL string
	RevokeURL     string
	HTTPClient    *http.Client
}

// Google implements Provider against Google OAuth and the Analytics
// Management API.
type Google struct {
	conf          *oauth2.Config
	managementURL string
	revokeURL     string
	client        *http.Client
}

// NewGoogle returns a Google provider.
func NewGoogle(cfg GoogleConfig) *Google {
	ep := cfg.Endpoint
	if ep.AuthURL == "" {
		ep = endpoints.Google
	}
	g := &Google{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     ep,
			Scopes:       []string{Scope},
		},
		managementURL: strings.TrimRight(cfg.ManagementURL, "/"),
		revokeURL:     cfg.RevokeURL,
		client:        cfg.HTTPClient,
	}
	if g.managementURL == "" {
		g.managementURL = defaultManagementURL
	}
	if g.revokeURL == "" {
		g.revokeURL = defaultRevokeURL
	}
	if g.client == nil {
		g.client = http.DefaultClient
	}
	return g
}

func (g *Google) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.client)
}

// AuthCodeURL returns the consent page URL. Offline access asks Google for a
// refresh token on first consent.
func (g *Google) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (g *Google) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := g.conf.Exchange(g.ctx(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("gaauth: exchange code: %w", err)
	}
	return tok, nil
}

// Properties lists every website the token can read, with its views.
func (g *Google) Properties(ctx context.Context, tok *oauth2.Token) ([]Property, error) {
	client := g.conf.Client(g.ctx(ctx), tok)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.managementURL+"/management/accounts/~all/webproperties/~all/profiles", nil)
	if err != nil {
		return nil, fmt.Errorf("gaauth: properties: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gaauth: properties: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gaauth: properties: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Items []struct {
			WebsiteURL string `json:"websiteUrl"`
			Name       string `json:"name"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("gaauth: decode properties: %w", err)
	}

	byURL := map[string]*Property{}
	var out []*Property
	for _, it := range body.Items {
		if it.WebsiteURL == "" {
			continue
		}
		p, ok := byURL[it.WebsiteURL]
		if !ok {
			p = &Property{Property: it.WebsiteURL, Profiles: []string{}}
			byURL[it.WebsiteURL] = p
			out = append(out, p)
		}
		p.Profiles = append(p.Profiles, it.Name)
	}
	props := make([]Property, len(out))
	for i, p := range out {
		props[i] = *p
	}
	sort.SliceStable(props, func(i, j int) bool { return props[i].Property < props[j].Property })
	return props, nil
}

// Revoke invalidates the token at Google. The refresh token is preferred
// since revoking it also revokes its access tokens.
func (g *Google) Revoke(ctx context.Context, tok *oauth2.Token) error {
	token := tok.RefreshToken
	if token == "" {
		token = tok.AccessToken
	}
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("gaauth: revoke: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gaauth: revoke: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gaauth: revoke: unexpected status %d", resp.StatusCode)
	}
	return nil
}
