package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lynx/internal/api"
)

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config represents the application configuration.
type Config struct {
	App             ApplicationConfig     `yaml:"app"`
	SQLite          SQLiteConfig          `yaml:"sqlite"`
	Auth            AuthConfig            `yaml:"auth"`
	Session         SessionConfig         `yaml:"session"`
	GoogleAnalytics GoogleAnalyticsConfig `yaml:"google_analytics"`
	Search          SearchConfig          `yaml:"search"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if err := c.GoogleAnalytics.Validate(); err != nil {
		return err
	}
	return c.Search.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//   - "jwt": Bearer JWTs signed with JWTSecret, each pinned to one org.
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	Token     string `yaml:"token"`
	JWTSecret string `yaml:"jwt_secret"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = api.AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required,
			validation.In(api.AuthModeDisabled, api.AuthModeToken, api.AuthModeJWT)),
	); err != nil {
		return err
	}
	if c.Mode == api.AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", api.AuthModeToken)
	}
	if c.Mode == api.AuthModeJWT && len(c.JWTSecret) < 16 {
		return fmt.Errorf("auth: mode is %q but jwt_secret is shorter than 16 bytes", api.AuthModeJWT)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode != api.AuthModeDisabled
}

// Options converts the config to router auth options.
func (c *AuthConfig) Options() api.AuthOptions {
	return api.AuthOptions{Mode: c.Mode, Token: c.Token, JWTSecret: c.JWTSecret}
}

// SessionConfig selects where OAuth handshake state is kept between the
// steps of an authorization.
type SessionConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = SessionBackendMemory
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(SessionBackendMemory, SessionBackendRedis)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return err
	}
	if c.Backend == SessionBackendRedis {
		return c.Redis.Validate()
	}
	return nil
}

// RedisConfig holds the redis session backend connection.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Validate validates the redis configuration.
func (c *RedisConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Address, validation.Required),
		validation.Field(&c.DB, validation.Min(0), validation.Max(15)),
	)
}

// GoogleAnalyticsConfig holds the OAuth client used to authorize Google
// Analytics. Leaving client_id and client_secret empty disables the flow.
type GoogleAnalyticsConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// APIURL is the public base URL of this API, used to build the OAuth
	// callback Google redirects to.
	APIURL string `yaml:"api_url"`
}

// Configured reports whether an OAuth client is set.
func (c *GoogleAnalyticsConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Validate validates the Google Analytics configuration.
func (c *GoogleAnalyticsConfig) Validate() error {
	if (c.ClientID == "") != (c.ClientSecret == "") {
		return errors.New("google_analytics: client_id and client_secret must be set together")
	}
	if !c.Configured() {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.APIURL, validation.Required, validation.By(absoluteURL)),
	)
}

// URL joins path onto the public API base URL.
func (c *GoogleAnalyticsConfig) URL(path string) string {
	return strings.TrimSuffix(c.APIURL, "/") + path
}

func absoluteURL(v any) error {
	s, _ := v.(string)
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

// SearchConfig bounds search page sizes.
type SearchConfig struct {
	DefaultPerPage int `yaml:"default_per_page"`
	MaxPerPage     int `yaml:"max_per_page"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxPerPage, validation.Required, validation.Min(1)),
		validation.Field(&c.DefaultPerPage, validation.Required, validation.Min(1), validation.Max(c.MaxPerPage)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./lynx.db",
		},
		Auth: AuthConfig{
			Mode: api.AuthModeDisabled,
		},
		Session: SessionConfig{
			Backend: SessionBackendMemory,
			TTL:     10 * time.Minute,
			Redis: RedisConfig{
				Prefix: "lynx:session:",
			},
		},
		Search: SearchConfig{
			DefaultPerPage: 25,
			MaxPerPage:     100,
		},
	}
}
