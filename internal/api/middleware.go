// Package api implements the Lynx REST API using chi.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/metrics"
	"github.com/starford/lynx/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
	AuthModeJWT      = "jwt"
)

// AuthOptions selects how requests are authenticated.
//
//   - "disabled": every request passes.
//   - "token": requests carry "Authorization: Bearer <Token>".
//   - "jwt": requests carry an HS256 token signed with JWTSecret whose
//     org_id claim pins the org the caller may act on.
type AuthOptions struct {
	Mode      string
	Token     string
	JWTSecret string
}

// Claims are the JWT claims accepted in jwt mode.
type Claims struct {
	OrgID int64 `json:"org_id"`
	jwt.RegisteredClaims
}

// MintToken signs a token for orgID valid for ttl.
func MintToken(secret string, orgID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		OrgID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(orgID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type ctxKey int

const (
	claimsKey ctxKey = iota
	orgKey
)

func bearer(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(auth, "Bearer "), true
}

// AuthMiddleware returns middleware enforcing opts.
func AuthMiddleware(opts AuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch opts.Mode {
			case AuthModeToken:
				if tok, ok := bearer(r); !ok || subtle.ConstantTimeCompare([]byte(tok), []byte(opts.Token)) != 1 {
					writeError(w, "auth", apperr.Unauthorized("unauthorized"))
					return
				}
			case AuthModeJWT:
				tok, ok := bearer(r)
				if !ok {
					writeError(w, "auth", apperr.Unauthorized("missing authorization header"))
					return
				}
				claims := &Claims{}
				_, err := jwt.ParseWithClaims(tok, claims, func(token *jwt.Token) (any, error) {
					if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, errors.New("invalid signing method")
					}
					return []byte(opts.JWTSecret), nil
				})
				if err != nil || claims.OrgID == 0 {
					writeError(w, "auth", apperr.Unauthorized("invalid token"))
					return
				}
				r = r.WithContext(context.WithValue(r.Context(), claimsKey, claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OrgLookup finds orgs by id or slug. *store.DB implements it.
type OrgLookup interface {
	Org(ctx context.Context, id int64) (*models.Org, error)
	OrgBySlug(ctx context.Context, slug string) (*models.Org, error)
}

// OrgMiddleware resolves the org a request acts on: the JWT org_id claim,
// else the "org" query parameter or X-Org-ID header (an id or a slug).
func OrgMiddleware(orgs OrgLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			org, err := resolveOrg(r, orgs)
			if err != nil {
				writeError(w, "resolve org", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), orgKey, org)))
		})
	}
}

func resolveOrg(r *http.Request, orgs OrgLookup) (*models.Org, error) {
	ref := r.URL.Query().Get("org")
	if ref == "" {
		ref = r.Header.Get("X-Org-ID")
	}
	if claims, ok := r.Context().Value(claimsKey).(*Claims); ok {
		if ref != "" && ref != strconv.FormatInt(claims.OrgID, 10) {
			org, err := lookupOrg(r.Context(), orgs, ref)
			if err != nil || org.ID != claims.OrgID {
				return nil, apperr.Unauthorized("token is not valid for org %q", ref)
			}
		}
		return orgs.Org(r.Context(), claims.OrgID)
	}
	if ref == "" {
		return nil, apperr.Validation("org: an org id or slug is required")
	}
	return lookupOrg(r.Context(), orgs, ref)
}

func lookupOrg(ctx context.Context, orgs OrgLookup, ref string) (*models.Org, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return orgs.Org(ctx, id)
	}
	return orgs.OrgBySlug(ctx, ref)
}

// orgFrom returns the org resolved by OrgMiddleware.
func orgFrom(ctx context.Context) *models.Org {
	org, _ := ctx.Value(orgKey).(*models.Org)
	return org
}

// MetricsMiddleware records every request under its route pattern.
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(r.Method, route, status, time.Since(start))
		})
	}
}
