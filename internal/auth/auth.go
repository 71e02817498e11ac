// Package auth extracts the acting user from bearer tokens and gates
// endpoints by role. Token issuance and session handling live outside the
// core; this package only verifies and reads.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const ctxKeyActor ctxKey = "workflow.actor"

// Actor is the authenticated user performing a request.
type Actor struct {
	ID    string
	Name  string
	Roles []string
}

// HasRole reports whether the actor holds the given role.
func (a *Actor) HasRole(role string) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// FromContext returns the Actor stored in the request context, or nil.
func FromContext(ctx context.Context) *Actor {
	v := ctx.Value(ctxKeyActor)
	if v == nil {
		return nil
	}
	if actor, ok := v.(*Actor); ok {
		return actor
	}
	return nil
}

// WithActor returns a context carrying the actor. Exported for tests.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

type claims struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Middleware verifies the Bearer token with the shared HMAC secret and places
// the resulting Actor in the request context. Requests without a valid token
// are rejected with 401.
func Middleware(secret string) func(next http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				http.Error(w, "authorization required", http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimSpace(authz[7:])

			var c claims
			token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (interface{}, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			actor := &Actor{ID: c.Subject, Name: c.Name, Roles: c.Roles}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole allows the request through only when the actor holds the role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !FromContext(r.Context()).HasRole(role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
