package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Actor is the authenticated caller extracted from the bearer token.
type Actor struct {
	UserID      string
	UserName    string
	Role        string
	TenantID    string
	Permissions []string
}

type actorKey struct{}

// ActorFrom returns the authenticated actor stored in ctx, or nil.
func ActorFrom(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorKey{}).(*Actor)
	return a
}

// WithActor stores an actor in ctx. Exposed for tests.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

type claims struct {
	jwt.RegisteredClaims
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	TenantID    string   `json:"tenant_id"`
	Permissions []string `json:"permissions"`
}

// Auth validates the Authorization bearer token and attaches the actor to the
// request context. Requests without a valid token get 401.
func Auth(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			var c claims
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), &c,
				func(t *jwt.Token) (any, error) { return key, nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if c.TenantID == "" {
				http.Error(w, "token missing tenant", http.StatusUnauthorized)
				return
			}

			actor := &Actor{
				UserID:      c.Subject,
				UserName:    c.Name,
				Role:        c.Role,
				TenantID:    c.TenantID,
				Permissions: c.Permissions,
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
