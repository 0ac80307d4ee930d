package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// HeaderUserID carries the authenticated user id, set by the auth proxy in
// front of the API.
const HeaderUserID = "X-User-Id"

// ErrNoPrincipal is returned when a request carries no authenticated user.
var ErrNoPrincipal = errors.New("no authenticated principal")

// Principal is the authenticated user on whose behalf a request runs.
type Principal struct {
	UserID string `json:"userId"`
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx.
func FromContext(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UserID == "" {
		return Principal{}, ErrNoPrincipal
	}
	return p, nil
}

// Middleware trusts HeaderUserID and rejects requests without it. Token
// validation happens upstream.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "authentication required"})
			return
		}
		ctx := WithPrincipal(r.Context(), Principal{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
