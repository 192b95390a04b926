package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type contextKey struct{}

var userKey contextKey

// UserFrom extracts the authenticated user from a request context. The second
// return is false on unauthenticated requests (routes outside Middleware).
func UserFrom(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey).(*User)
	return u, ok
}

// WithUser returns a context carrying the given user. Exposed for tests.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Middleware authenticates every request with the verifier and stores the
// caller in the request context. Requests without a valid access token get
// a 401 with the verification failure reason.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := v.VerifyHeader(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": publicReason(err)})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func publicReason(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "authentication required"
	case errors.Is(err, ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, ErrTokenBlacklisted):
		return "token has been blacklisted"
	default:
		return "invalid token"
	}
}
