package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/carematch/carematch-api/internal/domain"
)

type contextKey string

const userKey contextKey = "user"

// TokenVerifier validates a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// SubjectResolver maps a token subject to an account.
type SubjectResolver interface {
	ResolveBySubject(ctx context.Context, subject string) (*domain.User, error)
}

// Auth returns middleware that validates the Bearer token, resolves its
// subject to an account, and injects the account into the request context.
// Downstream handlers never see the raw subject, only the resolved user.
func Auth(verifier TokenVerifier, resolver SubjectResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			subject, err := verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			u, err := resolver.ResolveBySubject(r.Context(), subject)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unknown account")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext extracts the resolved account from the request context.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey).(*domain.User)
	return u, ok
}
