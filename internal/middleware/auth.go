package middleware

import (
	"context"
	"net/http"

	"patrimonio-api/internal/model"
	"patrimonio-api/pkg/apierror"
)

// IdentityKey is the key for storing the session identity in request context.
const IdentityKey contextKey = "identity"

// SessionParser validates a session token.
type SessionParser interface {
	Parse(ctx context.Context, token string) (*model.Identity, error)
}

// NewSessionMiddleware creates a middleware that requires a valid session
// cookie. The identity is stored in the request context.
func NewSessionMiddleware(sessions SessionParser, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, apierror.Unauthorized("Login required"))
				return
			}

			identity, err := sessions.Parse(r.Context(), cookie.Value)
			if err != nil {
				writeError(w, apierror.Unauthorized("Invalid or expired session"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity returns a context carrying identity.
func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetIdentity retrieves the session identity from request context.
func GetIdentity(ctx context.Context) *model.Identity {
	if id, ok := ctx.Value(IdentityKey).(*model.Identity); ok {
		return id
	}
	return nil
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}
