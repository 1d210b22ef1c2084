package middleware

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"patrimonio-api/pkg/apierror"
)

// StoreChecker reports whether the backing store is reachable.
type StoreChecker interface {
	Check(ctx context.Context) error
}

// NewStoreGate fails requests fast with 500 while the store is unreachable.
// The checker decides how long a result is reused.
func NewStoreGate(checker StoreChecker, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := checker.Check(r.Context()); err != nil {
				logger.WithError(err).WithField("request_id", GetRequestID(r.Context())).Warn("Rejecting request: store unavailable")
				writeError(w, apierror.StoreUnavailable("Database connection error"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
