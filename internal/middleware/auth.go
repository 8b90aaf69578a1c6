package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/DukeRupert/applygate/internal/auth"
)

// PrincipalHeader carries the authenticated principal id, set by the identity
// gateway in front of this service. The gateway has already authenticated the
// caller; this service only parses and propagates the id.
const PrincipalHeader = "X-Principal-ID"

// PrincipalMiddleware extracts the principal id from the gateway header and
// stores it in the request context.
type PrincipalMiddleware struct {
	logger *slog.Logger
}

// NewPrincipalMiddleware creates a new principal middleware.
func NewPrincipalMiddleware(logger *slog.Logger) *PrincipalMiddleware {
	return &PrincipalMiddleware{logger: logger}
}

// Require returns middleware that rejects requests without a valid principal
// id. All entitlement routes sit behind it.
func (m *PrincipalMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(PrincipalHeader)
		if raw == "" {
			m.reject(w, r, "missing principal header")
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			m.reject(w, r, "malformed principal id")
			return
		}

		ctx := auth.SetPrincipal(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *PrincipalMiddleware) reject(w http.ResponseWriter, r *http.Request, reason string) {
	m.logger.Info("unauthenticated request",
		"path", r.URL.Path,
		"method", r.Method,
		"reason", reason,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": "Authentication required",
	})
}

// Stack composes middleware, applying them in the order given.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
