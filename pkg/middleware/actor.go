package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/openfield-hq/openfield-engine/pkg/logging"
	"github.com/openfield-hq/openfield-engine/pkg/models"
	"github.com/openfield-hq/openfield-engine/pkg/repositories"
)

// AccessKeyHeader carries the opaque supervisor credential issued by the
// external identity layer.
const AccessKeyHeader = "X-Access-Key"

// ResolveActor returns middleware that resolves the acting identity from the
// access-key header. Requests without a key (anonymous field submissions)
// proceed with the anonymous actor; an unknown key also falls through to
// anonymous rather than failing, since identity is not this engine's job.
func ResolveActor(supervisors repositories.SupervisorRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := models.Anonymous()

			if key := r.Header.Get(AccessKeyHeader); key != "" {
				supervisor, err := supervisors.GetByAccessKey(r.Context(), key)
				if err == nil {
					actor = models.Actor{
						Kind:  models.ActorSupervisor,
						ID:    &supervisor.ID,
						Label: supervisor.FullName,
					}
				} else if logger != nil {
					logger.Debug("Access key did not resolve",
						zap.String("access_key", logging.MaskKey(key)),
						zap.String("error", logging.SanitizeError(err)))
				}
			}

			next.ServeHTTP(w, r.WithContext(models.WithActor(r.Context(), actor)))
		})
	}
}

// RequireSupervisor returns middleware that rejects requests whose actor is
// not a resolved supervisor. Used for review and management endpoints.
func RequireSupervisor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := models.GetActor(r.Context())
		if !ok || actor.Kind != models.ActorSupervisor {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","message":"a supervisor access key is required"}`))
			return
		}
		next(w, r)
	}
}
