package middleware

import (
	"context"
	"net/http"
	"strings"

	"roombooking/pkg/auth"
	apperrors "roombooking/pkg/errors"
	httputil "roombooking/pkg/http"
	"roombooking/pkg/logger"
	"roombooking/pkg/model"
)

const actorKey contextKey = "actor"

// TokenValidator is satisfied by *auth.Service.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Auth resolves the bearer token into an Actor. Requests without a valid
// token never reach the handlers.
func Auth(validator TokenValidator, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				rejectUnauthorized(w, log, r, "missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				rejectUnauthorized(w, log, r, err.Error())
				return
			}

			actor := claims.Actor()
			setLoggedActor(r.Context(), actor.ID)
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func rejectUnauthorized(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Unauthorized request",
		"request_id", GetRequestID(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
		"method", r.Method,
	)

	if err := httputil.WriteError(w, apperrors.Unauthorized("Authentication required")); err != nil {
		log.Error("failed to write error response", "handler", "Auth", "operation", "WriteError", "error", err)
	}
}

func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(model.Actor)
	return actor, ok
}
