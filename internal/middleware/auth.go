package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/brightwork/internal/apperr"
	"github.com/dukerupert/brightwork/internal/auth"
	"github.com/dukerupert/brightwork/internal/model"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string, role model.Role) (auth.AuthContext, error)
}

// RequireRole validates the session for policy.Role on every request and
// populates auth.AuthContext. Failures get a JSON 401 or 403.
func RequireRole(authn Authenticator, policy auth.Policy, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := policy.TokenFromRequest(r)
			ac, err := authn.Authenticate(r.Context(), tok, policy.Role)
			if err != nil {
				switch {
				case errors.Is(err, apperr.ErrForbidden):
					writeError(w, http.StatusForbidden, "forbidden")
				case errors.Is(err, apperr.ErrUnauthorized):
					if tok != "" {
						policy.ClearCookie(w)
					}
					writeError(w, http.StatusUnauthorized, "authentication required")
				default:
					logger.Error("authenticate request", "role", policy.Role, "path", r.URL.Path, "error", err)
					writeError(w, http.StatusInternalServerError, "internal error")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
