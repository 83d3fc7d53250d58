package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenValidator defines the interface for validating session tokens.
type TokenValidator interface {
	Validate(token string) (accountID string, err error)
}

type contextKeyAccountID struct{}

// ContextKeyAccountID is exported for use in handlers.
var ContextKeyAccountID = contextKeyAccountID{}

// GetAccountID retrieves the authenticated account id from the context.
func GetAccountID(ctx context.Context) string {
	accountID, ok := ctx.Value(ContextKeyAccountID).(string)
	if !ok {
		return ""
	}
	return accountID
}

// RequireAuth validates the Bearer token and stores the account id in the
// request context. Requests without a valid token get 401.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			accountID, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			ctx = context.WithValue(ctx, ContextKeyAccountID, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}
