package middleware

import (
	"net/http"
	"strings"

	"github.com/nkiryanov/phantommask/internal/handlers/operatorctx"
	"github.com/nkiryanov/phantommask/internal/handlers/render"
	"github.com/nkiryanov/phantommask/internal/logger"
)

type tokenParser interface {
	// Validate token and return its subject
	Parse(token string) (string, error)
}

// AuthMiddleware accepts requests with valid 'Authorization: Bearer <token>' header only
func AuthMiddleware(tokens tokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			operator, err := tokens.Parse(token)
			if err != nil {
				logger.FromContext(r.Context(), logger.NewNoOpLogger()).Debug("operator token rejected", "error", err)
				unauthorized(w)
				return
			}

			ctx := operatorctx.New(r.Context(), operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
}
