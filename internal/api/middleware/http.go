package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/bananaclick/internal/api/apierr"
	"github.com/mcoot/bananaclick/internal/middleware"
)

// Logging logs every API request, including websocket upgrades
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger.With(slog.String("component", "api")))
}

// Recovery turns a handler panic into a JSON 500
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, r *http.Request, _ any) {
		if r.Header.Get("Upgrade") != "" {
			// the connection may already be hijacked; nothing can be written
			return
		}
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
