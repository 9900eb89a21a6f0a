package server

import (
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMiddleware is the stack used by the callback server: panic recovery, no caching of the
// token-bearing pages, and request logging.
func DefaultMiddleware(logger *log.Logger) []Middleware {
	return []Middleware{
		middleware.Recoverer,
		middleware.NoCache,
		RequestLogger(logger),
	}
}

// RequestLogger logs one line per request. Query strings and bodies are never logged.
func RequestLogger(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debug("callback request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"elapsed", time.Since(start),
			)
		})
	}
}
