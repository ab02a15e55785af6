package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/folio-api/internal/api/shared"
	"github.com/phrazzld/folio-api/internal/platform/logger"
)

// NewTraceMiddleware adds a trace ID to the request context, echoes it in
// the X-Trace-ID response header and stores a request-scoped logger carrying
// it. It should be applied early in the middleware chain so that every
// later handler logs with the trace ID.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			w.Header().Set(shared.TraceIDHeader, traceID)
			next.ServeHTTP(w, r.WithContext(logger.WithLogger(ctx, log)))
		})
	}
}
