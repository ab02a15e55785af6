package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/platform/logger"
	"github.com/phrazzld/folio-api/internal/redact"
)

// RespondWithDocument writes a JSON:API document with the given status code.
func RespondWithDocument(w http.ResponseWriter, r *http.Request, status int, doc any) {
	w.Header().Set("Content-Type", jsonapi.MediaType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		logger.FromContextOrDefault(r.Context(), slog.Default()).
			Error("failed to encode JSON:API response", redact.ErrorAttr(err))
	}
}

// RespondWithError renders err as a JSON:API error document and logs it
// through the request logger, which already carries the trace id.
// Details of internal errors stay in the logs; the client only sees the
// generic error object.
//
// Log level strategy:
// - 5xx errors: Always logged at ERROR level
// - 409 Conflict: Logged at WARN level (concurrent writers)
// - Other 4xx errors: Logged at DEBUG level
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := jsonapi.StatusCode(err)

	logAttrs := []slog.Attr{
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", status),
		slog.String("error_kind", jsonapi.Title(err)),
		slog.String("error", redact.Error(err)),
		slog.String("error_type", fmt.Sprintf("%T", err)),
	}

	logLevel := slog.LevelDebug
	switch {
	case status >= http.StatusInternalServerError:
		logLevel = slog.LevelError
	case status == http.StatusConflict:
		logLevel = slog.LevelWarn
	}

	log := logger.FromContextOrDefault(r.Context(), slog.Default())
	log.LogAttrs(r.Context(), logLevel, "API error response", logAttrs...)

	RespondWithDocument(w, r, status, jsonapi.ErrorDocumentFor(err))
}
