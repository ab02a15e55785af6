package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/folio-api/internal/api/shared"
	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestTraceMiddleware(t *testing.T) {
	var logBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var seenTrace string
	var seenLogger *slog.Logger
	handler := NewTraceMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTrace = shared.GetTraceID(r.Context())
		seenLogger = logger.FromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books", nil))

	require.Len(t, seenTrace, 32)
	assert.Equal(t, seenTrace, w.Header().Get(shared.TraceIDHeader))
	require.NotNil(t, seenLogger, "request logger is stored in the context")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry))
	assert.Equal(t, "request started", entry["msg"])
	assert.Equal(t, seenTrace, entry["trace_id"])
}

func TestRequireMediaType(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{"json api", http.MethodPost, jsonapi.MediaType, `{}`, http.StatusOK},
		{"plain json", http.MethodPatch, "application/json", `{}`, http.StatusOK},
		{"parameters", http.MethodPost, jsonapi.MediaType + "; charset=utf-8", `{}`, http.StatusUnsupportedMediaType},
		{"extension parameter", http.MethodPost, jsonapi.MediaType + `; ext="bulk"`, `{}`, http.StatusUnsupportedMediaType},
		{"form", http.MethodPost, "application/x-www-form-urlencoded", `a=b`, http.StatusUnsupportedMediaType},
		{"missing", http.MethodPost, "", `{}`, http.StatusUnsupportedMediaType},
		{"delete with body", http.MethodDelete, "text/plain", `{}`, http.StatusUnsupportedMediaType},
		{"delete without body", http.MethodDelete, "", "", http.StatusOK},
		{"get", http.MethodGet, "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/books", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()

			RequireMediaType(okHandler).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnsupportedMediaType {
				assert.Contains(t, w.Body.String(), `"title":"UnsupportedMediaType"`)
				assert.Contains(t, w.Body.String(), `"status":"415"`)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/books/{id}", okHandler)
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/books/b1", "/books/b2", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/books/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/missing", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "collectors cannot be registered twice")
}
