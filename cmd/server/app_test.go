package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/folio-api/internal/config"
	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(dsn string) *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, LogLevel: "debug", ShutdownTimeout: 5},
		Database: config.DatabaseConfig{Driver: "sqlite", URL: dsn, MaxOpenConns: 4},
		API:      config.APIConfig{BaseURL: "https://api.example.com", DefaultPageSize: 2, MaxPageSize: 10},
	}
}

func newTestApp(t *testing.T) *application {
	t.Helper()
	db, dialect := testdb.New(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	app, err := newApplication(testConfig("unused"), log, db, dialect)
	require.NoError(t, err)
	return app
}

func TestApplication_Router(t *testing.T) {
	app := newTestApp(t)
	router, err := app.setupRouter()
	require.NoError(t, err)

	body := `{"data":{"type":"books","attributes":{"title":"Good Omens","pages":288}}}`
	req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(body))
	req.Header.Set("Content-Type", jsonapi.MediaType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "https://api.example.com/books/"),
		"links use the configured base URL")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Links map[string]string `json:"links"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc.Links["self"], "page%5Bsize%5D=2", "the configured default page size applies")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "folio_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApplication_ServeShutsDownOnCancel(t *testing.T) {
	app := newTestApp(t)
	router, err := app.setupRouter()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx, ln, router) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Error(t, app.db.Ping(), "the database is closed on shutdown")
}

func TestLoadAppConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, testdb.SQLiteDSN(filepath.Join(dir, "folio.db")))

	cfg, log, err := loadAppConfig(path)
	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.Equal(t, "sqlite", cfg.Database.Driver)

	_, _, err = loadAppConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
