package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/folio-api/internal/api"
	"github.com/phrazzld/folio-api/internal/api/middleware"
	"github.com/phrazzld/folio-api/internal/domain"
	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/platform/sqlstore"
	"github.com/phrazzld/folio-api/internal/service"
	"github.com/phrazzld/folio-api/internal/testdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var testLimits = jsonapi.PageLimits{DefaultSize: 20, MaxSize: 100}

type testServer struct {
	handler   http.Handler
	resources *sqlstore.ResourceStore
	relations *sqlstore.RelationshipStore
}

// newTestServer wires the full stack onto a fresh SQLite database.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, dialect := testdb.New(t)
	registry, err := domain.NewRegistry()
	require.NoError(t, err)
	schema := sqlstore.LibrarySchema()
	require.NoError(t, schema.Check(registry))

	resources := sqlstore.NewResourceStore(db, registry, schema, dialect, nil)
	relations := sqlstore.NewRelationshipStore(db, schema, dialect, nil)
	serializer := jsonapi.NewSerializer(registry, jsonapi.NewURLBuilder(""))
	validator, err := jsonapi.NewRequestValidator(registry)
	require.NoError(t, err)

	resourceSvc, err := service.NewResourceService(resources, relations, registry, nil)
	require.NoError(t, err)
	relationSvc, err := service.NewRelationshipService(resources, relations, registry, serializer, nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics, err := middleware.NewMetrics(reg)
	require.NoError(t, err)

	handler := api.NewRouter(api.RouterConfig{
		Registry:      registry,
		Resources:     api.NewResourceHandler(resourceSvc, registry, serializer, validator, testLimits, nil),
		Relationships: api.NewRelationshipHandler(relationSvc, registry, validator, nil),
		Metrics:       metrics,
		Gatherer:      reg,
		Ping:          db.PingContext,
	})

	return &testServer{handler: handler, resources: resources, relations: relations}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return serve(s, newRequest(method, path, body))
}

// newRequest builds a request carrying body as a JSON:API document.
func newRequest(method, path, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, path, nil)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", jsonapi.MediaType)
	return req
}

func serve(s *testServer, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) seed(t *testing.T, typ, id string, attrs map[string]any, toOne map[string]*string) {
	t.Helper()
	require.NoError(t, s.resources.Create(context.Background(), jsonapi.ResourceInput{
		ID: id, Type: typ, Attributes: attrs, ToOne: toOne,
	}))
}

func (s *testServer) author(t *testing.T, id, name string) {
	s.seed(t, domain.TypeAuthors, id, map[string]any{"name": name, "email": id + "@example.com"}, nil)
}

func (s *testServer) book(t *testing.T, id, title string) {
	s.seed(t, domain.TypeBooks, id, map[string]any{"title": title}, nil)
}

func (s *testServer) comment(t *testing.T, id, bookID string) {
	s.seed(t, domain.TypeComments, id, map[string]any{"body": "Comment " + id}, map[string]*string{"book": &bookID})
}

func (s *testServer) link(t *testing.T, ownerType, ownerID, rel string, ids ...string) {
	t.Helper()
	require.NoError(t, s.relations.Link(context.Background(), ownerType, ownerID, rel, ids))
}

// decode unmarshals a response body into a generic document.
func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc), w.Body.String())
	return doc
}

// firstError returns the first error object of an error document.
func firstError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	errs, ok := decode(t, w)["errors"].([]any)
	require.True(t, ok, "expected an error document, got %s", w.Body.String())
	require.NotEmpty(t, errs)
	return errs[0].(map[string]any)
}

// dataIDs returns the ids of the resource objects or identifiers in data.
func dataIDs(t *testing.T, doc map[string]any) []string {
	t.Helper()
	items, ok := doc["data"].([]any)
	require.True(t, ok, "data is not an array: %v", doc["data"])
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.(map[string]any)["id"].(string))
	}
	return ids
}
