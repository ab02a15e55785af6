package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/phrazzld/folio-api/internal/domain"
	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/platform/sqlstore"
	"github.com/phrazzld/folio-api/internal/store"
	"github.com/phrazzld/folio-api/internal/testdb"
	"github.com/stretchr/testify/require"
)

var errSimulatedLink = errors.New("simulated link failure")

type testEnv struct {
	registry      *jsonapi.Registry
	resources     *sqlstore.ResourceStore
	relations     store.RelationshipStore
	resourceSvc   *ResourceService
	relationSvc   *RelationshipService
	relationStore *sqlstore.RelationshipStore
}

// newTestEnv wires both services onto a fresh SQLite database. wrap, when
// non-nil, decorates the relationship store the services use.
func newTestEnv(t *testing.T, wrap func(store.RelationshipStore) store.RelationshipStore) *testEnv {
	t.Helper()

	db, dialect := testdb.New(t)
	registry, err := domain.NewRegistry()
	require.NoError(t, err)
	schema := sqlstore.LibrarySchema()

	resources := sqlstore.NewResourceStore(db, registry, schema, dialect, nil)
	relationStore := sqlstore.NewRelationshipStore(db, schema, dialect, nil)
	var relations store.RelationshipStore = relationStore
	if wrap != nil {
		relations = wrap(relations)
	}

	resourceSvc, err := NewResourceService(resources, relations, registry, nil)
	require.NoError(t, err)
	n := 0
	resourceSvc.newID = func() string {
		n++
		return "new-" + strconv.Itoa(n)
	}

	serializer := jsonapi.NewSerializer(registry, jsonapi.NewURLBuilder("https://api.example.com"))
	relationSvc, err := NewRelationshipService(resources, relations, registry, serializer, nil)
	require.NoError(t, err)

	return &testEnv{
		registry:      registry,
		resources:     resources,
		relations:     relations,
		resourceSvc:   resourceSvc,
		relationSvc:   relationSvc,
		relationStore: relationStore,
	}
}

func (e *testEnv) seed(t *testing.T, typ, id string, attrs map[string]any, toOne map[string]*string) {
	t.Helper()
	require.NoError(t, e.resources.Create(context.Background(), jsonapi.ResourceInput{
		ID: id, Type: typ, Attributes: attrs, ToOne: toOne,
	}))
}

func (e *testEnv) author(t *testing.T, id string) {
	e.seed(t, domain.TypeAuthors, id, map[string]any{"name": "Author " + id, "email": id + "@example.com"}, nil)
}

func (e *testEnv) book(t *testing.T, id string) {
	e.seed(t, domain.TypeBooks, id, map[string]any{"title": "Book " + id}, nil)
}

func (e *testEnv) comment(t *testing.T, id, bookID string) {
	e.seed(t, domain.TypeComments, id, map[string]any{"body": "Comment " + id}, map[string]*string{"book": &bookID})
}

func (e *testEnv) link(t *testing.T, ownerType, ownerID, rel string, ids ...string) {
	t.Helper()
	require.NoError(t, e.relationStore.Link(context.Background(), ownerType, ownerID, rel, ids))
}

// members reads membership straight from the store, bypassing any wrapper.
func (e *testEnv) members(t *testing.T, ownerType, ownerID, rel string) []string {
	t.Helper()
	m, err := e.relationStore.Members(context.Background(), ownerType, rel, []string{ownerID})
	require.NoError(t, err)
	return m[ownerID]
}

func mustMarshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
