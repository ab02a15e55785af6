package sqlstore_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/phrazzld/folio-api/internal/domain"
	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/platform/sqlstore"
	"github.com/phrazzld/folio-api/internal/testdb"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db       *sql.DB
	registry *jsonapi.Registry
	res      *sqlstore.ResourceStore
	rel      *sqlstore.RelationshipStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, dialect := testdb.New(t)
	registry, err := domain.NewRegistry()
	require.NoError(t, err)
	schema := sqlstore.LibrarySchema()
	return &fixture{
		db:       db,
		registry: registry,
		res:      sqlstore.NewResourceStore(db, registry, schema, dialect, nil),
		rel:      sqlstore.NewRelationshipStore(db, schema, dialect, nil),
	}
}

func (f *fixture) author(t *testing.T, id, name string) {
	t.Helper()
	require.NoError(t, f.res.Create(context.Background(), jsonapi.ResourceInput{
		ID: id, Type: domain.TypeAuthors,
		Attributes: map[string]any{"name": name, "email": id + "@example.com"},
	}))
}

func (f *fixture) book(t *testing.T, id, title string, pages int) {
	t.Helper()
	require.NoError(t, f.res.Create(context.Background(), jsonapi.ResourceInput{
		ID: id, Type: domain.TypeBooks,
		Attributes: map[string]any{"title": title, "pages": float64(pages)},
	}))
}

func (f *fixture) comment(t *testing.T, id, bookID string, authorID *string) {
	t.Helper()
	require.NoError(t, f.res.Create(context.Background(), jsonapi.ResourceInput{
		ID: id, Type: domain.TypeComments,
		Attributes: map[string]any{"body": "comment " + id},
		ToOne:      map[string]*string{"book": &bookID, "author": authorID},
	}))
}

func ptr(s string) *string { return &s }

func ids(instances []jsonapi.ResourceInstance) []string {
	out := make([]string, len(instances))
	for i, inst := range instances {
		out[i] = inst.ID
	}
	return out
}
