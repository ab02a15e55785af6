package service

import (
	"context"
	"database/sql"

	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockResourceStore mocks the store.ResourceStore interface
type MockResourceStore struct {
	mock.Mock
	db *sql.DB
}

func (m *MockResourceStore) List(
	ctx context.Context,
	typ string,
	q jsonapi.ListQuery,
) ([]jsonapi.ResourceInstance, int, error) {
	args := m.Called(ctx, typ, q)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]jsonapi.ResourceInstance), args.Int(1), args.Error(2)
}

func (m *MockResourceStore) Get(ctx context.Context, typ, id string) (jsonapi.ResourceInstance, error) {
	args := m.Called(ctx, typ, id)
	return args.Get(0).(jsonapi.ResourceInstance), args.Error(1)
}

func (m *MockResourceStore) GetMany(ctx context.Context, typ string, ids []string) ([]jsonapi.ResourceInstance, error) {
	args := m.Called(ctx, typ, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]jsonapi.ResourceInstance), args.Error(1)
}

func (m *MockResourceStore) Create(ctx context.Context, in jsonapi.ResourceInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *MockResourceStore) Update(
	ctx context.Context,
	typ, id string,
	attrs map[string]any,
	toOne map[string]*string,
) error {
	args := m.Called(ctx, typ, id, attrs, toOne)
	return args.Error(0)
}

func (m *MockResourceStore) Delete(ctx context.Context, typ, id string) error {
	args := m.Called(ctx, typ, id)
	return args.Error(0)
}

func (m *MockResourceStore) Lock(ctx context.Context, typ, id string) error {
	args := m.Called(ctx, typ, id)
	return args.Error(0)
}

func (m *MockResourceStore) MissingIDs(ctx context.Context, typ string, ids []string) ([]string, error) {
	args := m.Called(ctx, typ, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockResourceStore) WithTx(tx *sql.Tx) store.ResourceStore {
	return m
}

func (m *MockResourceStore) DB() *sql.DB {
	return m.db
}

// MockRelationshipStore mocks the store.RelationshipStore interface
type MockRelationshipStore struct {
	mock.Mock
	db *sql.DB
}

func (m *MockRelationshipStore) Members(
	ctx context.Context,
	ownerType, rel string,
	ownerIDs []string,
) (map[string][]string, error) {
	args := m.Called(ctx, ownerType, rel, ownerIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]string), args.Error(1)
}

func (m *MockRelationshipStore) Link(ctx context.Context, ownerType, ownerID, rel string, ids []string) error {
	args := m.Called(ctx, ownerType, ownerID, rel, ids)
	return args.Error(0)
}

func (m *MockRelationshipStore) Unlink(ctx context.Context, ownerType, ownerID, rel string, ids []string) error {
	args := m.Called(ctx, ownerType, ownerID, rel, ids)
	return args.Error(0)
}

func (m *MockRelationshipStore) WithTx(tx *sql.Tx) store.RelationshipStore {
	return m
}

func (m *MockRelationshipStore) DB() *sql.DB {
	return m.db
}

// failingRelationshipStore wraps a real store and fails Link on demand, to
// exercise rollback after part of a mutation has been applied.
type failingRelationshipStore struct {
	store.RelationshipStore
	failLink bool
}

func (f *failingRelationshipStore) Link(ctx context.Context, ownerType, ownerID, rel string, ids []string) error {
	if f.failLink && len(ids) > 0 {
		return errSimulatedLink
	}
	return f.RelationshipStore.Link(ctx, ownerType, ownerID, rel, ids)
}

func (f *failingRelationshipStore) WithTx(tx *sql.Tx) store.RelationshipStore {
	return &failingRelationshipStore{
		RelationshipStore: f.RelationshipStore.WithTx(tx),
		failLink:          f.failLink,
	}
}
