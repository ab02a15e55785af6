package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/folio-api/internal/jsonapi"
)

// ResourceStore persists the rows of every registered resource type.
// Implementations return ErrUnmapped for types they have no table for.
type ResourceStore interface {
	// List returns one page of rows in the requested order together with
	// the total number of rows of the type.
	List(ctx context.Context, typ string, q jsonapi.ListQuery) ([]jsonapi.ResourceInstance, int, error)

	// Get returns a single row. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, typ, id string) (jsonapi.ResourceInstance, error)

	// GetMany returns the rows with the given ids, ordered by id. Ids that
	// do not exist are skipped.
	GetMany(ctx context.Context, typ string, ids []string) ([]jsonapi.ResourceInstance, error)

	// Create inserts a row with in.ID, its attributes and any to-one links.
	// Returns ErrDuplicate if the id is taken and ErrInvalidReference if a
	// to-one link names a missing row.
	Create(ctx context.Context, in jsonapi.ResourceInput) error

	// Update writes the given attributes and to-one links and refreshes
	// updated_at. Returns ErrNotFound if the row does not exist.
	Update(ctx context.Context, typ, id string, attrs map[string]any, toOne map[string]*string) error

	// Delete removes a row. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, typ, id string) error

	// Lock takes a row lock on the given row for the rest of the current
	// transaction. Returns ErrNotFound if the row does not exist and
	// ErrConflict if another transaction holds the lock.
	Lock(ctx context.Context, typ, id string) error

	// MissingIDs returns the ids, in input order, that have no row.
	MissingIDs(ctx context.Context, typ string, ids []string) ([]string, error)

	// WithTx returns a store bound to tx.
	WithTx(tx *sql.Tx) ResourceStore

	// DB returns the underlying connection pool for starting transactions.
	DB() *sql.DB
}

// RelationshipStore persists relationship membership.
type RelationshipStore interface {
	// Members returns, for each owner id that has any, the ids linked
	// through rel, sorted ascending.
	Members(ctx context.Context, ownerType, rel string, ownerIDs []string) (map[string][]string, error)

	// Link adds targetIDs to the owner's rel membership. Ids already linked
	// are left alone.
	Link(ctx context.Context, ownerType, ownerID, rel string, targetIDs []string) error

	// Unlink removes targetIDs from the owner's rel membership. Returns
	// ErrImmutableRelationship if the link is a required foreign key.
	Unlink(ctx context.Context, ownerType, ownerID, rel string, targetIDs []string) error

	// WithTx returns a store bound to tx.
	WithTx(tx *sql.Tx) RelationshipStore

	// DB returns the underlying connection pool for starting transactions.
	DB() *sql.DB
}
