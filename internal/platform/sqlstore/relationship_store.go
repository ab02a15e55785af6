package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/folio-api/internal/platform/logger"
	"github.com/phrazzld/folio-api/internal/redact"
	"github.com/phrazzld/folio-api/internal/store"
)

// RelationshipStore implements store.RelationshipStore over the relation
// mappings of a Schema.
type RelationshipStore struct {
	db      store.DBTX
	pool    *sql.DB
	schema  Schema
	dialect Dialect
	logger  *slog.Logger
}

// NewRelationshipStore creates a RelationshipStore on pool.
// If logger is nil, a default logger will be used.
func NewRelationshipStore(pool *sql.DB, schema Schema, dialect Dialect, logger *slog.Logger) *RelationshipStore {
	if pool == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RelationshipStore{
		db:      pool,
		pool:    pool,
		schema:  schema,
		dialect: dialect,
		logger:  logger.With(slog.String("component", "relationship_store")),
	}
}

var _ store.RelationshipStore = (*RelationshipStore)(nil)

// WithTx implements store.RelationshipStore.WithTx.
func (s *RelationshipStore) WithTx(tx *sql.Tx) store.RelationshipStore {
	cp := *s
	cp.db = tx
	return &cp
}

// DB implements store.RelationshipStore.DB.
func (s *RelationshipStore) DB() *sql.DB {
	return s.pool
}

// Members implements store.RelationshipStore.Members.
func (s *RelationshipStore) Members(
	ctx context.Context,
	ownerType, rel string,
	ownerIDs []string,
) (map[string][]string, error) {
	rm, err := s.schema.relation(ownerType, rel)
	if err != nil {
		return nil, err
	}
	ownerIDs = dedupe(ownerIDs)
	out := make(map[string][]string, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}

	owner, target := quote(rm.OwnerColumn), quote(rm.TargetColumn)
	q := newQuery(s.dialect)
	q.write("SELECT ", owner, ", ", target, " FROM ", quote(rm.Table),
		" WHERE ", owner, " IN ", q.in(ownerIDs), " AND ", target, " IS NOT NULL",
		" ORDER BY ", owner, ", ", target)

	rows, err := s.db.QueryContext(ctx, q.String(), q.args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load relationship members",
			slog.String("type", ownerType), slog.String("relationship", rel), redact.ErrorAttr(err))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var o, t string
		if err := rows.Scan(&o, &t); err != nil {
			return nil, MapError(err)
		}
		out[o] = append(out[o], t)
	}
	return out, MapError(rows.Err())
}

// Link implements store.RelationshipStore.Link.
func (s *RelationshipStore) Link(ctx context.Context, ownerType, ownerID, rel string, targetIDs []string) error {
	rm, err := s.schema.relation(ownerType, rel)
	if err != nil {
		return err
	}
	targetIDs = dedupe(targetIDs)
	if len(targetIDs) == 0 {
		return nil
	}

	switch rm.Kind {
	case BelongsToMany:
		for _, id := range targetIDs {
			q := newQuery(s.dialect)
			q.write("INSERT INTO ", quote(rm.Table), " (", quote(rm.OwnerColumn), ", ", quote(rm.TargetColumn), ")",
				" VALUES (", q.arg(ownerID), ", ", q.arg(id), ") ON CONFLICT DO NOTHING")
			if err := s.exec(ctx, q, ownerType, rel); err != nil {
				return err
			}
		}
		return nil
	case HasMany:
		q := newQuery(s.dialect)
		q.write("UPDATE ", quote(rm.Table), " SET ", quote(rm.OwnerColumn), " = ", q.arg(ownerID),
			" WHERE ", quote(rm.TargetColumn), " IN ", q.in(targetIDs))
		return s.exec(ctx, q, ownerType, rel)
	case BelongsTo:
		if len(targetIDs) != 1 {
			return fmt.Errorf("%w: %s.%s links a single resource", store.ErrImmutableRelationship, ownerType, rel)
		}
		q := newQuery(s.dialect)
		q.write("UPDATE ", quote(rm.Table), " SET ", quote(rm.TargetColumn), " = ", q.arg(targetIDs[0]),
			" WHERE ", quote(rm.OwnerColumn), " = ", q.arg(ownerID))
		return s.exec(ctx, q, ownerType, rel)
	default:
		return fmt.Errorf("%w: %s.%s has kind %s", store.ErrUnmapped, ownerType, rel, rm.Kind)
	}
}

// Unlink implements store.RelationshipStore.Unlink.
func (s *RelationshipStore) Unlink(ctx context.Context, ownerType, ownerID, rel string, targetIDs []string) error {
	rm, err := s.schema.relation(ownerType, rel)
	if err != nil {
		return err
	}
	targetIDs = dedupe(targetIDs)
	if len(targetIDs) == 0 {
		return nil
	}

	q := newQuery(s.dialect)
	switch rm.Kind {
	case BelongsToMany:
		q.write("DELETE FROM ", quote(rm.Table),
			" WHERE ", quote(rm.OwnerColumn), " = ", q.arg(ownerID),
			" AND ", quote(rm.TargetColumn), " IN ", q.in(targetIDs))
	case HasMany:
		if !rm.Nullable {
			return fmt.Errorf("%w: %s.%s members always belong to an owner",
				store.ErrImmutableRelationship, ownerType, rel)
		}
		q.write("UPDATE ", quote(rm.Table), " SET ", quote(rm.OwnerColumn), " = NULL",
			" WHERE ", quote(rm.OwnerColumn), " = ", q.arg(ownerID),
			" AND ", quote(rm.TargetColumn), " IN ", q.in(targetIDs))
	case BelongsTo:
		if !rm.Nullable {
			return fmt.Errorf("%w: %s.%s cannot be empty", store.ErrImmutableRelationship, ownerType, rel)
		}
		q.write("UPDATE ", quote(rm.Table), " SET ", quote(rm.TargetColumn), " = NULL",
			" WHERE ", quote(rm.OwnerColumn), " = ", q.arg(ownerID),
			" AND ", quote(rm.TargetColumn), " IN ", q.in(targetIDs))
	default:
		return fmt.Errorf("%w: %s.%s has kind %s", store.ErrUnmapped, ownerType, rel, rm.Kind)
	}
	return s.exec(ctx, q, ownerType, rel)
}

func (s *RelationshipStore) exec(ctx context.Context, q *query, ownerType, rel string) error {
	if _, err := s.db.ExecContext(ctx, q.String(), q.args...); err != nil {
		err = MapError(err)
		logger.FromContextOrDefault(ctx, s.logger).Warn("relationship write failed",
			slog.String("type", ownerType), slog.String("relationship", rel), redact.ErrorAttr(err))
		return err
	}
	return nil
}
