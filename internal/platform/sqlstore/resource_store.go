package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/platform/logger"
	"github.com/phrazzld/folio-api/internal/redact"
	"github.com/phrazzld/folio-api/internal/store"
)

// ResourceStore implements store.ResourceStore for every type in a Schema.
type ResourceStore struct {
	db       store.DBTX
	pool     *sql.DB
	registry *jsonapi.Registry
	schema   Schema
	dialect  Dialect
	logger   *slog.Logger
	now      func() time.Time
}

// NewResourceStore creates a ResourceStore on pool.
// If logger is nil, a default logger will be used.
func NewResourceStore(
	pool *sql.DB,
	registry *jsonapi.Registry,
	schema Schema,
	dialect Dialect,
	logger *slog.Logger,
) *ResourceStore {
	if pool == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceStore{
		db:       pool,
		pool:     pool,
		registry: registry,
		schema:   schema,
		dialect:  dialect,
		logger:   logger.With(slog.String("component", "resource_store")),
		now:      time.Now,
	}
}

var _ store.ResourceStore = (*ResourceStore)(nil)

// WithTx implements store.ResourceStore.WithTx.
func (s *ResourceStore) WithTx(tx *sql.Tx) store.ResourceStore {
	cp := *s
	cp.db = tx
	return &cp
}

// DB implements store.ResourceStore.DB.
func (s *ResourceStore) DB() *sql.DB {
	return s.pool
}

func (s *ResourceStore) lookup(typ string) (*jsonapi.ResourceTypeConfig, TableMapping, error) {
	cfg, err := s.registry.Config(typ)
	if err != nil {
		return nil, TableMapping{}, fmt.Errorf("%w: %v", store.ErrUnmapped, err)
	}
	tm, err := s.schema.table(typ)
	if err != nil {
		return nil, TableMapping{}, err
	}
	return cfg, tm, nil
}

func selectColumns(cfg *jsonapi.ResourceTypeConfig) string {
	cols := make([]string, 0, len(cfg.Attributes)+3)
	cols = append(cols, quote("id"))
	for _, a := range cfg.Attributes {
		cols = append(cols, quote(a))
	}
	cols = append(cols, quote(jsonapi.AttrCreatedAt), quote(jsonapi.AttrUpdatedAt))
	return strings.Join(cols, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(sc scanner, cfg *jsonapi.ResourceTypeConfig) (jsonapi.ResourceInstance, error) {
	n := len(cfg.Attributes)
	vals := make([]any, n+3)
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := sc.Scan(ptrs...); err != nil {
		return jsonapi.ResourceInstance{}, err
	}

	inst := jsonapi.ResourceInstance{
		ID:         fmt.Sprint(normalizeValue(vals[0])),
		Type:       cfg.Type,
		Attributes: make(map[string]any, n),
	}
	for i, a := range cfg.Attributes {
		inst.Attributes[a] = normalizeValue(vals[i+1])
	}
	var err error
	if inst.CreatedAt, err = toTime(vals[n+1]); err != nil {
		return jsonapi.ResourceInstance{}, err
	}
	if inst.UpdatedAt, err = toTime(vals[n+2]); err != nil {
		return jsonapi.ResourceInstance{}, err
	}
	return inst, nil
}

func normalizeValue(v any) any {
	switch tv := v.(type) {
	case []byte:
		return string(tv)
	case time.Time:
		return tv.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

var timeLayouts = []string{
	sqliteTimeLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func toTime(v any) (time.Time, error) {
	switch tv := v.(type) {
	case time.Time:
		return tv.UTC(), nil
	case int64:
		return time.Unix(tv, 0).UTC(), nil
	case []byte:
		return toTime(string(tv))
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, tv); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q", tv)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// bindValue converts decoded JSON values into driver arguments. JSON
// numbers arrive as float64; integral ones are bound as integers so that
// INTEGER columns accept them on every driver.
func bindValue(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return v
}

func orderBy(cfg *jsonapi.ResourceTypeConfig, sorts []jsonapi.SortField) (string, error) {
	parts := make([]string, 0, len(sorts)+1)
	hasID := false
	for _, f := range sorts {
		switch {
		case f.Field == "id":
			hasID = true
		case f.Field == jsonapi.AttrCreatedAt, f.Field == jsonapi.AttrUpdatedAt, cfg.HasAttribute(f.Field):
		default:
			return "", fmt.Errorf("%w: sort field %s.%s", store.ErrUnmapped, cfg.Type, f.Field)
		}
		dir := " ASC"
		if f.Descending {
			dir = " DESC"
		}
		parts = append(parts, quote(f.Field)+dir)
	}
	// id breaks ties so that pages are stable.
	if !hasID {
		parts = append(parts, quote("id")+" ASC")
	}
	return strings.Join(parts, ", "), nil
}

// List implements store.ResourceStore.List.
func (s *ResourceStore) List(
	ctx context.Context,
	typ string,
	q jsonapi.ListQuery,
) ([]jsonapi.ResourceInstance, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cfg, tm, err := s.lookup(typ)
	if err != nil {
		return nil, 0, err
	}
	order, err := orderBy(cfg, q.Sort)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quote(tm.Table)).Scan(&total); err != nil {
		log.Error("failed to count resources",
			slog.String("type", typ), redact.ErrorAttr(err))
		return nil, 0, MapError(err)
	}

	sq := newQuery(s.dialect)
	sq.write("SELECT ", selectColumns(cfg), " FROM ", quote(tm.Table), " ORDER BY ", order)
	sq.write(" LIMIT ", sq.arg(q.Page.Size), " OFFSET ", sq.arg(q.Page.Offset()))

	rows, err := s.db.QueryContext(ctx, sq.String(), sq.args...)
	if err != nil {
		log.Error("failed to list resources",
			slog.String("type", typ), redact.ErrorAttr(err))
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]jsonapi.ResourceInstance, 0, q.Page.Size)
	for rows.Next() {
		inst, err := scanInstance(rows, cfg)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s row: %w", typ, err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, MapError(err)
	}

	log.Debug("listed resources",
		slog.String("type", typ),
		slog.Int("count", len(out)),
		slog.Int("total", total))
	return out, total, nil
}

// Get implements store.ResourceStore.Get.
func (s *ResourceStore) Get(ctx context.Context, typ, id string) (jsonapi.ResourceInstance, error) {
	cfg, tm, err := s.lookup(typ)
	if err != nil {
		return jsonapi.ResourceInstance{}, err
	}

	q := newQuery(s.dialect)
	q.write("SELECT ", selectColumns(cfg), " FROM ", quote(tm.Table), " WHERE ", quote("id"), " = ", q.arg(id))

	inst, err := scanInstance(s.db.QueryRowContext(ctx, q.String(), q.args...), cfg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return jsonapi.ResourceInstance{}, fmt.Errorf("%w: %s %s", store.ErrNotFound, typ, id)
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get resource",
			slog.String("type", typ), slog.String("id", id), redact.ErrorAttr(err))
		return jsonapi.ResourceInstance{}, MapError(err)
	}
	return inst, nil
}

// GetMany implements store.ResourceStore.GetMany.
func (s *ResourceStore) GetMany(ctx context.Context, typ string, ids []string) ([]jsonapi.ResourceInstance, error) {
	cfg, tm, err := s.lookup(typ)
	if err != nil {
		return nil, err
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	q := newQuery(s.dialect)
	q.write("SELECT ", selectColumns(cfg), " FROM ", quote(tm.Table),
		" WHERE ", quote("id"), " IN ", q.in(ids), " ORDER BY ", quote("id"))

	rows, err := s.db.QueryContext(ctx, q.String(), q.args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]jsonapi.ResourceInstance, 0, len(ids))
	for rows.Next() {
		inst, err := scanInstance(rows, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", typ, err)
		}
		out = append(out, inst)
	}
	return out, MapError(rows.Err())
}

// Create implements store.ResourceStore.Create.
func (s *ResourceStore) Create(ctx context.Context, in jsonapi.ResourceInput) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cfg, tm, err := s.lookup(in.Type)
	if err != nil {
		return err
	}

	q := newQuery(s.dialect)
	cols := []string{quote("id")}
	vals := []string{q.arg(in.ID)}
	for _, a := range cfg.Attributes {
		if v, ok := in.Attributes[a]; ok {
			cols = append(cols, quote(a))
			vals = append(vals, q.arg(bindValue(v)))
		}
	}
	links, err := s.toOneColumns(tm, in.Type, in.ToOne)
	if err != nil {
		return err
	}
	for _, l := range links {
		cols = append(cols, quote(l.column))
		vals = append(vals, q.arg(l.value))
	}
	now := s.dialect.bindTime(s.now())
	cols = append(cols, quote(jsonapi.AttrCreatedAt), quote(jsonapi.AttrUpdatedAt))
	vals = append(vals, q.arg(now), q.arg(now))

	q.write("INSERT INTO ", quote(tm.Table), " (", strings.Join(cols, ", "), ") VALUES (", strings.Join(vals, ", "), ")")
	if _, err := s.db.ExecContext(ctx, q.String(), q.args...); err != nil {
		err = MapError(err)
		if errors.Is(err, store.ErrDuplicate) || errors.Is(err, store.ErrInvalidReference) {
			log.Warn("resource insert rejected",
				slog.String("type", in.Type), slog.String("id", in.ID), redact.ErrorAttr(err))
			return err
		}
		log.Error("failed to create resource",
			slog.String("type", in.Type), slog.String("id", in.ID), redact.ErrorAttr(err))
		return err
	}

	log.Info("resource created", slog.String("type", in.Type), slog.String("id", in.ID))
	return nil
}

type columnValue struct {
	column string
	value  any
}

// toOneColumns resolves to-one links into foreign key assignments, in
// relationship name order.
func (s *ResourceStore) toOneColumns(tm TableMapping, typ string, toOne map[string]*string) ([]columnValue, error) {
	names := make([]string, 0, len(toOne))
	for name := range toOne {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]columnValue, 0, len(names))
	for _, name := range names {
		rm, ok := tm.Relations[name]
		if !ok || rm.Kind != BelongsTo {
			return nil, fmt.Errorf("%w: to-one relationship %s.%s", store.ErrUnmapped, typ, name)
		}
		id := toOne[name]
		if id == nil {
			if !rm.Nullable {
				return nil, fmt.Errorf("%w: %s.%s cannot be empty", store.ErrImmutableRelationship, typ, name)
			}
			out = append(out, columnValue{column: rm.TargetColumn, value: nil})
			continue
		}
		out = append(out, columnValue{column: rm.TargetColumn, value: *id})
	}
	return out, nil
}

// Update implements store.ResourceStore.Update.
func (s *ResourceStore) Update(
	ctx context.Context,
	typ, id string,
	attrs map[string]any,
	toOne map[string]*string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cfg, tm, err := s.lookup(typ)
	if err != nil {
		return err
	}
	links, err := s.toOneColumns(tm, typ, toOne)
	if err != nil {
		return err
	}

	q := newQuery(s.dialect)
	var sets []string
	for _, a := range cfg.Attributes {
		if v, ok := attrs[a]; ok {
			sets = append(sets, quote(a)+" = "+q.arg(bindValue(v)))
		}
	}
	for _, l := range links {
		sets = append(sets, quote(l.column)+" = "+q.arg(l.value))
	}
	sets = append(sets, quote(jsonapi.AttrUpdatedAt)+" = "+q.arg(s.dialect.bindTime(s.now())))

	q.write("UPDATE ", quote(tm.Table), " SET ", strings.Join(sets, ", "), " WHERE ", quote("id"), " = ", q.arg(id))
	result, err := s.db.ExecContext(ctx, q.String(), q.args...)
	if err != nil {
		err = MapError(err)
		log.Warn("failed to update resource",
			slog.String("type", typ), slog.String("id", id), redact.ErrorAttr(err))
		return err
	}
	if err := checkRowsAffected(result, typ+" "+id); err != nil {
		return err
	}

	log.Info("resource updated", slog.String("type", typ), slog.String("id", id))
	return nil
}

// Delete implements store.ResourceStore.Delete.
func (s *ResourceStore) Delete(ctx context.Context, typ, id string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, tm, err := s.lookup(typ)
	if err != nil {
		return err
	}

	q := newQuery(s.dialect)
	q.write("DELETE FROM ", quote(tm.Table), " WHERE ", quote("id"), " = ", q.arg(id))
	result, err := s.db.ExecContext(ctx, q.String(), q.args...)
	if err != nil {
		err = MapError(err)
		log.Error("failed to delete resource",
			slog.String("type", typ), slog.String("id", id), redact.ErrorAttr(err))
		return err
	}
	if err := checkRowsAffected(result, typ+" "+id); err != nil {
		return err
	}

	log.Info("resource deleted", slog.String("type", typ), slog.String("id", id))
	return nil
}

// Lock implements store.ResourceStore.Lock.
func (s *ResourceStore) Lock(ctx context.Context, typ, id string) error {
	_, tm, err := s.lookup(typ)
	if err != nil {
		return err
	}

	q := newQuery(s.dialect)
	if s.dialect.lockByUpdate {
		q.write("UPDATE ", quote(tm.Table), " SET ", quote(jsonapi.AttrUpdatedAt), " = ", quote(jsonapi.AttrUpdatedAt),
			" WHERE ", quote("id"), " = ", q.arg(id))
		result, err := s.db.ExecContext(ctx, q.String(), q.args...)
		if err != nil {
			return MapError(err)
		}
		return checkRowsAffected(result, typ+" "+id)
	}

	q.write("SELECT ", quote("id"), " FROM ", quote(tm.Table), " WHERE ", quote("id"), " = ", q.arg(id), s.dialect.lockSuffix)
	var got string
	if err := s.db.QueryRowContext(ctx, q.String(), q.args...).Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %s", store.ErrNotFound, typ, id)
		}
		return MapError(err)
	}
	return nil
}

// MissingIDs implements store.ResourceStore.MissingIDs.
func (s *ResourceStore) MissingIDs(ctx context.Context, typ string, ids []string) ([]string, error) {
	_, tm, err := s.lookup(typ)
	if err != nil {
		return nil, err
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	q := newQuery(s.dialect)
	q.write("SELECT ", quote("id"), " FROM ", quote(tm.Table), " WHERE ", quote("id"), " IN ", q.in(ids))
	rows, err := s.db.QueryContext(ctx, q.String(), q.args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// dedupe drops repeated ids, keeping first occurrences in order.
func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
