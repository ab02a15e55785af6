package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/platform/logger"
	"github.com/phrazzld/folio-api/internal/store"
)

// ListResult is one page of a collection.
type ListResult struct {
	Instances []jsonapi.ResourceInstance
	// Included holds the resources named by the requested includes.
	Included []jsonapi.ResourceInstance
	Total    int
}

// ResourceService provides list, get, create, update and delete for every
// registered type.
type ResourceService struct {
	resources store.ResourceStore
	relations store.RelationshipStore
	registry  *jsonapi.Registry
	logger    *slog.Logger
	newID     func() string
}

// NewResourceService creates a ResourceService.
// It returns an error if any of the required dependencies are nil.
func NewResourceService(
	resources store.ResourceStore,
	relations store.RelationshipStore,
	registry *jsonapi.Registry,
	logger *slog.Logger,
) (*ResourceService, error) {
	switch {
	case resources == nil:
		return nil, errors.New("resources cannot be nil")
	case relations == nil:
		return nil, errors.New("relations cannot be nil")
	case registry == nil:
		return nil, errors.New("registry cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceService{
		resources: resources,
		relations: relations,
		registry:  registry,
		logger:    logger.With(slog.String("component", "resource_service")),
		newID:     func() string { return uuid.NewString() },
	}, nil
}

// List returns one page of typ with linkage loaded for the requested
// includes.
func (s *ResourceService) List(ctx context.Context, typ string, q jsonapi.ListQuery) (ListResult, error) {
	if _, err := s.registry.Config(typ); err != nil {
		return ListResult{}, err
	}

	instances, total, err := s.resources.List(ctx, typ, q)
	if err != nil {
		return ListResult{}, translate("list", err, typ, "")
	}
	included, err := loadRelations(ctx, s.registry, s.resources, s.relations, instances, q.Include, true)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Instances: instances, Included: included, Total: total}, nil
}

// Get returns a single resource and the resources named by includes.
func (s *ResourceService) Get(
	ctx context.Context,
	typ, id string,
	includes []string,
) (jsonapi.ResourceInstance, []jsonapi.ResourceInstance, error) {
	if _, err := s.registry.Config(typ); err != nil {
		return jsonapi.ResourceInstance{}, nil, err
	}

	inst, err := s.resources.Get(ctx, typ, id)
	if err != nil {
		return jsonapi.ResourceInstance{}, nil, translate("get", err, typ, id)
	}
	one := []jsonapi.ResourceInstance{inst}
	included, err := loadRelations(ctx, s.registry, s.resources, s.relations, one, includes, true)
	if err != nil {
		return jsonapi.ResourceInstance{}, nil, err
	}
	return one[0], included, nil
}

// Create stores a new resource under a generated id, applying every
// relationship in the input in the same transaction. The returned instance
// has linkage loaded for all of its relationships.
func (s *ResourceService) Create(ctx context.Context, in jsonapi.ResourceInput) (jsonapi.ResourceInstance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cfg, err := s.registry.Config(in.Type)
	if err != nil {
		return jsonapi.ResourceInstance{}, err
	}
	in.ID = s.newID()

	var created jsonapi.ResourceInstance
	err = store.RunInTransaction(ctx, s.resources.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txRes, txRel := s.resources.WithTx(tx), s.relations.WithTx(tx)

		if err := checkToOne(ctx, txRes, cfg, in.ToOne); err != nil {
			return err
		}
		if err := txRes.Create(ctx, in); err != nil {
			return translate("create", err, in.Type, in.ID)
		}
		if err := applyToMany(ctx, txRes, txRel, cfg, in.ID, in.ToMany); err != nil {
			return err
		}

		created, err = s.reload(ctx, txRes, txRel, cfg, in.ID)
		return err
	})
	if err != nil {
		log.Warn("resource create rejected",
			slog.String("type", in.Type),
			slog.String("error_kind", jsonapi.Title(err)))
		return jsonapi.ResourceInstance{}, err
	}

	log.Info("resource created", slog.String("type", in.Type), slog.String("id", in.ID))
	return created, nil
}

// Update writes the attributes present in the input and replaces the
// membership of every relationship it names. The row is locked for the
// duration of the transaction.
func (s *ResourceService) Update(
	ctx context.Context,
	typ, id string,
	in jsonapi.ResourceInput,
) (jsonapi.ResourceInstance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cfg, err := s.registry.Config(typ)
	if err != nil {
		return jsonapi.ResourceInstance{}, err
	}

	var updated jsonapi.ResourceInstance
	err = store.RunInTransaction(ctx, s.resources.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txRes, txRel := s.resources.WithTx(tx), s.relations.WithTx(tx)

		if err := txRes.Lock(ctx, typ, id); err != nil {
			return translate("lock", err, typ, id)
		}
		if err := checkToOne(ctx, txRes, cfg, in.ToOne); err != nil {
			return err
		}
		if err := txRes.Update(ctx, typ, id, in.Attributes, in.ToOne); err != nil {
			return translate("update", err, typ, id)
		}
		if err := applyToMany(ctx, txRes, txRel, cfg, id, in.ToMany); err != nil {
			return err
		}

		updated, err = s.reload(ctx, txRes, txRel, cfg, id)
		return err
	})
	if err != nil {
		log.Warn("resource update rejected",
			slog.String("type", typ),
			slog.String("id", id),
			slog.String("error_kind", jsonapi.Title(err)))
		return jsonapi.ResourceInstance{}, err
	}
	return updated, nil
}

// Delete removes a resource.
func (s *ResourceService) Delete(ctx context.Context, typ, id string) error {
	if _, err := s.registry.Config(typ); err != nil {
		return err
	}
	if err := s.resources.Delete(ctx, typ, id); err != nil {
		return translate("delete", err, typ, id)
	}
	return nil
}

func (s *ResourceService) reload(
	ctx context.Context,
	resources store.ResourceStore,
	relations store.RelationshipStore,
	cfg *jsonapi.ResourceTypeConfig,
	id string,
) (jsonapi.ResourceInstance, error) {
	inst, err := resources.Get(ctx, cfg.Type, id)
	if err != nil {
		return jsonapi.ResourceInstance{}, translate("reload", err, cfg.Type, id)
	}
	one := []jsonapi.ResourceInstance{inst}
	if _, err := loadRelations(ctx, s.registry, resources, relations, one, relationshipNames(cfg), false); err != nil {
		return jsonapi.ResourceInstance{}, err
	}
	return one[0], nil
}

// checkToOne verifies that every non-null to-one link names an existing
// resource.
func checkToOne(
	ctx context.Context,
	resources store.ResourceStore,
	cfg *jsonapi.ResourceTypeConfig,
	toOne map[string]*string,
) error {
	for _, name := range sortedKeys(toOne) {
		id := toOne[name]
		if id == nil {
			continue
		}
		desc, ok := cfg.Relationship(name)
		if !ok {
			return jsonapi.NewError(jsonapi.ErrInvalidRelationship, "%s has no relationship named %q", cfg.Type, name).
				AtPointer("/data/relationships/" + name)
		}
		missing, err := resources.MissingIDs(ctx, desc.TargetType, []string{*id})
		if err != nil {
			return translate("check references", err, desc.TargetType, *id)
		}
		if len(missing) > 0 {
			return jsonapi.NewError(jsonapi.ErrUnknownReference, "%s %q not found", desc.TargetType, *id).
				AtPointer("/data/relationships/" + name + "/data/id")
		}
	}
	return nil
}

// applyToMany replaces the membership of every to-many relationship in
// toMany, in name order.
func applyToMany(
	ctx context.Context,
	resources store.ResourceStore,
	relations store.RelationshipStore,
	cfg *jsonapi.ResourceTypeConfig,
	ownerID string,
	toMany map[string][]string,
) error {
	for _, name := range sortedKeys(toMany) {
		desc, ok := cfg.Relationship(name)
		if !ok || desc.Cardinality != jsonapi.CardinalityMany {
			return jsonapi.NewError(jsonapi.ErrInvalidRelationship, "%s has no to-many relationship named %q", cfg.Type, name).
				AtPointer("/data/relationships/" + name)
		}
		ids := dedupe(toMany[name])
		if err := replaceMembers(ctx, resources, relations, cfg.Type, ownerID, desc, ids); err != nil {
			var apiErr *jsonapi.Error
			if errors.As(err, &apiErr) && apiErr.Pointer == "" {
				return apiErr.AtPointer("/data/relationships/" + name + "/data")
			}
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
