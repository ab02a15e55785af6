package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/platform/logger"
	"github.com/phrazzld/folio-api/internal/store"
)

// RelationshipService reads relationship linkage and related resources and
// mutates to-many membership. Every mutation runs in one transaction with
// the owner row locked, so concurrent writers to the same owner fail with a
// Conflict instead of interleaving.
type RelationshipService struct {
	resources  store.ResourceStore
	relations  store.RelationshipStore
	registry   *jsonapi.Registry
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewRelationshipService creates a RelationshipService.
// It returns an error if any of the required dependencies are nil.
func NewRelationshipService(
	resources store.ResourceStore,
	relations store.RelationshipStore,
	registry *jsonapi.Registry,
	serializer *jsonapi.Serializer,
	logger *slog.Logger,
) (*RelationshipService, error) {
	switch {
	case resources == nil:
		return nil, errors.New("resources cannot be nil")
	case relations == nil:
		return nil, errors.New("relations cannot be nil")
	case registry == nil:
		return nil, errors.New("registry cannot be nil")
	case serializer == nil:
		return nil, errors.New("serializer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RelationshipService{
		resources:  resources,
		relations:  relations,
		registry:   registry,
		serializer: serializer,
		logger:     logger.With(slog.String("component", "relationship_service")),
	}, nil
}

// owner resolves the descriptor of rel and checks that the owner exists.
func (s *RelationshipService) owner(
	ctx context.Context,
	ownerType, ownerID, rel string,
) (jsonapi.RelationshipDescriptor, error) {
	desc, err := s.registry.Relationship(ownerType, rel)
	if err != nil {
		return jsonapi.RelationshipDescriptor{}, err
	}
	if _, err := s.resources.Get(ctx, ownerType, ownerID); err != nil {
		return jsonapi.RelationshipDescriptor{}, translate("fetch owner", err, ownerType, ownerID)
	}
	return desc, nil
}

func (s *RelationshipService) members(
	ctx context.Context,
	relations store.RelationshipStore,
	ownerType, ownerID string,
	desc jsonapi.RelationshipDescriptor,
) ([]string, error) {
	m, err := relations.Members(ctx, ownerType, desc.Name, []string{ownerID})
	if err != nil {
		return nil, translate("load members", err, ownerType, ownerID)
	}
	return m[ownerID], nil
}

// FetchRelationship returns the linkage document of an owner's relationship.
func (s *RelationshipService) FetchRelationship(
	ctx context.Context,
	ownerType, ownerID, rel string,
) (jsonapi.Document, error) {
	desc, err := s.owner(ctx, ownerType, ownerID, rel)
	if err != nil {
		return jsonapi.Document{}, err
	}
	ids, err := s.members(ctx, s.relations, ownerType, ownerID, desc)
	if err != nil {
		return jsonapi.Document{}, err
	}

	urls := s.serializer.URLs()
	return jsonapi.Document{
		Data: linkageOf(desc, ids),
		Links: map[string]string{
			"self":    urls.Relationship(ownerType, ownerID, rel),
			"related": urls.Related(ownerType, ownerID, rel),
		},
	}, nil
}

// FetchRelated returns the full related resources: a single resource
// document (data may be null) for to-one relationships, a collection
// document for to-many.
func (s *RelationshipService) FetchRelated(
	ctx context.Context,
	ownerType, ownerID, rel string,
) (jsonapi.Document, error) {
	desc, err := s.owner(ctx, ownerType, ownerID, rel)
	if err != nil {
		return jsonapi.Document{}, err
	}
	ids, err := s.members(ctx, s.relations, ownerType, ownerID, desc)
	if err != nil {
		return jsonapi.Document{}, err
	}
	self := s.serializer.URLs().Related(ownerType, ownerID, rel)

	related, err := s.resources.GetMany(ctx, desc.TargetType, ids)
	if err != nil {
		return jsonapi.Document{}, translate("fetch related", err, desc.TargetType, strings.Join(ids, ","))
	}

	if desc.Cardinality == jsonapi.CardinalityOne {
		if len(related) == 0 {
			return jsonapi.Document{Data: nil, Links: map[string]string{"self": self}}, nil
		}
		doc, err := s.serializer.SerializeDocument(related[0], nil, nil)
		if err != nil {
			return jsonapi.Document{}, err
		}
		doc.Links["self"] = self
		return doc, nil
	}
	return s.serializer.SerializeRelated(self, related)
}

// ReplaceMembers makes the to-many membership of rel equal exactly ids.
// Members missing from ids are unlinked, new ones linked and shared ones
// left alone. Duplicate ids collapse. Fails with InvalidRelationship for
// to-one relationships and UnknownReference if any id does not exist; in
// both cases nothing changes.
func (s *RelationshipService) ReplaceMembers(
	ctx context.Context,
	ownerType, ownerID, rel string,
	ids []string,
) error {
	desc, err := s.toMany(ownerType, rel)
	if err != nil {
		return err
	}
	ids = dedupe(ids)

	return store.RunInTransaction(ctx, s.resources.DB(), func(ctx context.Context, tx *sql.Tx) error {
		return replaceMembers(ctx, s.resources.WithTx(tx), s.relations.WithTx(tx), ownerType, ownerID, desc, ids)
	})
}

// AddMembers links the ids not already members of rel.
func (s *RelationshipService) AddMembers(
	ctx context.Context,
	ownerType, ownerID, rel string,
	ids []string,
) error {
	desc, err := s.toMany(ownerType, rel)
	if err != nil {
		return err
	}
	ids = dedupe(ids)

	return store.RunInTransaction(ctx, s.resources.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txRes, txRel := s.resources.WithTx(tx), s.relations.WithTx(tx)
		current, err := lockAndCheck(ctx, txRes, txRel, ownerType, ownerID, desc, ids)
		if err != nil {
			return err
		}
		_, added := diff(current, ids)
		if err := txRel.Link(ctx, ownerType, ownerID, desc.Name, added); err != nil {
			return translate("link members", err, ownerType, ownerID)
		}
		logger.FromContextOrDefault(ctx, s.logger).Info("relationship members added",
			slog.String("type", ownerType),
			slog.String("id", ownerID),
			slog.String("relationship", desc.Name),
			slog.Int("added", len(added)))
		return nil
	})
}

// RemoveMembers unlinks the ids that are members of rel. Ids that are not
// members are ignored.
func (s *RelationshipService) RemoveMembers(
	ctx context.Context,
	ownerType, ownerID, rel string,
	ids []string,
) error {
	desc, err := s.toMany(ownerType, rel)
	if err != nil {
		return err
	}
	ids = dedupe(ids)

	return store.RunInTransaction(ctx, s.resources.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txRes, txRel := s.resources.WithTx(tx), s.relations.WithTx(tx)
		if err := txRes.Lock(ctx, ownerType, ownerID); err != nil {
			return translate("lock owner", err, ownerType, ownerID)
		}
		current, err := s.members(ctx, txRel, ownerType, ownerID, desc)
		if err != nil {
			return err
		}
		remaining, _ := diff(current, ids)
		removed, _ := diff(current, remaining)
		if err := txRel.Unlink(ctx, ownerType, ownerID, desc.Name, removed); err != nil {
			return translate("unlink members", err, ownerType, ownerID)
		}
		logger.FromContextOrDefault(ctx, s.logger).Info("relationship members removed",
			slog.String("type", ownerType),
			slog.String("id", ownerID),
			slog.String("relationship", desc.Name),
			slog.Int("removed", len(removed)))
		return nil
	})
}

func (s *RelationshipService) toMany(ownerType, rel string) (jsonapi.RelationshipDescriptor, error) {
	desc, err := s.registry.Relationship(ownerType, rel)
	if err != nil {
		return jsonapi.RelationshipDescriptor{}, err
	}
	if desc.Cardinality != jsonapi.CardinalityMany {
		return jsonapi.RelationshipDescriptor{}, jsonapi.NewError(jsonapi.ErrInvalidRelationship,
			"%s.%s is a to-one relationship; update it through the resource", ownerType, rel)
	}
	return desc, nil
}

// lockAndCheck locks the owner row, verifies that every id exists and
// returns the current members.
func lockAndCheck(
	ctx context.Context,
	resources store.ResourceStore,
	relations store.RelationshipStore,
	ownerType, ownerID string,
	desc jsonapi.RelationshipDescriptor,
	ids []string,
) ([]string, error) {
	if err := resources.Lock(ctx, ownerType, ownerID); err != nil {
		return nil, translate("lock owner", err, ownerType, ownerID)
	}
	missing, err := resources.MissingIDs(ctx, desc.TargetType, ids)
	if err != nil {
		return nil, translate("check references", err, desc.TargetType, "")
	}
	if len(missing) > 0 {
		return nil, jsonapi.NewError(jsonapi.ErrUnknownReference,
			"%s %s not found", desc.TargetType, quoteAll(missing))
	}
	m, err := relations.Members(ctx, ownerType, desc.Name, []string{ownerID})
	if err != nil {
		return nil, translate("load members", err, ownerType, ownerID)
	}
	return m[ownerID], nil
}

// replaceMembers applies set replacement on stores already bound to a
// transaction.
func replaceMembers(
	ctx context.Context,
	resources store.ResourceStore,
	relations store.RelationshipStore,
	ownerType, ownerID string,
	desc jsonapi.RelationshipDescriptor,
	ids []string,
) error {
	current, err := lockAndCheck(ctx, resources, relations, ownerType, ownerID, desc, ids)
	if err != nil {
		return err
	}
	removed, added := diff(current, ids)
	if err := relations.Unlink(ctx, ownerType, ownerID, desc.Name, removed); err != nil {
		return translate("unlink members", err, ownerType, ownerID)
	}
	if err := relations.Link(ctx, ownerType, ownerID, desc.Name, added); err != nil {
		return translate("link members", err, ownerType, ownerID)
	}

	logger.FromContext(ctx).Debug("relationship membership replaced",
		slog.String("type", ownerType),
		slog.String("id", ownerID),
		slog.String("relationship", desc.Name),
		slog.Int("removed", len(removed)),
		slog.Int("added", len(added)))
	return nil
}

func quoteAll(ids []string) string {
	q := make([]string, len(ids))
	for i, id := range ids {
		q[i] = `"` + id + `"`
	}
	return strings.Join(q, ", ")
}
