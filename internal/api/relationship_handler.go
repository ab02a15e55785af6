package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/folio-api/internal/api/shared"
	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/platform/logger"
)

// RelationshipHandler serves relationship and related resource endpoints.
type RelationshipHandler struct {
	relations RelationshipService
	registry  *jsonapi.Registry
	validator *jsonapi.RequestValidator
	logger    *slog.Logger
}

// NewRelationshipHandler creates a new RelationshipHandler
func NewRelationshipHandler(
	relations RelationshipService,
	registry *jsonapi.Registry,
	validator *jsonapi.RequestValidator,
	logger *slog.Logger,
) *RelationshipHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelationshipHandler{
		relations: relations,
		registry:  registry,
		validator: validator,
		logger:    logger.With(slog.String("component", "relationship_handler")),
	}
}

type fetchFunc func(ctx context.Context, ownerType, ownerID, rel string) (jsonapi.Document, error)

type mutateFunc func(ctx context.Context, ownerType, ownerID, rel string, ids []string) error

// Fetch handles GET /{type}/{id}/relationships/{relationship}
func (h *RelationshipHandler) Fetch(typ string) http.HandlerFunc {
	return h.read(typ, h.relations.FetchRelationship)
}

// Related handles GET /{type}/{id}/{relationship}
func (h *RelationshipHandler) Related(typ string) http.HandlerFunc {
	return h.read(typ, h.relations.FetchRelated)
}

// Replace handles PATCH /{type}/{id}/relationships/{relationship}
func (h *RelationshipHandler) Replace(typ string) http.HandlerFunc {
	return h.mutate(typ, "replace", h.relations.ReplaceMembers)
}

// Add handles POST /{type}/{id}/relationships/{relationship}
func (h *RelationshipHandler) Add(typ string) http.HandlerFunc {
	return h.mutate(typ, "add", h.relations.AddMembers)
}

// Remove handles DELETE /{type}/{id}/relationships/{relationship}
func (h *RelationshipHandler) Remove(typ string) http.HandlerFunc {
	return h.mutate(typ, "remove", h.relations.RemoveMembers)
}

func (h *RelationshipHandler) read(typ string, fetch fetchFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := fetch(r.Context(), typ, pathID(r), pathRelationship(r))
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}
		shared.RespondWithDocument(w, r, http.StatusOK, doc)
	}
}

// mutate decodes a linkage document and applies it. Success is 204 with no
// body.
func (h *RelationshipHandler) mutate(typ, op string, apply mutateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, rel := pathID(r), pathRelationship(r)

		desc, err := h.registry.Relationship(typ, rel)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}
		body, err := shared.DecodeDocument(w, r)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}
		ids, err := h.validator.ValidateLinkage(body, desc)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}

		if err := apply(r.Context(), typ, id, rel, ids); err != nil {
			shared.RespondWithError(w, r, err)
			return
		}

		logger.FromContextOrDefault(r.Context(), h.logger).Debug("relationship updated",
			slog.String("op", op),
			slog.String("type", typ),
			slog.String("id", id),
			slog.String("relationship", rel),
			slog.Int("ids", len(ids)))
		w.WriteHeader(http.StatusNoContent)
	}
}
