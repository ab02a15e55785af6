package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/folio-api/internal/api/shared"
	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/platform/logger"
)

// ResourceHandler serves the collection and individual resource endpoints
// of every registered type.
type ResourceHandler struct {
	resources  ResourceService
	registry   *jsonapi.Registry
	serializer *jsonapi.Serializer
	validator  *jsonapi.RequestValidator
	limits     jsonapi.PageLimits
	logger     *slog.Logger
}

// NewResourceHandler creates a new ResourceHandler
func NewResourceHandler(
	resources ResourceService,
	registry *jsonapi.Registry,
	serializer *jsonapi.Serializer,
	validator *jsonapi.RequestValidator,
	limits jsonapi.PageLimits,
	logger *slog.Logger,
) *ResourceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceHandler{
		resources:  resources,
		registry:   registry,
		serializer: serializer,
		validator:  validator,
		limits:     limits,
		logger:     logger.With(slog.String("component", "resource_handler")),
	}
}

// List handles GET /{type}
func (h *ResourceHandler) List(typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := h.registry.Config(typ)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}
		query := r.URL.Query()
		q, err := jsonapi.ParseListQuery(cfg, query, h.limits)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}

		res, err := h.resources.List(r.Context(), typ, q)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}

		page := jsonapi.Pagination{Number: q.Page.Number, Size: q.Page.Size, Total: res.Total}
		doc, err := h.serializer.SerializeCollection(typ, res.Instances, q.Include, page,
			jsonapi.PreservedQuery(query), res.Included)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}
		shared.RespondWithDocument(w, r, http.StatusOK, doc)
	}
}

// Get handles GET /{type}/{id}
func (h *ResourceHandler) Get(typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := h.registry.Config(typ)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}
		includes, err := jsonapi.ParseIncludes(cfg, r.URL.Query())
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}

		inst, included, err := h.resources.Get(r.Context(), typ, pathID(r), includes)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}
		doc, err := h.serializer.SerializeDocument(inst, includes, included)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}
		shared.RespondWithDocument(w, r, http.StatusOK, doc)
	}
}

// Create handles POST /{type}. A client-supplied id is ignored; the
// response is 201 with the Location of the new resource.
func (h *ResourceHandler) Create(typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := h.decodeResource(w, r, typ, "", http.MethodPost)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}

		inst, err := h.resources.Create(r.Context(), in)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}
		doc, err := h.serializer.SerializeDocument(inst, nil, nil)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}

		logger.FromContextOrDefault(r.Context(), h.logger).Debug("resource created",
			slog.String("type", typ),
			slog.String("id", inst.ID))
		w.Header().Set("Location", doc.Links["self"])
		shared.RespondWithDocument(w, r, http.StatusCreated, doc)
	}
}

// Update handles PATCH /{type}/{id}
func (h *ResourceHandler) Update(typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r)
		in, err := h.decodeResource(w, r, typ, id, http.MethodPatch)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}

		inst, err := h.resources.Update(r.Context(), typ, id, in)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}
		doc, err := h.serializer.SerializeDocument(inst, nil, nil)
		if err != nil {
			shared.RespondWithError(w, r, err)
			return
		}
		shared.RespondWithDocument(w, r, http.StatusOK, doc)
	}
}

// Delete handles DELETE /{type}/{id}
func (h *ResourceHandler) Delete(typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.resources.Delete(r.Context(), typ, pathID(r)); err != nil {
			shared.RespondWithError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeResource reads and validates a create or update document for typ.
// An unregistered data.type is an UnknownResourceType. A document naming
// another registered type, or on update another id, is a Conflict.
func (h *ResourceHandler) decodeResource(
	w http.ResponseWriter,
	r *http.Request,
	typ, id, method string,
) (jsonapi.ResourceInput, error) {
	body, err := shared.DecodeDocument(w, r)
	if err != nil {
		return jsonapi.ResourceInput{}, err
	}

	docType, docID := documentIdentity(body)
	if docType != "" && !h.registry.Has(docType) {
		return jsonapi.ResourceInput{}, jsonapi.NewError(jsonapi.ErrUnknownResourceType,
			"resource type %q is not registered", docType).AtPointer("/data/type")
	}
	if docType != "" && docType != typ {
		return jsonapi.ResourceInput{}, jsonapi.NewError(jsonapi.ErrConflict,
			"resource type %q does not match endpoint type %q", docType, typ).AtPointer("/data/type")
	}
	if method == http.MethodPatch && docID != "" && docID != id {
		return jsonapi.ResourceInput{}, jsonapi.NewError(jsonapi.ErrConflict,
			"resource id %q does not match endpoint id %q", docID, id).AtPointer("/data/id")
	}

	if err := h.validator.Validate(body, method); err != nil {
		return jsonapi.ResourceInput{}, err
	}
	return jsonapi.InputFromDocument(h.registry, body)
}
