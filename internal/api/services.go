package api

import (
	"context"

	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/service"
)

// ResourceService is the part of service.ResourceService the handlers use.
type ResourceService interface {
	List(ctx context.Context, typ string, q jsonapi.ListQuery) (service.ListResult, error)
	Get(ctx context.Context, typ, id string, includes []string) (jsonapi.ResourceInstance, []jsonapi.ResourceInstance, error)
	Create(ctx context.Context, in jsonapi.ResourceInput) (jsonapi.ResourceInstance, error)
	Update(ctx context.Context, typ, id string, in jsonapi.ResourceInput) (jsonapi.ResourceInstance, error)
	Delete(ctx context.Context, typ, id string) error
}

// RelationshipService is the part of service.RelationshipService the
// handlers use.
type RelationshipService interface {
	FetchRelationship(ctx context.Context, ownerType, ownerID, rel string) (jsonapi.Document, error)
	FetchRelated(ctx context.Context, ownerType, ownerID, rel string) (jsonapi.Document, error)
	ReplaceMembers(ctx context.Context, ownerType, ownerID, rel string, ids []string) error
	AddMembers(ctx context.Context, ownerType, ownerID, rel string, ids []string) error
	RemoveMembers(ctx context.Context, ownerType, ownerID, rel string, ids []string) error
}

var (
	_ ResourceService     = (*service.ResourceService)(nil)
	_ RelationshipService = (*service.RelationshipService)(nil)
)
