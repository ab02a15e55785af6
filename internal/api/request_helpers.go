package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Path parameter names shared by the routes and the handlers.
const (
	paramID           = "id"
	paramRelationship = "relationship"
)

// pathID returns the resource id of the route.
func pathID(r *http.Request) string {
	return chi.URLParam(r, paramID)
}

// pathRelationship returns the relationship name of the route.
func pathRelationship(r *http.Request) string {
	return chi.URLParam(r, paramRelationship)
}

// documentIdentity reads data.type and data.id from a decoded document
// without validating it. Missing members yield "".
func documentIdentity(body any) (typ, id string) {
	doc, _ := body.(map[string]any)
	data, _ := doc["data"].(map[string]any)
	typ, _ = data["type"].(string)
	id, _ = data["id"].(string)
	return typ, id
}
