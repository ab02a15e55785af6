package middleware

import (
	"mime"
	"net/http"

	"github.com/phrazzld/folio-api/internal/api/shared"
	"github.com/phrazzld/folio-api/internal/jsonapi"
)

// RequireMediaType rejects request bodies that are not JSON:API documents.
// application/json is accepted as an alias; media type parameters are not.
// Requests without a body pass through.
func RequireMediaType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hasBody(r) {
			next.ServeHTTP(w, r)
			return
		}

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch {
		case err != nil:
			shared.RespondWithError(w, r, jsonapi.NewError(jsonapi.ErrUnsupportedMediaType,
				"Content-Type must be %s", jsonapi.MediaType))
			return
		case mediaType != jsonapi.MediaType && mediaType != "application/json":
			shared.RespondWithError(w, r, jsonapi.NewError(jsonapi.ErrUnsupportedMediaType,
				"Content-Type %q is not supported, use %s", mediaType, jsonapi.MediaType))
			return
		case len(params) > 0:
			shared.RespondWithError(w, r, jsonapi.NewError(jsonapi.ErrUnsupportedMediaType,
				"media type parameters are not allowed on %s", mediaType))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// hasBody reports whether r carries, or claims to carry, a request body.
func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPatch, http.MethodPut:
		return true
	}
	return r.ContentLength > 0 || len(r.TransferEncoding) > 0
}
