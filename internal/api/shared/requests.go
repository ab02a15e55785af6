package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/phrazzld/folio-api/internal/jsonapi"
)

// MaxBodyBytes caps the size of a request document.
const MaxBodyBytes = 1 << 20

// DecodeDocument reads the request body as a generic JSON value. Empty,
// oversized or undecodable bodies and trailing data are MalformedDocument.
func DecodeDocument(w http.ResponseWriter, r *http.Request) (any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))

	var body any
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil, jsonapi.NewError(jsonapi.ErrMalformedDocument, "request body is empty")
		case errors.As(err, &tooLarge):
			return nil, jsonapi.NewError(jsonapi.ErrMalformedDocument,
				"request body exceeds %d bytes", tooLarge.Limit)
		default:
			return nil, jsonapi.NewError(jsonapi.ErrMalformedDocument, "request body is not valid JSON: %v", err)
		}
	}
	if dec.More() {
		return nil, jsonapi.NewError(jsonapi.ErrMalformedDocument, "request body must hold a single JSON document")
	}
	return body, nil
}
