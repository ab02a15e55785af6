package jsonapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
		title  string
	}{
		{&ValidationError{}, http.StatusUnprocessableEntity, "ValidationFailed"},
		{NewError(ErrMalformedDocument, "x"), http.StatusBadRequest, "MalformedDocument"},
		{NewError(ErrUnknownResourceType, "x"), http.StatusBadRequest, "UnknownResourceType"},
		{NewError(ErrInvalidRelationship, "x"), http.StatusBadRequest, "InvalidRelationship"},
		{NewError(ErrInvalidQueryParameter, "x"), http.StatusBadRequest, "InvalidQueryParameter"},
		{NewError(ErrUnknownReference, "x"), http.StatusNotFound, "UnknownReference"},
		{NewError(ErrNotFound, "x"), http.StatusNotFound, "NotFound"},
		{NewError(ErrConflict, "x"), http.StatusConflict, "Conflict"},
		{NewError(ErrUnsupportedMediaType, "x"), http.StatusUnsupportedMediaType, "UnsupportedMediaType"},
		{fmt.Errorf("wrapped: %w", ErrNotFound), http.StatusNotFound, "NotFound"},
		{errors.New("boom"), http.StatusInternalServerError, "InternalServerError"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusCode(tt.err), tt.err.Error())
		assert.Equal(t, tt.title, Title(tt.err), tt.err.Error())
	}
}

func TestErrorDocumentFor(t *testing.T) {
	t.Parallel()

	t.Run("validation error yields one object per field", func(t *testing.T) {
		err := newValidationError([]FieldError{
			{Path: "data.attributes.name", Message: "is required"},
			{Path: "data.attributes.age", Message: "must be an integer"},
		})
		assert.JSONEq(t, `{"errors":[
			{"status":"422","title":"ValidationFailed","detail":"must be an integer","source":{"pointer":"/data/attributes/age"}},
			{"status":"422","title":"ValidationFailed","detail":"is required","source":{"pointer":"/data/attributes/name"}}
		]}`, mustJSON(t, ErrorDocumentFor(err)))
	})

	t.Run("query parameter error", func(t *testing.T) {
		err := NewError(ErrInvalidQueryParameter, "books cannot be sorted by \"x\"").AtParameter("sort")
		assert.JSONEq(t, `{"errors":[
			{"status":"400","title":"InvalidQueryParameter","detail":"books cannot be sorted by \"x\"","source":{"parameter":"sort"}}
		]}`, mustJSON(t, ErrorDocumentFor(err)))
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		doc := ErrorDocumentFor(errors.New("pq: relation \"secret\" does not exist"))
		assert.JSONEq(t, `{"errors":[
			{"status":"500","title":"InternalServerError","detail":"An unexpected error occurred"}
		]}`, mustJSON(t, doc))
	})
}

func TestPathToPointer(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", PathToPointer(""))
	assert.Equal(t, "/data/attributes/name", PathToPointer("data.attributes.name"))
	assert.Equal(t, "/data/attributes/a~1b~0c", PathToPointer("data.attributes.a/b~c"))
}
