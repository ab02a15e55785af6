package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/store"
)

// ServiceError wraps an unexpected failure with the operation that hit it.
// It carries no client-facing kind, so it renders as an internal error.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// translate maps a store error for the resource typ/id onto the error
// taxonomy. Errors that already carry a kind pass through unchanged;
// anything else becomes a ServiceError.
func translate(op string, err error, typ, id string) error {
	if err == nil {
		return nil
	}

	var apiErr *jsonapi.Error
	var valErr *jsonapi.ValidationError
	switch {
	case errors.As(err, &apiErr), errors.As(err, &valErr):
		return err
	case errors.Is(err, store.ErrNotFound):
		return jsonapi.NewError(jsonapi.ErrNotFound, "%s %q does not exist", typ, id)
	case errors.Is(err, store.ErrDuplicate):
		return jsonapi.NewError(jsonapi.ErrConflict, "%s %q conflicts with an existing resource", typ, id)
	case errors.Is(err, store.ErrInvalidReference):
		return jsonapi.NewError(jsonapi.ErrUnknownReference, "%s %q references a resource that does not exist", typ, id)
	case errors.Is(err, store.ErrConflict):
		return jsonapi.NewError(jsonapi.ErrConflict, "%s %q is being modified by another request", typ, id)
	case errors.Is(err, store.ErrImmutableRelationship):
		return jsonapi.NewError(jsonapi.ErrInvalidRelationship, "%v", err)
	default:
		return NewServiceError(op, fmt.Sprintf("%s %s", typ, id), err)
	}
}
