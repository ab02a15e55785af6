package jsonapi

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// Error kinds surfaced to clients. Every error returned by this package wraps
// exactly one of them, so callers can branch with errors.Is.
var (
	ErrMalformedDocument     = errors.New("malformed document")
	ErrUnknownResourceType   = errors.New("unknown resource type")
	ErrInvalidRelationship   = errors.New("invalid relationship")
	ErrUnknownReference      = errors.New("unknown reference")
	ErrValidationFailed      = errors.New("validation failed")
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrInvalidQueryParameter = errors.New("invalid query parameter")
	ErrUnsupportedMediaType  = errors.New("unsupported media type")

	// ErrInvalidConfig is returned when resource type configuration is
	// inconsistent. It is a start-up failure and never reaches a client.
	ErrInvalidConfig = errors.New("invalid resource configuration")
)

// Error is a single client-facing failure of a given kind.
type Error struct {
	Kind      error
	Detail    string
	Pointer   string // JSON pointer into the request document
	Parameter string // offending query parameter
}

// NewError creates an Error of the given kind with a formatted detail.
func NewError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// AtPointer returns a copy of the error attributed to a document location.
func (e *Error) AtPointer(pointer string) *Error {
	cp := *e
	cp.Pointer = pointer
	return &cp
}

// AtParameter returns a copy of the error attributed to a query parameter.
func (e *Error) AtParameter(param string) *Error {
	cp := *e
	cp.Parameter = param
	return &cp
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

// Unwrap returns the error kind.
func (e *Error) Unwrap() error {
	return e.Kind
}

// FieldError describes one violated rule. Path is the dotted field path
// (data.attributes.name).
type FieldError struct {
	Path    string
	Message string
}

// ValidationError aggregates every field failure of a request.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Path+" "+f.Message)
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap returns ErrValidationFailed.
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

func newValidationError(fields []FieldError) *ValidationError {
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Path < fields[j].Path })
	return &ValidationError{Fields: fields}
}

// ErrorObject is a JSON:API error object.
type ErrorObject struct {
	Status string       `json:"status"`
	Title  string       `json:"title"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
}

// ErrorSource locates the cause of an error in the request.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// ErrorDocument is the top-level document for failed requests.
type ErrorDocument struct {
	Errors []ErrorObject `json:"errors"`
}

type kindInfo struct {
	kind   error
	status int
	title  string
}

// Order matters only for errors wrapping more than one kind.
var kinds = []kindInfo{
	{ErrValidationFailed, http.StatusUnprocessableEntity, "ValidationFailed"},
	{ErrMalformedDocument, http.StatusBadRequest, "MalformedDocument"},
	{ErrUnknownResourceType, http.StatusBadRequest, "UnknownResourceType"},
	{ErrInvalidRelationship, http.StatusBadRequest, "InvalidRelationship"},
	{ErrInvalidQueryParameter, http.StatusBadRequest, "InvalidQueryParameter"},
	{ErrUnknownReference, http.StatusNotFound, "UnknownReference"},
	{ErrNotFound, http.StatusNotFound, "NotFound"},
	{ErrConflict, http.StatusConflict, "Conflict"},
	{ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "UnsupportedMediaType"},
}

// StatusCode maps an error to its HTTP status. Errors outside the taxonomy
// are internal server errors.
func StatusCode(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Title returns the taxonomy name of an error.
func Title(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return k.title
		}
	}
	return "InternalServerError"
}

// ErrorDocumentFor renders err as an error document. Details of errors
// outside the taxonomy are withheld.
func ErrorDocumentFor(err error) ErrorDocument {
	status := strconv.Itoa(StatusCode(err))
	title := Title(err)

	var verr *ValidationError
	if errors.As(err, &verr) {
		objs := make([]ErrorObject, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			objs = append(objs, ErrorObject{
				Status: status,
				Title:  title,
				Detail: f.Message,
				Source: &ErrorSource{Pointer: PathToPointer(f.Path)},
			})
		}
		return ErrorDocument{Errors: objs}
	}

	obj := ErrorObject{Status: status, Title: title}
	var jerr *Error
	switch {
	case errors.As(err, &jerr):
		obj.Detail = jerr.Detail
		if jerr.Pointer != "" || jerr.Parameter != "" {
			obj.Source = &ErrorSource{Pointer: jerr.Pointer, Parameter: jerr.Parameter}
		}
	case StatusCode(err) != http.StatusInternalServerError:
		obj.Detail = err.Error()
	default:
		obj.Detail = "An unexpected error occurred"
	}
	return ErrorDocument{Errors: []ErrorObject{obj}}
}

// PathToPointer converts a dotted field path into a JSON pointer.
func PathToPointer(path string) string {
	if path == "" {
		return ""
	}
	segs := strings.Split(path, ".")
	for i, s := range segs {
		s = strings.ReplaceAll(s, "~", "~0")
		segs[i] = strings.ReplaceAll(s, "/", "~1")
	}
	return "/" + strings.Join(segs, "/")
}
