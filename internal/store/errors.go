package store

import "errors"

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidReference is returned when a write references a row that
	// does not exist (foreign key violation).
	ErrInvalidReference = errors.New("invalid reference")

	// ErrConflict is returned when a write cannot proceed because of
	// concurrent activity: a held row lock, a serialization failure or a
	// busy database.
	ErrConflict = errors.New("concurrent modification")

	// ErrImmutableRelationship is returned when a relationship member cannot
	// be unlinked because the link is a required foreign key.
	ErrImmutableRelationship = errors.New("relationship member cannot be removed")

	// ErrUnmapped is returned when a type or relationship has no storage
	// mapping.
	ErrUnmapped = errors.New("no storage mapping")
)
