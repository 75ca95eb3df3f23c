package lattice

import "errors"

// Sentinel errors for the lattice package. Every failure in coverage math
// is surfaced, never defaulted; callers match with errors.Is.
var (
	// ErrMalformed is returned for a structurally invalid lattice document.
	ErrMalformed = errors.New("malformed lattice document")

	// ErrSchema is returned when schema validation cannot pass the document.
	ErrSchema = errors.New("lattice schema validation failed")

	// ErrInvalidDimension is returned for an inconsistent dimension declaration.
	ErrInvalidDimension = errors.New("invalid dimension declaration")

	// ErrBadValue is returned when a raw value is outside its dimension's universe.
	ErrBadValue = errors.New("value not valid for dimension")

	// ErrContextShape is returned when a context's key set does not exactly
	// match the declared dimension set.
	ErrContextShape = errors.New("context dimensions mismatch")

	// ErrUnknownContext is returned for an unresolvable context id.
	ErrUnknownContext = errors.New("unknown context id")

	// ErrEmptyInput is returned when join or meet receives no values.
	ErrEmptyInput = errors.New("empty input")
)
