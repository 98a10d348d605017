package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrencyConflict is returned when two writers raced on the same natural key
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrTransientStore is returned by stores for failures that are worth retrying
	ErrTransientStore = errors.New("transient store failure")
)

// Error kinds used in rejected-record logs and reports
const (
	ErrorKindSchema              = "schema"
	ErrorKindParse               = "parse"
	ErrorKindIntegrity           = "integrity"
	ErrorKindConcurrency         = "concurrency"
	ErrorKindUnresolvedDimension = "unresolved_dimension"
	ErrorKindInternal            = "internal"

	// ErrorKindReview marks records escalated for manual review rather than rejected
	ErrorKindReview = "review"
)

// SchemaError is returned when a source field or value cannot be mapped onto the canonical schema
type SchemaError struct {
	SourceCity SourceCity
	Field      string
	Value      string
	Reason     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s field %q value %q: %s", e.SourceCity, e.Field, e.Value, e.Reason)
}

// UnmappedCodeError is a SchemaError raised for a result code missing from the vocabulary mapping
type UnmappedCodeError struct {
	SchemaError
}

func (e *UnmappedCodeError) Error() string {
	return fmt.Sprintf("unmapped code: %s result code %q", e.SourceCity, e.Value)
}

// Unwrap exposes the embedded SchemaError to errors.As
func (e *UnmappedCodeError) Unwrap() error {
	return &e.SchemaError
}

// NewUnmappedCodeError creates an UnmappedCodeError for a result code
func NewUnmappedCodeError(city SourceCity, field, code string) *UnmappedCodeError {
	return &UnmappedCodeError{SchemaError{
		SourceCity: city,
		Field:      field,
		Value:      code,
		Reason:     "result code is not in the vocabulary mapping",
	}}
}

// ParseError is returned when a value cannot be parsed into its canonical type
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: field %q value %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("parse error: field %q value %q", e.Field, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IntegrityViolation is raised when an entity or record breaks a warehouse invariant.
// It is never repaired automatically.
type IntegrityViolation struct {
	Check      string
	NaturalKey string
	Detail     string
}

func (e *IntegrityViolation) Error() string {
	return fmt.Sprintf("integrity violation [%s] %s: %s", e.Check, e.NaturalKey, e.Detail)
}

// UnresolvedDimensionError is returned when a dimension key is unknown and lazy creation is disabled
type UnresolvedDimensionError struct {
	Dimension  Dimension
	NaturalKey string
}

func (e *UnresolvedDimensionError) Error() string {
	return fmt.Sprintf("unresolved %s dimension key %q", e.Dimension, e.NaturalKey)
}

// ErrorKind classifies an error into one of the error kinds
func ErrorKind(err error) string {
	var schemaErr *SchemaError
	var unmappedErr *UnmappedCodeError
	var parseErr *ParseError
	var integrityErr *IntegrityViolation
	var unresolvedErr *UnresolvedDimensionError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &unmappedErr), errors.As(err, &schemaErr):
		return ErrorKindSchema
	case errors.As(err, &parseErr):
		return ErrorKindParse
	case errors.As(err, &integrityErr):
		return ErrorKindIntegrity
	case errors.As(err, &unresolvedErr):
		return ErrorKindUnresolvedDimension
	case errors.Is(err, ErrConcurrencyConflict):
		return ErrorKindConcurrency
	default:
		return ErrorKindInternal
	}
}
