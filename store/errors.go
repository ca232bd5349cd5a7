package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record doesn't exist, a handle has no id,
	// or an element to remove is not in its container.
	ErrNotFound = errors.New("lattice: record not found")

	// ErrUniqueViolation is returned when a unique attribute or unique
	// container already maps the value to another record.
	ErrUniqueViolation = errors.New("lattice: duplicate value for unique field")

	// ErrInvalidArgument is returned when a call mixes incompatible types,
	// names undeclared fields, or omits or adds a score where the writer
	// expects otherwise.
	ErrInvalidArgument = errors.New("lattice: invalid argument")

	// ErrAlreadyExists is returned when creating an extension record whose
	// owner already has one.
	ErrAlreadyExists = errors.New("lattice: record already exists")
)

// DataError reports stored data that cannot be decoded into a record.
type DataError struct {
	Key   string
	Field string
	Err   error
}

func (e *DataError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("lattice: %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("lattice: %s: field %s: %v", e.Key, e.Field, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
