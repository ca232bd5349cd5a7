package kv

import "errors"

var (
	// ErrWrongType is returned when an operation targets a key holding a
	// value of another kind.
	ErrWrongType = errors.New("kv: WRONGTYPE operation against a key holding the wrong kind of value")

	// ErrConflict is returned when a backend detects that data read while
	// preparing a batch changed before the batch committed.
	ErrConflict = errors.New("kv: concurrent modification")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kv: store is closed")
)
