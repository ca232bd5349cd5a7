// Package store maps typed records, secondary indexes and collections onto a
// Redis-style key-value store.
//
// The backing store only offers hashes, sets, sorted sets, lists, counters
// and atomic batches (see package kv). This package keeps derived index
// entries consistent with the records they describe: every write that
// touches a record and its indexes is either committed in one batch or
// rejected before anything is written.
//
// # Key Features
//
//   - Typed records defined with an explicit builder, no reflection
//   - Unique, membership, sorted (score) and list indexes per attribute
//   - List, set and sorted-set collections of references or scalars
//   - Index-backed collections (unique or non-unique reverse lookup)
//   - Owned collections whose elements are created and deleted with them
//   - Extension records sharing the id of their owner
//   - Opt-in cascade of owned data with [Store.Reap] and [Store.Purge]
//
// # Defining Types
//
//	reg := store.NewRegistry()
//	City := store.Define(reg, "City", func(b *store.TypeBuilder[City]) {
//	    b.String("name", func(c *City) *string { return &c.Name }, store.Unique)
//	    b.List("connections", b.Self(), func(c *City) *store.ListHandle { return &c.Connections })
//	})
//
// # Key Layout
//
//	{Type}:{id}                 record hash
//	{Type}:{id}:{field}         collection
//	{Type}:id                   id counter
//	u:{Type}:{field}            unique map, value -> id
//	i:{Type}:{field}:{value}    membership set of ids
//	z:{Type}:{field}            sorted index, id -> score
//	l:{Type}:{field}:{value}    list index of ids
//
// # Concurrency
//
// Uniqueness is checked with a read before the write batch. Two clients
// racing on the same value can both pass the check; the store offers no
// conditional batch to close that window.
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - record missing, handle without id, element not in container
//   - [ErrUniqueViolation] - unique value already taken
//   - [ErrInvalidArgument] - incompatible types, unknown fields, score misuse
//   - [ErrAlreadyExists] - extension record already created for its owner
//   - [DataError] - stored data that does not decode
//
// Errors from the backing store are returned unchanged.
package store
