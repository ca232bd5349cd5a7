// Package kv defines the primitive contract lattice needs from a Redis-style
// key-value store: hashes, sets, sorted sets, lists, an atomic counter, and an
// atomic batch whose replies come back in issue order.
//
// Backends live in sub-packages: [memkv] (in process), [boltkv] (bbolt file),
// [rediskv] (Redis) and [dynamokv] (DynamoDB single table).
//
// [memkv]: https://pkg.go.dev/github.com/jacentio/lattice/kv/memkv
// [boltkv]: https://pkg.go.dev/github.com/jacentio/lattice/kv/boltkv
// [rediskv]: https://pkg.go.dev/github.com/jacentio/lattice/kv/rediskv
// [dynamokv]: https://pkg.go.dev/github.com/jacentio/lattice/kv/dynamokv
package kv

import "context"

// Reader is the read-only half of a Store.
//
// Missing keys behave like empty values of the requested kind, as in Redis.
// A key holding a value of a different kind yields ErrWrongType.
type Reader interface {
	// HGetAll returns every field of the hash at key.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HGet returns a single hash field and whether it was present.
	HGet(ctx context.Context, key, field string) (string, bool, error)

	// HExists reports whether field is present in the hash at key.
	HExists(ctx context.Context, key, field string) (bool, error)

	// Exists reports whether any value is stored at key.
	Exists(ctx context.Context, key string) (bool, error)

	// SMembers returns the members of the set at key.
	SMembers(ctx context.Context, key string) ([]string, error)

	// SIsMember reports whether member belongs to the set at key.
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// ZRange returns members by rank between start and stop inclusive.
	// Negative ranks count from the end. With rev the order is descending.
	ZRange(ctx context.Context, key string, start, stop int64, rev bool) ([]string, error)

	// ZRangeByScore returns members whose score lies within q's bounds.
	ZRangeByScore(ctx context.Context, key string, q ScoreQuery) ([]string, error)

	// ZCount counts members whose score lies between min and max.
	ZCount(ctx context.Context, key string, min, max Bound) (int64, error)

	// ZRank returns the rank of member and whether it is present.
	ZRank(ctx context.Context, key, member string, rev bool) (int64, bool, error)

	// ZScore returns the score of member and whether it is present.
	ZScore(ctx context.Context, key, member string) (float64, bool, error)

	// LRange returns list elements between start and stop inclusive.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// Store is a Reader that can also mutate.
type Store interface {
	Reader

	// Incr atomically increments the counter at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	// Batch starts an empty atomic batch bound to this store.
	Batch() *Batch

	// Close releases backend resources.
	Close() error
}
