// Package memkv is an in-process kv.Store. Batches are staged in an overlay
// and swapped in under the write lock, so readers never see half a batch.
package memkv

import (
	"context"
	"sort"
	"sync"

	"github.com/jacentio/lattice/internal/kvstate"
	"github.com/jacentio/lattice/kv"
)

// Store keeps every value in a map guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	data   map[string]*kvstate.Value
	closed bool
}

var _ kv.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{data: map[string]*kvstate.Value{}}
}

func (s *Store) read(key string, fn func(v *kvstate.Value) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return kv.ErrClosed
	}
	return fn(s.data[key])
}

func (s *Store) HGetAll(_ context.Context, key string) (out map[string]string, err error) {
	err = s.read(key, func(v *kvstate.Value) error {
		out, err = v.HGetAll()
		return err
	})
	return out, err
}

func (s *Store) HGet(_ context.Context, key, field string) (val string, ok bool, err error) {
	err = s.read(key, func(v *kvstate.Value) error {
		val, ok, err = v.HGet(field)
		return err
	})
	return val, ok, err
}

func (s *Store) HExists(ctx context.Context, key, field string) (bool, error) {
	_, ok, err := s.HGet(ctx, key, field)
	return ok, err
}

func (s *Store) Exists(_ context.Context, key string) (ok bool, err error) {
	err = s.read(key, func(v *kvstate.Value) error {
		ok = !v.Empty()
		return nil
	})
	return ok, err
}

func (s *Store) SMembers(_ context.Context, key string) (out []string, err error) {
	err = s.read(key, func(v *kvstate.Value) error {
		out, err = v.SMembers()
		return err
	})
	return out, err
}

func (s *Store) SIsMember(_ context.Context, key, member string) (ok bool, err error) {
	err = s.read(key, func(v *kvstate.Value) error {
		ok, err = v.SIsMember(member)
		return err
	})
	return ok, err
}

func (s *Store) ZRange(_ context.Context, key string, start, stop int64, rev bool) (out []string, err error) {
	err = s.read(key, func(v *kvstate.Value) error {
		out, err = v.ZRange(start, stop, rev)
		return err
	})
	return out, err
}

func (s *Store) ZRangeByScore(_ context.Context, key string, q kv.ScoreQuery) (out []string, err error) {
	err = s.read(key, func(v *kvstate.Value) error {
		out, err = v.ZRangeByScore(q)
		return err
	})
	return out, err
}

func (s *Store) ZCount(_ context.Context, key string, min, max kv.Bound) (n int64, err error) {
	err = s.read(key, func(v *kvstate.Value) error {
		n, err = v.ZCount(min, max)
		return err
	})
	return n, err
}

func (s *Store) ZRank(_ context.Context, key, member string, rev bool) (rank int64, ok bool, err error) {
	err = s.read(key, func(v *kvstate.Value) error {
		rank, ok, err = v.ZRank(member, rev)
		return err
	})
	return rank, ok, err
}

func (s *Store) ZScore(_ context.Context, key, member string) (score float64, ok bool, err error) {
	err = s.read(key, func(v *kvstate.Value) error {
		score, ok, err = v.ZScore(member)
		return err
	})
	return score, ok, err
}

func (s *Store) LRange(_ context.Context, key string, start, stop int64) (out []string, err error) {
	err = s.read(key, func(v *kvstate.Value) error {
		out, err = v.LRange(start, stop)
		return err
	})
	return out, err
}

// Incr increments the counter at key.
func (s *Store) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, kv.ErrClosed
	}
	v, n, err := kvstate.Incr(s.data[key])
	if err != nil {
		return 0, err
	}
	s.data[key] = v
	return n, nil
}

// Batch returns a batch applied atomically against this store.
func (s *Store) Batch() *kv.Batch {
	return kv.NewBatch(s.exec)
}

func (s *Store) exec(_ context.Context, ops []kv.Op) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, kv.ErrClosed
	}

	o := kvstate.NewOverlay(func(key string) (*kvstate.Value, error) {
		return s.data[key], nil
	})
	res, err := o.ApplyAll(ops)
	if err != nil {
		return nil, err
	}
	o.Changes(func(key string, v *kvstate.Value) error {
		if v == nil {
			delete(s.data, key)
		} else {
			s.data[key] = v
		}
		return nil
	})
	return res, nil
}

// Keys returns every key currently stored in sorted order, for tests and
// debugging.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close marks the store closed. Further operations fail with kv.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
