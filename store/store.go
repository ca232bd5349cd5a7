package store

import (
	"context"
	"fmt"

	"github.com/jacentio/lattice/kv"
)

// Store maps typed records, indexes and collections onto a kv.Store.
type Store struct {
	client kv.Store
	config Config
}

// New creates a new Store instance.
func New(client kv.Store, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// Client returns the backing key-value store.
func (s *Store) Client() kv.Store {
	return s.client
}

// Exists reports whether the record hash behind r is present.
func (s *Store) Exists(ctx context.Context, r Referrer) (bool, error) {
	h := r.Handle()
	if !h.Valid() {
		return false, nil
	}
	return s.client.Exists(ctx, h.Key())
}

// Load reads the record behind h. It fails with ErrNotFound when h has no id
// or the record does not exist.
func Load[Row any](ctx context.Context, s *Store, h Handle) (*Record[Row], error) {
	if !h.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	rec := &Record[Row]{}
	if !h.typ.identity || !h.typ.isRow(&rec.Row) {
		return nil, invalid("%T is not the row type of %s", rec.Row, h.typ)
	}

	st, hash, err := s.loadState(ctx, h)
	if err != nil {
		return nil, err
	}
	if err := h.typ.decode(&rec.Row, hash, h.Key()); err != nil {
		return nil, err
	}
	rec.state = st
	h.typ.attachAll(&rec.Row, h.id)
	return rec, nil
}

// loadState reads the hash behind h and the index snapshot it implies.
// Types without attributes never store a hash and load unconditionally.
func (s *Store) loadState(ctx context.Context, h Handle) (state, map[string]string, error) {
	hash, err := s.client.HGetAll(ctx, h.Key())
	if err != nil {
		return state{}, nil, err
	}
	if len(hash) == 0 && len(h.typ.attrs) > 0 {
		return state{}, nil, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	return state{typ: h.typ, id: h.id, snapshot: h.typ.snapshot(hash)}, hash, nil
}
