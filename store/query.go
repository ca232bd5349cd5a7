package store

import (
	"context"
	"sort"

	"github.com/jacentio/lattice/internal/keys"
)

// FindUnique looks value up in the unique map of field, which may be an
// attribute or a unique collection. The returned handle has no id when
// nothing holds value; Load on it fails with ErrNotFound.
func (s *Store) FindUnique(ctx context.Context, t *Type, field string, value any) (Handle, error) {
	f, err := lookupField(t, field)
	if err != nil {
		return Handle{}, err
	}
	if !f.Unique() {
		return Handle{}, invalid("%s is not unique", f)
	}
	raw, err := f.encode(value)
	if err != nil {
		return Handle{}, err
	}
	id, _, err := s.client.HGet(ctx, keys.Unique(t.name, f.name), raw)
	if err != nil {
		return Handle{}, err
	}
	return Handle{typ: t, id: id}, nil
}

// FindMembers returns the records of type t whose indexed field holds value,
// ordered by id. Nothing matching is an empty result.
func (s *Store) FindMembers(ctx context.Context, t *Type, field string, value any) ([]Handle, error) {
	f, err := lookupField(t, field)
	if err != nil {
		return nil, err
	}
	if !f.Indexed() {
		return nil, invalid("%s is not indexed", f)
	}
	if f.Unique() {
		h, err := s.FindUnique(ctx, t, field, value)
		if err != nil || h.id == "" {
			return nil, err
		}
		return []Handle{h}, nil
	}
	raw, err := f.encode(value)
	if err != nil {
		return nil, err
	}
	ids, err := s.client.SMembers(ctx, keys.Member(t.name, f.name, raw))
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return idLess(ids[i], ids[j]) })
	return toHandles(t, ids), nil
}

// FindListed returns the records of type t whose listed field holds value,
// in write order.
func (s *Store) FindListed(ctx context.Context, t *Type, field string, value any) ([]Handle, error) {
	f, err := lookupField(t, field)
	if err != nil {
		return nil, err
	}
	if !f.Listed() {
		return nil, invalid("%s is not listed", f)
	}
	raw, err := f.encode(value)
	if err != nil {
		return nil, err
	}
	ids, err := s.client.LRange(ctx, keys.Listed(t.name, f.name, raw), 0, -1)
	if err != nil {
		return nil, err
	}
	return toHandles(t, ids), nil
}

// SortedIndex returns the sorted index of a scored attribute as a sorted set
// of t records, giving range, rank and count queries over the type.
func (s *Store) SortedIndex(t *Type, field string) (SortedSetHandle, error) {
	f, err := lookupField(t, field)
	if err != nil {
		return SortedSetHandle{}, err
	}
	if !f.Scored() {
		return SortedSetHandle{}, invalid("%s is not scored", f)
	}
	return SortedSetHandle{container{key: keys.Sorted(t.name, f.name), target: t}}, nil
}

func lookupField(t *Type, name string) (*Field, error) {
	if t == nil || !t.identity {
		return nil, invalid("%s is not a record type", t)
	}
	f := t.byName[name]
	if f == nil {
		return nil, invalid("%s has no field %q", t, name)
	}
	return f, nil
}

func toHandles(t *Type, ids []string) []Handle {
	out := make([]Handle, len(ids))
	for i, id := range ids {
		out[i] = Handle{typ: t, id: id}
	}
	return out
}

// idLess orders counter ids numerically.
func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
