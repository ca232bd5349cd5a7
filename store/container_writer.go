package store

import (
	"context"
	"fmt"

	"github.com/jacentio/lattice/internal/keys"
	"github.com/jacentio/lattice/kv"
)

// ContainerWriter appends to and removes from containers of one kind and
// element type, maintaining an optional companion index that maps element
// values to the ids of the records holding them.
type ContainerWriter struct {
	s      *Store
	kind   Kind
	target *Type
	field  *Field

	// indexKey is a unique map when unique is set, otherwise the prefix of
	// per-value membership sets.
	indexKey string
	unique   bool
}

// WriterOption configures a ContainerWriter.
type WriterOption func(*ContainerWriter)

// WithIndex maintains an index of element values at key. A unique index
// maps each value to a single owner id; otherwise "{key}:{value}" holds
// the set of owner ids.
func WithIndex(key string, unique bool) WriterOption {
	return func(w *ContainerWriter) {
		w.indexKey = key
		w.unique = unique
	}
}

// NewListWriter returns a writer for lists of target values.
func NewListWriter(s *Store, target *Type, opts ...WriterOption) *ContainerWriter {
	return newContainerWriter(s, KindList, target, opts)
}

// NewSetWriter returns a writer for sets of target values.
func NewSetWriter(s *Store, target *Type, opts ...WriterOption) *ContainerWriter {
	return newContainerWriter(s, KindSet, target, opts)
}

// NewSortedSetWriter returns a writer for sorted sets of target values.
func NewSortedSetWriter(s *Store, target *Type, opts ...WriterOption) *ContainerWriter {
	return newContainerWriter(s, KindSortedSet, target, opts)
}

func newContainerWriter(s *Store, kind Kind, target *Type, opts []WriterOption) *ContainerWriter {
	w := &ContainerWriter{s: s, kind: kind, target: target}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FieldWriter returns the writer for a declared collection field, indexed
// when the field is. Owned fields are written through an OwnedWriter, so
// FieldWriter panics for them.
func (s *Store) FieldWriter(f *Field) *ContainerWriter {
	if !f.IsCollection() {
		panic(fmt.Sprintf("store: %s is not a collection", f))
	}
	if f.Owned() {
		panic(fmt.Sprintf("store: %s is owned; use NewOwnedWriter", f))
	}
	return s.fieldWriter(f)
}

func (s *Store) fieldWriter(f *Field) *ContainerWriter {
	w := &ContainerWriter{s: s, kind: f.kind, target: f.target, field: f}
	if f.Indexed() {
		w.unique = f.Unique()
		if w.unique {
			w.indexKey = keys.Unique(f.decl.name, f.name)
		} else {
			w.indexKey = keys.MemberPrefix(f.decl.name, f.name)
		}
	}
	return w
}

// Append adds v to a list or set.
func (w *ContainerWriter) Append(ctx context.Context, c Container, v any) error {
	if w.kind == KindSortedSet {
		return invalid("sorted set append needs a score; use AppendScored")
	}
	return w.add(ctx, c, v, 0)
}

// AppendScored adds v to a sorted set with the given score.
func (w *ContainerWriter) AppendScored(ctx context.Context, c Container, v any, score float64) error {
	if w.kind != KindSortedSet {
		return invalid("%s containers take no score; use Append", w.kind)
	}
	return w.add(ctx, c, v, score)
}

// check validates c against the writer configuration.
func (w *ContainerWriter) check(c Container) error {
	if c == nil {
		return invalid("nil container")
	}
	base := c.base()
	switch {
	case !base.Valid():
		return invalid("container handle is not attached to a record")
	case c.Kind() != w.kind:
		return invalid("%s writer used on %s %s", w.kind, c.Kind(), base.key)
	case base.target != w.target:
		return invalid("%s writer used on %s of %s", w.target, base.key, base.target)
	case w.field != nil && base.field != nil && base.field != w.field:
		return invalid("%s writer used on %s", w.field, base.field)
	case w.indexKey != "" && base.ownerID == "":
		return invalid("indexed container %s has no owner id", base.key)
	}
	return nil
}

func (w *ContainerWriter) add(ctx context.Context, c Container, v any, score float64) error {
	if err := w.check(c); err != nil {
		return err
	}
	m, err := encodeElem(w.target, v)
	if err != nil {
		return err
	}
	key, owner := c.Key(), c.OwnerID()

	if w.unique {
		// TODO(optimistic-lock): the check and the batch below are not atomic.
		taken, err := w.s.client.HExists(ctx, w.indexKey, m)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s already holds %q", ErrUniqueViolation, w.indexKey, m)
		}
	}

	b := w.s.client.Batch()
	switch w.kind {
	case KindList:
		b.RPush(key, m)
	case KindSet:
		b.SAdd(key, m)
	case KindSortedSet:
		b.ZAdd(key, m, score)
	}
	switch {
	case w.indexKey == "":
	case w.unique:
		b.HSet(w.indexKey, map[string]string{m: owner})
	default:
		b.SAdd(w.indexKey+keys.Sep+m, owner)
	}
	_, err = b.Exec(ctx)
	return err
}

// Remove takes v out of the container and its index. It reports whether v
// was a member.
func (w *ContainerWriter) Remove(ctx context.Context, c Container, v any) (bool, error) {
	if err := w.check(c); err != nil {
		return false, err
	}
	m, err := encodeElem(w.target, v)
	if err != nil {
		return false, err
	}

	b := w.s.client.Batch()
	if err := w.remove(ctx, b, c, m); err != nil {
		return false, err
	}
	res, err := b.Exec(ctx)
	if err != nil {
		return false, err
	}
	return res[0] > 0, nil
}

// remove queues the removal of m, container op first.
func (w *ContainerWriter) remove(ctx context.Context, b *kv.Batch, c Container, m string) error {
	key, owner := c.Key(), c.OwnerID()
	switch w.kind {
	case KindList:
		b.LRem(key, m)
	case KindSet:
		b.SRem(key, m)
	case KindSortedSet:
		b.ZRem(key, m)
	}

	switch {
	case w.indexKey == "":
	case w.unique:
		// Leave entries of other owners alone.
		holder, ok, err := w.s.client.HGet(ctx, w.indexKey, m)
		if err != nil {
			return err
		}
		if ok && holder == owner {
			b.HDel(w.indexKey, m)
		}
	default:
		b.SRem(w.indexKey+keys.Sep+m, owner)
	}
	return nil
}

// Clear removes every element and its index entries, then the container key.
// Each element goes in its own batch, so the size of a container is not
// bounded by the backend's batch limit.
func (w *ContainerWriter) Clear(ctx context.Context, c Container) error {
	if err := w.check(c); err != nil {
		return err
	}
	members, err := rawElements(ctx, w.s, c)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		// LRem drops every occurrence of a list value at once.
		if seen[m] {
			continue
		}
		seen[m] = true

		b := w.s.client.Batch()
		if err := w.remove(ctx, b, c, m); err != nil {
			return err
		}
		if _, err := b.Exec(ctx); err != nil {
			return err
		}
	}
	b := w.s.client.Batch()
	b.Del(c.Key())
	_, err = b.Exec(ctx)
	return err
}
