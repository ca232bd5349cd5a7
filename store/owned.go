package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/lattice/kv"
)

// OwnedWriter writes an owned collection field. Appending creates the
// element record and removing deletes it, so membership and existence of
// owned elements move together.
//
// Append is two writes: the element is created, then added to the
// container. If the second write fails the element stays persisted but
// unattached and the error is returned; the caller may delete it.
type OwnedWriter[E any] struct {
	s     *Store
	field *Field
	elems *Writer[E]
	cw    *ContainerWriter
}

// NewOwnedWriter returns the writer of owned field f, whose elements have
// row type E. It panics if f is not owned or E does not match.
func NewOwnedWriter[E any](s *Store, f *Field) *OwnedWriter[E] {
	if !f.Owned() {
		panic(fmt.Sprintf("store: %s is not an owned collection", f))
	}
	return &OwnedWriter[E]{
		s:     s,
		field: f,
		elems: NewWriter[E](s, f.target),
		cw:    s.fieldWriter(f),
	}
}

// Elements returns the writer used for element records.
func (w *OwnedWriter[E]) Elements() *Writer[E] { return w.elems }

// Append creates e and adds it to c. On a sorted set with a sort key the
// element is scored by that attribute.
func (w *OwnedWriter[E]) Append(ctx context.Context, c Container, e *Record[E]) error {
	if w.field.kind == KindSortedSet && w.field.sortKey == nil {
		return invalid("%s has no sort key; use AppendScored", w.field)
	}
	if err := w.prepare(c, e); err != nil {
		return err
	}
	var score float64
	if w.field.sortKey != nil {
		var err error
		if score, err = w.score(e); err != nil {
			return err
		}
	}
	return w.append(ctx, c, e, score)
}

// AppendScored creates e and adds it to a sorted set without a sort key.
func (w *OwnedWriter[E]) AppendScored(ctx context.Context, c Container, e *Record[E], score float64) error {
	if w.field.kind != KindSortedSet {
		return invalid("%s containers take no score; use Append", w.field.kind)
	}
	if w.field.sortKey != nil {
		return invalid("%s is scored by %s", w.field, w.field.sortKey)
	}
	if err := w.prepare(c, e); err != nil {
		return err
	}
	return w.append(ctx, c, e, score)
}

func (w *OwnedWriter[E]) prepare(c Container, e *Record[E]) error {
	if err := w.cw.check(c); err != nil {
		return err
	}
	if e == nil {
		return invalid("%s: nil element", w.field)
	}
	if e.id != "" {
		return invalid("%s: element %s is already persisted", w.field, e.Handle())
	}
	return nil
}

func (w *OwnedWriter[E]) append(ctx context.Context, c Container, e *Record[E], score float64) error {
	if err := w.elems.Create(ctx, e); err != nil {
		return err
	}
	if err := w.cw.add(ctx, c, e.Handle(), score); err != nil {
		w.s.config.Logger.Warn("owned element created but not attached",
			"field", w.field.String(),
			"container", c.Key(),
			"element", e.Key(),
			"error", err,
		)
		return err
	}
	return nil
}

// score reads the sort key attribute of e.
func (w *OwnedWriter[E]) score(e *Record[E]) (float64, error) {
	key := w.field.sortKey
	raw, err := key.encode(key.value(&e.Row))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parseScore(raw)
}

// Remove takes e out of c and deletes it. It fails with ErrNotFound, leaving
// e untouched, when e is not a member of c.
func (w *OwnedWriter[E]) Remove(ctx context.Context, c Container, e *Record[E]) error {
	if e == nil || e.id == "" {
		return fmt.Errorf("%w: element is not persisted", ErrNotFound)
	}
	removed, err := w.cw.Remove(ctx, c, e.Handle())
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s is not in %s", ErrNotFound, e.Handle(), c.Key())
	}
	return w.elems.Delete(ctx, e)
}

// Update writes the named attributes of element e of c. On a sorted set with
// a sort key the element is re-scored in the same batch.
func (w *OwnedWriter[E]) Update(ctx context.Context, c Container, e *Record[E], fields ...string) error {
	if err := w.elems.bind(e); err != nil {
		return err
	}
	extra, err := w.rescore(ctx, c, e)
	if err != nil {
		return err
	}
	return w.s.update(ctx, w.elems.t, &e.state, &e.Row, fields, extra)
}

// UpdateAll is Update over every attribute of e.
func (w *OwnedWriter[E]) UpdateAll(ctx context.Context, c Container, e *Record[E]) error {
	return w.Update(ctx, c, e, w.elems.t.attrNames()...)
}

func (w *OwnedWriter[E]) rescore(ctx context.Context, c Container, e *Record[E]) (func(*kv.Batch) error, error) {
	if w.field.sortKey == nil {
		return nil, nil
	}
	if err := w.cw.check(c); err != nil {
		return nil, err
	}
	if e.id == "" {
		return nil, invalid("%s record has no id", e.typ)
	}
	if _, ok, err := w.s.client.ZScore(ctx, c.Key(), e.id); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %s is not in %s", ErrNotFound, e.Handle(), c.Key())
	}
	return func(b *kv.Batch) error {
		score, err := w.score(e)
		if err != nil {
			return err
		}
		b.ZAdd(c.Key(), e.id, score)
		return nil
	}, nil
}

// Clear removes and deletes every element of c, then deletes the container.
// Elements are purged, so their own owned data goes with them.
func (w *OwnedWriter[E]) Clear(ctx context.Context, c Container) error {
	if err := w.cw.check(c); err != nil {
		return err
	}
	return w.s.clearOwned(ctx, w.cw, c)
}

// clearOwned removes and purges every element of an owned container.
func (s *Store) clearOwned(ctx context.Context, cw *ContainerWriter, c Container) error {
	ids, err := rawElements(ctx, s, c)
	if err != nil {
		return err
	}
	for _, id := range ids {
		h := Handle{typ: cw.target, id: id}
		if _, err := cw.Remove(ctx, c, h); err != nil {
			return err
		}
		if err := s.Purge(ctx, h); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	b := s.client.Batch()
	b.Del(c.Key())
	_, err = b.Exec(ctx)
	return err
}
