package store

import (
	"context"
	"errors"
	"fmt"
)

// Reap removes the data held on behalf of the record behind h: owned
// collection elements are purged, other collections are cleared element by
// element through their writer, every collection key is deleted, and
// extension records are purged. The record itself is left alone, so Reap
// suits records that are being or have already been deleted. Reap is
// idempotent.
func (s *Store) Reap(ctx context.Context, h Handle) error {
	if !h.Valid() {
		return fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	var rels []Relationship
	if h.typ.registry != nil {
		rels = h.typ.registry.ChildrenOf(h.typ)
	}

	for _, rel := range rels {
		if rel.Field == nil {
			if err := s.Purge(ctx, Handle{typ: rel.Child, id: h.id}); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			continue
		}

		f := rel.Field
		c := containerOf(h.typ.container(f, h.id))
		cw := s.fieldWriter(f)
		var err error
		if f.Owned() {
			err = s.clearOwned(ctx, cw, c)
		} else {
			err = cw.Clear(ctx, c)
		}
		if err != nil {
			return fmt.Errorf("reap %s: %w", c.Key(), err)
		}
	}

	s.config.Logger.Debug("record reaped", "type", h.typ.name, "id", h.id, "relationships", len(rels))
	return nil
}

// Purge reaps the record behind h and then deletes it. It fails with
// ErrNotFound when the record does not exist.
func (s *Store) Purge(ctx context.Context, h Handle) error {
	if !h.Valid() {
		return fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	st, _, err := s.loadState(ctx, h)
	if err != nil {
		return err
	}
	if err := s.Reap(ctx, h); err != nil {
		return err
	}
	return s.deleteState(ctx, &st)
}

// containerOf wraps c in the handle type matching its field.
func containerOf(c container) Container {
	switch c.field.kind {
	case KindList:
		return ListHandle{c}
	case KindSet:
		return SetHandle{c}
	default:
		return SortedSetHandle{c}
	}
}
