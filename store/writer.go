package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jacentio/lattice/internal/keys"
	"github.com/jacentio/lattice/kv"
)

// Writer creates, updates and deletes records of one type, keeping the
// type's indexes in step with every write.
type Writer[Row any] struct {
	s *Store
	t *Type
}

// NewWriter returns a Writer for records of type t. It panics if Row is not
// the row type t was defined with.
func NewWriter[Row any](s *Store, t *Type) *Writer[Row] {
	if !t.identity || !t.isRow(new(Row)) {
		panic(fmt.Sprintf("store: %T is not the row type of %s", *new(Row), t))
	}
	return &Writer[Row]{s: s, t: t}
}

// Type returns the record type written by w.
func (w *Writer[Row]) Type() *Type { return w.t }

// Create persists a new record and assigns its id.
func (w *Writer[Row]) Create(ctx context.Context, r *Record[Row]) error {
	if err := w.bind(r); err != nil {
		return err
	}
	return w.s.create(ctx, w.t, &r.state, &r.Row, nil)
}

// CreateFor persists a new extension record under the id of owner.
func (w *Writer[Row]) CreateFor(ctx context.Context, r *Record[Row], owner Referrer) error {
	if err := w.bind(r); err != nil {
		return err
	}
	if owner == nil {
		return invalid("%s: nil owner", w.t)
	}
	return w.s.create(ctx, w.t, &r.state, &r.Row, owner)
}

// Update writes the named attributes of a persisted record.
func (w *Writer[Row]) Update(ctx context.Context, r *Record[Row], fields ...string) error {
	if err := w.bind(r); err != nil {
		return err
	}
	return w.s.update(ctx, w.t, &r.state, &r.Row, fields, nil)
}

// UpdateAll writes every attribute of a persisted record.
func (w *Writer[Row]) UpdateAll(ctx context.Context, r *Record[Row]) error {
	if err := w.bind(r); err != nil {
		return err
	}
	return w.s.update(ctx, w.t, &r.state, &r.Row, w.t.attrNames(), nil)
}

// Delete removes a record and its index entries. Collections and extension
// records are left in place; see Store.Purge.
func (w *Writer[Row]) Delete(ctx context.Context, r *Record[Row]) error {
	if err := w.bind(r); err != nil {
		return err
	}
	return w.s.deleteState(ctx, &r.state)
}

// bind checks that r belongs to w's type.
func (w *Writer[Row]) bind(r *Record[Row]) error {
	if r == nil {
		return invalid("%s: nil record", w.t)
	}
	if r.typ == nil {
		r.typ = w.t
	}
	if r.typ != w.t {
		return invalid("%s record passed to %s writer", r.typ, w.t)
	}
	return nil
}

func (t *Type) attrNames() []string {
	names := make([]string, len(t.attrs))
	for i, f := range t.attrs {
		names[i] = f.name
	}
	return names
}

func (s *Store) create(ctx context.Context, t *Type, st *state, row any, owner Referrer) error {
	if st.id != "" {
		return invalid("%s already has id %s", t, st.id)
	}

	// 1. Validate the owner of extension records
	var ownerID string
	switch {
	case t.owner != nil && owner == nil:
		return invalid("%s records need a %s owner", t, t.owner)
	case t.owner == nil && owner != nil:
		return invalid("%s records have no owner", t)
	case owner != nil:
		oh := owner.Handle()
		if oh.typ != t.owner {
			return invalid("%s owner must be a %s, got %s", t, t.owner, oh.typ)
		}
		if oh.id == "" {
			return invalid("%s owner has no id", t)
		}
		ownerID = oh.id
	}

	fields, err := t.encode(row)
	if err != nil {
		return err
	}

	// 2. Check unique constraints before anything is written
	// TODO(optimistic-lock): the check and the batch below are not atomic.
	for _, f := range t.attrs {
		if !f.Unique() || !f.indexable(fields[f.name]) {
			continue
		}
		if _, taken, err := s.client.HGet(ctx, keys.Unique(t.name, f.name), fields[f.name]); err != nil {
			return err
		} else if taken {
			return fmt.Errorf("%w: %s=%q", ErrUniqueViolation, f, fields[f.name])
		}
	}

	// 3. Assign the id
	id := ownerID
	if id != "" {
		if len(t.attrs) > 0 {
			exists, err := s.client.Exists(ctx, keys.Record(t.name, id))
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s", ErrAlreadyExists, keys.Record(t.name, id))
			}
		}
	} else {
		n, err := s.client.Incr(ctx, keys.Counter(t.name))
		if err != nil {
			return err
		}
		id = strconv.FormatInt(n, 10)
	}

	// 4. Write the hash and every index entry in one batch
	b := s.client.Batch()
	b.HSet(keys.Record(t.name, id), fields)
	for _, f := range t.attrs {
		if !f.tracked() || !f.indexable(fields[f.name]) {
			continue
		}
		if err := indexAdd(b, f, id, fields[f.name]); err != nil {
			return err
		}
	}
	if _, err := b.Exec(ctx); err != nil {
		return err
	}

	st.id = id
	st.snapshot = t.snapshot(fields)
	t.attachAll(row, id)
	s.logWrite("record created", t, id, b, fields)
	return nil
}

// update writes the named attributes. extra, when set, appends ops to the
// same batch.
func (s *Store) update(ctx context.Context, t *Type, st *state, row any, names []string, extra func(*kv.Batch) error) error {
	if st.id == "" {
		return invalid("%s record has no id", t)
	}
	if len(names) == 0 {
		return invalid("%s: no fields to update", t)
	}

	var changed []*Field
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		f := t.byName[name]
		if f == nil || f.IsCollection() {
			return invalid("%s has no attribute %q", t, name)
		}
		if !seen[name] {
			seen[name] = true
			changed = append(changed, f)
		}
	}

	fields := make(map[string]string, len(changed))
	for _, f := range changed {
		raw, err := f.encode(f.value(row))
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		fields[f.name] = raw
	}

	// TODO(optimistic-lock): the check and the batch below are not atomic.
	for _, f := range changed {
		raw := fields[f.name]
		if !f.Unique() || !f.indexable(raw) {
			continue
		}
		if old, ok := st.snapshot[f.name]; ok && old == raw {
			continue
		}
		holder, taken, err := s.client.HGet(ctx, keys.Unique(t.name, f.name), raw)
		if err != nil {
			return err
		}
		if taken && holder != st.id {
			return fmt.Errorf("%w: %s=%q", ErrUniqueViolation, f, raw)
		}
	}

	b := s.client.Batch()
	b.HSet(keys.Record(t.name, st.id), fields)
	for _, f := range changed {
		if !f.tracked() {
			continue
		}
		if err := reindex(b, f, st, fields[f.name]); err != nil {
			return err
		}
	}
	if extra != nil {
		if err := extra(b); err != nil {
			return err
		}
	}
	if _, err := b.Exec(ctx); err != nil {
		return err
	}

	if st.snapshot == nil {
		st.snapshot = make(map[string]string)
	}
	for _, f := range changed {
		raw := fields[f.name]
		switch {
		case !f.tracked():
		case f.indexable(raw):
			st.snapshot[f.name] = raw
		default:
			delete(st.snapshot, f.name)
		}
	}
	s.logWrite("record updated", t, st.id, b, fields)
	return nil
}

// reindex moves the index entries of f from its snapshot value to raw.
// Sorted indexes are re-scored in place and list indexes only move when
// the value changed.
func reindex(b *kv.Batch, f *Field, st *state, raw string) error {
	t := f.decl
	old, had := st.snapshot[f.name]
	add := f.indexable(raw)

	if f.Indexed() {
		if had {
			if f.Unique() {
				b.HDel(keys.Unique(t.name, f.name), old)
			} else {
				b.SRem(keys.Member(t.name, f.name, old), st.id)
			}
		}
		if add {
			if f.Unique() {
				b.HSet(keys.Unique(t.name, f.name), map[string]string{raw: st.id})
			} else {
				b.SAdd(keys.Member(t.name, f.name, raw), st.id)
			}
		}
	}

	if f.Scored() {
		if add {
			score, err := parseScore(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			b.ZAdd(keys.Sorted(t.name, f.name), st.id, score)
		} else if had {
			b.ZRem(keys.Sorted(t.name, f.name), st.id)
		}
	}

	if f.Listed() && (!had || old != raw) {
		if had {
			b.LRem(keys.Listed(t.name, f.name, old), st.id)
		}
		if add {
			b.RPush(keys.Listed(t.name, f.name, raw), st.id)
		}
	}
	return nil
}

func indexAdd(b *kv.Batch, f *Field, id, raw string) error {
	t := f.decl
	switch {
	case f.Unique():
		b.HSet(keys.Unique(t.name, f.name), map[string]string{raw: id})
	case f.Indexed():
		b.SAdd(keys.Member(t.name, f.name, raw), id)
	}
	if f.Scored() {
		score, err := parseScore(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		b.ZAdd(keys.Sorted(t.name, f.name), id, score)
	}
	if f.Listed() {
		b.RPush(keys.Listed(t.name, f.name, raw), id)
	}
	return nil
}

func indexRemove(b *kv.Batch, f *Field, id, raw string) {
	t := f.decl
	switch {
	case f.Unique():
		b.HDel(keys.Unique(t.name, f.name), raw)
	case f.Indexed():
		b.SRem(keys.Member(t.name, f.name, raw), id)
	}
	if f.Scored() {
		b.ZRem(keys.Sorted(t.name, f.name), id)
	}
	if f.Listed() {
		b.LRem(keys.Listed(t.name, f.name, raw), id)
	}
}

// deleteState removes the record hash and every entry of its snapshot.
func (s *Store) deleteState(ctx context.Context, st *state) error {
	t := st.typ
	if st.id == "" {
		return fmt.Errorf("%w: %s record has no id", ErrNotFound, t)
	}
	key := keys.Record(t.name, st.id)
	if len(t.attrs) > 0 {
		exists, err := s.client.Exists(ctx, key)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
	}

	b := s.client.Batch()
	for _, f := range t.attrs {
		if raw, ok := st.snapshot[f.name]; ok && f.tracked() {
			indexRemove(b, f, st.id, raw)
		}
	}
	b.Del(key)
	if _, err := b.Exec(ctx); err != nil {
		return err
	}

	s.logWrite("record deleted", t, st.id, b, nil)
	st.id = ""
	st.snapshot = nil
	return nil
}

func (s *Store) logWrite(msg string, t *Type, id string, b *kv.Batch, fields map[string]string) {
	args := []any{"type", t.name, "id", id, "ops", b.Len()}
	if s.config.LogValues && fields != nil {
		args = append(args, "values", fields)
	}
	s.config.Logger.Debug(msg, args...)
}
