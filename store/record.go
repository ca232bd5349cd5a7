package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jacentio/lattice/internal/keys"
)

// state is the identity and index snapshot of a record.
type state struct {
	typ *Type
	id  string

	// snapshot holds the last persisted raw value of every tracked attribute.
	snapshot map[string]string
}

func (s *state) ID() string     { return s.id }
func (s *state) Type() *Type    { return s.typ }
func (s *state) Handle() Handle { return Handle{typ: s.typ, id: s.id} }

// Key returns the key of the record hash, or "" before the record is created.
func (s *state) Key() string {
	if s.id == "" {
		return ""
	}
	return keys.Record(s.typ.name, s.id)
}

// Persisted reports whether the record has an id.
func (s *state) Persisted() bool { return s.id != "" }

// Snapshot returns the last persisted raw value of an indexed, scored or
// listed attribute.
func (s *state) Snapshot(field string) (string, bool) {
	raw, ok := s.snapshot[field]
	return raw, ok
}

// Record is a typed row together with its identity.
type Record[Row any] struct {
	Row Row
	state
}

// NewRecord returns an unsaved record of type t. It panics if Row is not the
// row type t was defined with.
func NewRecord[Row any](t *Type, row Row) *Record[Row] {
	r := &Record[Row]{Row: row, state: state{typ: t}}
	if !t.identity || !t.isRow(&r.Row) {
		panic(fmt.Sprintf("store: %T is not the row type of %s", row, t))
	}
	return r
}

// Values returns the raw stored form of every attribute.
func (r *Record[Row]) Values() (map[string]string, error) {
	if r.typ == nil {
		return nil, invalid("record has no type; build it with NewRecord")
	}
	return r.typ.encode(&r.Row)
}

func (r *Record[Row]) String() string {
	vals, err := r.Values()
	if err != nil {
		return fmt.Sprintf("%s{%v}", r.Handle(), err)
	}
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + vals[name]
	}
	return fmt.Sprintf("%s{%s}", r.Handle(), strings.Join(parts, " "))
}
