package store

import (
	"context"
	"fmt"

	"github.com/jacentio/lattice/internal/keys"
	"github.com/jacentio/lattice/kv"
)

// Container is a list, set or sorted set stored under its own key.
type Container interface {
	// Key returns the key of the stored collection.
	Key() string

	// Target returns the element type.
	Target() *Type

	// OwnerID returns the id of the record holding the collection.
	OwnerID() string

	Kind() Kind

	base() container
}

type container struct {
	key     string
	target  *Type
	ownerID string
	field   *Field
}

func (c container) Key() string     { return c.key }
func (c container) Target() *Type   { return c.target }
func (c container) OwnerID() string { return c.ownerID }
func (c container) base() container { return c }

// Field returns the declared collection field, or nil for standalone
// containers.
func (c container) Field() *Field { return c.field }

// Valid reports whether the handle points at a stored collection.
func (c container) Valid() bool { return c.key != "" && c.target != nil }

func (c container) String() string { return c.key }

func (c container) decode(raws []string) ([]any, error) {
	out := make([]any, len(raws))
	for i, raw := range raws {
		v, err := decodeElem(c.target, raw)
		if err != nil {
			return nil, &DataError{Key: c.key, Err: err}
		}
		out[i] = v
	}
	return out, nil
}

func (c container) handles(raws []string) ([]Handle, error) {
	if !c.target.identity {
		return nil, invalid("%s holds %s values, not records", c.key, c.target)
	}
	out := make([]Handle, len(raws))
	for i, raw := range raws {
		out[i] = Handle{typ: c.target, id: raw}
	}
	return out, nil
}

// member encodes v as it is stored in the collection.
func (c container) member(v any) (string, error) {
	if !c.Valid() {
		return "", invalid("container handle is not attached to a record")
	}
	return encodeElem(c.target, v)
}

// rawElements reads every stored element of c in collection order.
func rawElements(ctx context.Context, s *Store, c Container) ([]string, error) {
	switch c.Kind() {
	case KindList:
		return s.client.LRange(ctx, c.Key(), 0, -1)
	case KindSet:
		return s.client.SMembers(ctx, c.Key())
	case KindSortedSet:
		return s.client.ZRange(ctx, c.Key(), 0, -1, false)
	}
	return nil, invalid("unknown container kind %s", c.Kind())
}

// ListHandle is a list collection in append order.
type ListHandle struct{ container }

// NewListHandle returns a standalone list stored at key.
func NewListHandle(key string, target *Type) ListHandle {
	return ListHandle{standalone(key, target)}
}

func (ListHandle) Kind() Kind { return KindList }

// Load returns every element: a Handle for record targets, otherwise the
// decoded value.
func (l ListHandle) Load(ctx context.Context, s *Store) ([]any, error) {
	raws, err := s.client.LRange(ctx, l.key, 0, -1)
	if err != nil {
		return nil, err
	}
	return l.decode(raws)
}

// Handles returns the elements of a list of records.
func (l ListHandle) Handles(ctx context.Context, s *Store) ([]Handle, error) {
	raws, err := s.client.LRange(ctx, l.key, 0, -1)
	if err != nil {
		return nil, err
	}
	return l.handles(raws)
}

// SetHandle is an unordered collection. Members load in sorted order.
type SetHandle struct{ container }

// NewSetHandle returns a standalone set stored at key.
func NewSetHandle(key string, target *Type) SetHandle {
	return SetHandle{standalone(key, target)}
}

func (SetHandle) Kind() Kind { return KindSet }

func (h SetHandle) Load(ctx context.Context, s *Store) ([]any, error) {
	raws, err := s.client.SMembers(ctx, h.key)
	if err != nil {
		return nil, err
	}
	return h.decode(raws)
}

func (h SetHandle) Handles(ctx context.Context, s *Store) ([]Handle, error) {
	raws, err := s.client.SMembers(ctx, h.key)
	if err != nil {
		return nil, err
	}
	return h.handles(raws)
}

// Contains reports whether v is a member.
func (h SetHandle) Contains(ctx context.Context, s *Store, v any) (bool, error) {
	m, err := h.member(v)
	if err != nil {
		return false, err
	}
	return s.client.SIsMember(ctx, h.key, m)
}

// SortedSetHandle is a collection ordered by score, ascending.
type SortedSetHandle struct{ container }

// NewSortedSetHandle returns a standalone sorted set stored at key.
func NewSortedSetHandle(key string, target *Type) SortedSetHandle {
	return SortedSetHandle{standalone(key, target)}
}

func (SortedSetHandle) Kind() Kind { return KindSortedSet }

func (z SortedSetHandle) Load(ctx context.Context, s *Store) ([]any, error) {
	return z.Range(ctx, s, 0, -1)
}

func (z SortedSetHandle) Handles(ctx context.Context, s *Store) ([]Handle, error) {
	raws, err := s.client.ZRange(ctx, z.key, 0, -1, false)
	if err != nil {
		return nil, err
	}
	return z.handles(raws)
}

// Range returns elements by rank, start and stop inclusive. Negative ranks
// count from the highest score.
func (z SortedSetHandle) Range(ctx context.Context, s *Store, start, stop int64) ([]any, error) {
	raws, err := s.client.ZRange(ctx, z.key, start, stop, false)
	if err != nil {
		return nil, err
	}
	return z.decode(raws)
}

// RevRange is Range with ranks counted from the highest score.
func (z SortedSetHandle) RevRange(ctx context.Context, s *Store, start, stop int64) ([]any, error) {
	raws, err := s.client.ZRange(ctx, z.key, start, stop, true)
	if err != nil {
		return nil, err
	}
	return z.decode(raws)
}

// RangeByScore returns elements scored between min and max, lowest first.
func (z SortedSetHandle) RangeByScore(ctx context.Context, s *Store, min, max kv.Bound) ([]any, error) {
	return z.Query(ctx, s, kv.ScoreQuery{Min: min, Max: max})
}

// RevRangeByScore returns elements scored between min and max, highest
// first.
func (z SortedSetHandle) RevRangeByScore(ctx context.Context, s *Store, min, max kv.Bound) ([]any, error) {
	return z.Query(ctx, s, kv.ScoreQuery{Min: min, Max: max, Reverse: true})
}

// Query runs a score range query with paging.
func (z SortedSetHandle) Query(ctx context.Context, s *Store, q kv.ScoreQuery) ([]any, error) {
	raws, err := s.client.ZRangeByScore(ctx, z.key, q)
	if err != nil {
		return nil, err
	}
	return z.decode(raws)
}

// Find returns the elements whose score satisfies cond.
func (z SortedSetHandle) Find(ctx context.Context, s *Store, cond Cond) ([]any, error) {
	return z.Query(ctx, s, cond.Query())
}

// Count counts elements scored between min and max.
func (z SortedSetHandle) Count(ctx context.Context, s *Store, min, max kv.Bound) (int64, error) {
	return s.client.ZCount(ctx, z.key, min, max)
}

// Rank returns the 0-based rank of v by ascending score.
func (z SortedSetHandle) Rank(ctx context.Context, s *Store, v any) (int64, bool, error) {
	return z.rank(ctx, s, v, false)
}

// RevRank returns the 0-based rank of v by descending score.
func (z SortedSetHandle) RevRank(ctx context.Context, s *Store, v any) (int64, bool, error) {
	return z.rank(ctx, s, v, true)
}

func (z SortedSetHandle) rank(ctx context.Context, s *Store, v any, rev bool) (int64, bool, error) {
	m, err := z.member(v)
	if err != nil {
		return 0, false, err
	}
	return s.client.ZRank(ctx, z.key, m, rev)
}

// Score returns the score of v and whether it is a member.
func (z SortedSetHandle) Score(ctx context.Context, s *Store, v any) (float64, bool, error) {
	m, err := z.member(v)
	if err != nil {
		return 0, false, err
	}
	return s.client.ZScore(ctx, z.key, m)
}

func (z SortedSetHandle) Contains(ctx context.Context, s *Store, v any) (bool, error) {
	_, ok, err := z.Score(ctx, s, v)
	return ok, err
}

func standalone(key string, target *Type) container {
	return container{key: key, target: target, ownerID: keys.OwnerID(key)}
}

// Cond is a score condition on a sorted set.
type Cond struct {
	Min kv.Bound
	Max kv.Bound
}

func Lt(v float64) Cond  { return Cond{Min: kv.NegInf, Max: kv.Exclusive(v)} }
func Lte(v float64) Cond { return Cond{Min: kv.NegInf, Max: kv.Inclusive(v)} }
func Gt(v float64) Cond  { return Cond{Min: kv.Exclusive(v), Max: kv.PosInf} }
func Gte(v float64) Cond { return Cond{Min: kv.Inclusive(v), Max: kv.PosInf} }
func Eq(v float64) Cond  { return Cond{Min: kv.Inclusive(v), Max: kv.Inclusive(v)} }

// In matches scores between lo and hi inclusive.
func In(lo, hi float64) Cond { return Cond{Min: kv.Inclusive(lo), Max: kv.Inclusive(hi)} }

// ParseCond builds a condition from an operator name (lt, lte, gt, gte, eq
// or in) and its operands. Operands may be numbers, booleans, times,
// handles or numeric strings.
func ParseCond(op string, args ...any) (Cond, error) {
	want := 1
	if op == "in" {
		want = 2
	}
	if len(args) != want {
		return Cond{}, invalid("%s takes %d operand(s), got %d", op, want, len(args))
	}
	scores := make([]float64, len(args))
	for i, a := range args {
		v, err := toScore(a)
		if err != nil {
			return Cond{}, err
		}
		scores[i] = v
	}
	switch op {
	case "lt":
		return Lt(scores[0]), nil
	case "lte":
		return Lte(scores[0]), nil
	case "gt":
		return Gt(scores[0]), nil
	case "gte":
		return Gte(scores[0]), nil
	case "eq":
		return Eq(scores[0]), nil
	case "in":
		return In(scores[0], scores[1]), nil
	}
	return Cond{}, invalid("unknown operator %q", op)
}

// Query returns the unpaged score query matching c.
func (c Cond) Query() kv.ScoreQuery {
	return kv.ScoreQuery{Min: c.Min, Max: c.Max}
}

func (c Cond) String() string {
	return fmt.Sprintf("[%s %s]", c.Min, c.Max)
}
