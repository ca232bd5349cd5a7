// Package kvstate models Redis-style values in memory and applies batched
// writes to them. Backends that cannot run the primitives natively load
// values into an Overlay, apply a batch, and persist what changed.
package kvstate

import (
	"sort"

	"github.com/jacentio/lattice/kv"
)

// Kind is the type of value stored at a key.
type Kind uint8

const (
	KindNone Kind = iota
	KindCounter
	KindHash
	KindSet
	KindZSet
	KindList
)

// ListEntry is one list element. Seq orders elements and never repeats
// within a list, so backends can address elements individually.
type ListEntry struct {
	Seq uint64 `msgpack:"s"`
	Val string `msgpack:"v"`
}

// Value is the content of one key.
type Value struct {
	Kind Kind               `msgpack:"k"`
	Int  int64              `msgpack:"i,omitempty"`
	Hash map[string]string  `msgpack:"h,omitempty"`
	Set  map[string]bool    `msgpack:"s,omitempty"`
	ZSet map[string]float64 `msgpack:"z,omitempty"`
	List []ListEntry        `msgpack:"l,omitempty"`

	// NextSeq is the Seq the next pushed list element receives.
	NextSeq uint64 `msgpack:"q,omitempty"`
}

// New returns an empty value of kind k.
func New(k Kind) *Value {
	v := &Value{Kind: k}
	switch k {
	case KindHash:
		v.Hash = map[string]string{}
	case KindSet:
		v.Set = map[string]bool{}
	case KindZSet:
		v.ZSet = map[string]float64{}
	case KindList:
		v.NextSeq = 1
	}
	return v
}

// Empty reports whether v holds nothing, which means the key does not exist.
func (v *Value) Empty() bool {
	if v == nil {
		return true
	}
	switch v.Kind {
	case KindCounter:
		return false
	case KindHash:
		return len(v.Hash) == 0
	case KindSet:
		return len(v.Set) == 0
	case KindZSet:
		return len(v.ZSet) == 0
	case KindList:
		return len(v.List) == 0
	}
	return true
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	c := &Value{Kind: v.Kind, Int: v.Int, NextSeq: v.NextSeq}
	if v.Hash != nil {
		c.Hash = make(map[string]string, len(v.Hash))
		for k, s := range v.Hash {
			c.Hash[k] = s
		}
	}
	if v.Set != nil {
		c.Set = make(map[string]bool, len(v.Set))
		for k := range v.Set {
			c.Set[k] = true
		}
	}
	if v.ZSet != nil {
		c.ZSet = make(map[string]float64, len(v.ZSet))
		for k, s := range v.ZSet {
			c.ZSet[k] = s
		}
	}
	if v.List != nil {
		c.List = append([]ListEntry(nil), v.List...)
	}
	return c
}

// check fails with kv.ErrWrongType unless v is absent or of kind k.
func (v *Value) check(k Kind) error {
	if v == nil || v.Kind == KindNone || v.Kind == k {
		return nil
	}
	return kv.ErrWrongType
}

type scored struct {
	member string
	score  float64
}

// ordered returns sorted-set members by ascending score, ties broken by
// member bytes.
func (v *Value) ordered() []scored {
	if v == nil {
		return nil
	}
	out := make([]scored, 0, len(v.ZSet))
	for m, s := range v.ZSet {
		out = append(out, scored{m, s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score < out[j].score
		}
		return out[i].member < out[j].member
	})
	return out
}
