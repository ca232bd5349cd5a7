package kvstate

import (
	"fmt"
	"sort"

	"github.com/jacentio/lattice/kv"
)

// Loader fetches the committed value at key, or nil if the key is absent.
type Loader func(key string) (*Value, error)

// Overlay stages writes on top of committed values. Values are loaded once
// per key, cloned, and mutated in place; nothing reaches the backend until
// the caller persists Changes.
type Overlay struct {
	load  Loader
	vals  map[string]*Value
	dirty map[string]bool

	// SeqBase is the first list Seq handed out for lists created by the
	// overlay. Defaults to 1.
	SeqBase uint64
}

// NewOverlay returns an overlay reading through load.
func NewOverlay(load Loader) *Overlay {
	return &Overlay{
		load:    load,
		vals:    map[string]*Value{},
		dirty:   map[string]bool{},
		SeqBase: 1,
	}
}

// Get returns the staged value at key, loading it on first access.
// The returned value must not be modified.
func (o *Overlay) Get(key string) (*Value, error) {
	if v, ok := o.vals[key]; ok {
		return v, nil
	}
	v, err := o.load(key)
	if err != nil {
		return nil, err
	}
	v = v.Clone()
	o.vals[key] = v
	return v, nil
}

// ApplyAll applies ops in order and returns their replies. On error the
// overlay must be discarded.
func (o *Overlay) ApplyAll(ops []kv.Op) ([]int64, error) {
	res := make([]int64, len(ops))
	for i, op := range ops {
		n, err := o.Apply(op)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res[i] = n
	}
	return res, nil
}

// Apply applies a single op and returns its reply.
func (o *Overlay) Apply(op kv.Op) (int64, error) {
	v, err := o.Get(op.Key)
	if err != nil {
		return 0, err
	}

	var n int64
	switch op.Code {
	case kv.OpDel:
		if !v.Empty() {
			n = 1
		}
		o.set(op.Key, nil)
		return n, nil

	case kv.OpHSet:
		if v, err = o.prepare(op.Key, v, KindHash); err != nil {
			return 0, err
		}
		for f, s := range op.Fields {
			if _, ok := v.Hash[f]; !ok {
				n++
			}
			v.Hash[f] = s
		}

	case kv.OpHDel:
		if err := v.check(KindHash); err != nil {
			return 0, err
		}
		if v != nil {
			if _, ok := v.Hash[op.Field]; ok {
				delete(v.Hash, op.Field)
				n = 1
			}
		}

	case kv.OpSAdd:
		if v, err = o.prepare(op.Key, v, KindSet); err != nil {
			return 0, err
		}
		if !v.Set[op.Value] {
			v.Set[op.Value] = true
			n = 1
		}

	case kv.OpSRem:
		if err := v.check(KindSet); err != nil {
			return 0, err
		}
		if v != nil && v.Set[op.Value] {
			delete(v.Set, op.Value)
			n = 1
		}

	case kv.OpZAdd:
		if v, err = o.prepare(op.Key, v, KindZSet); err != nil {
			return 0, err
		}
		if _, ok := v.ZSet[op.Value]; !ok {
			n = 1
		}
		v.ZSet[op.Value] = op.Score

	case kv.OpZRem:
		if err := v.check(KindZSet); err != nil {
			return 0, err
		}
		if v != nil {
			if _, ok := v.ZSet[op.Value]; ok {
				delete(v.ZSet, op.Value)
				n = 1
			}
		}

	case kv.OpRPush:
		if v, err = o.prepare(op.Key, v, KindList); err != nil {
			return 0, err
		}
		v.List = append(v.List, ListEntry{Seq: v.NextSeq, Val: op.Value})
		v.NextSeq++
		n = int64(len(v.List))

	case kv.OpLRem:
		if err := v.check(KindList); err != nil {
			return 0, err
		}
		if v != nil {
			kept := v.List[:0]
			for _, e := range v.List {
				if e.Val == op.Value {
					n++
					continue
				}
				kept = append(kept, e)
			}
			v.List = kept
		}

	default:
		return 0, fmt.Errorf("kvstate: unsupported op %s", op.Code)
	}

	if v.Empty() {
		o.set(op.Key, nil)
	} else {
		o.set(op.Key, v)
	}
	return n, nil
}

// prepare returns v, or a fresh value of kind k when v is absent.
func (o *Overlay) prepare(key string, v *Value, k Kind) (*Value, error) {
	if err := v.check(k); err != nil {
		return nil, err
	}
	if v == nil || v.Kind == KindNone {
		v = New(k)
		if k == KindList {
			v.NextSeq = o.SeqBase
		}
	}
	return v, nil
}

func (o *Overlay) set(key string, v *Value) {
	o.vals[key] = v
	o.dirty[key] = true
}

// Changes calls fn for every key written, in key order. A nil value means
// the key must be deleted.
func (o *Overlay) Changes(fn func(key string, v *Value) error) error {
	keys := make([]string, 0, len(o.dirty))
	for k := range o.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := o.vals[k]
		if v.Empty() {
			v = nil
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Incr increments the counter v, returning the updated value. v may be nil.
func Incr(v *Value) (*Value, int64, error) {
	if err := v.check(KindCounter); err != nil {
		return nil, 0, err
	}
	c := v.Clone()
	if c == nil || c.Kind == KindNone {
		c = New(KindCounter)
	}
	c.Int++
	return c, c.Int, nil
}
