package store

import "fmt"

// Kind classifies a field.
type Kind uint8

const (
	KindPlain Kind = iota
	KindReference
	KindList
	KindSet
	KindSortedSet
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindReference:
		return "reference"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindSortedSet:
		return "sortedSet"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsCollection reports whether fields of this kind are stored under their
// own key.
func (k Kind) IsCollection() bool {
	return k >= KindList
}

// ValueType is the scalar type of a plain field or of a primitive element
// type.
type ValueType uint8

const (
	TypeString ValueType = iota
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeDateTime
)

func (v ValueType) String() string {
	switch v {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	case TypeDateTime:
		return "datetime"
	}
	return fmt.Sprintf("ValueType(%d)", uint8(v))
}

// FieldOption flags a field at definition time.
type FieldOption uint8

const (
	// Indexed keeps a membership set per value, or a unique map with Unique.
	Indexed FieldOption = 1 << iota

	// Unique rejects values already held by another record. Implies Indexed.
	Unique

	// Scored keeps a sorted index scoring each record by the field value.
	Scored

	// Listed keeps a list of record ids per value in write order.
	Listed

	// Owned makes a collection own its elements.
	Owned
)

// SortKey names the element field that scores an owned sorted-set
// collection.
type SortKey string

// Field describes one declared attribute or collection of a record type.
type Field struct {
	name    string
	kind    Kind
	vtype   ValueType
	flags   FieldOption
	decl    *Type
	target  *Type
	sortKey *Field

	sortKeyName string

	// Typed accessors installed by the builder. value and assign work on
	// attributes, attach on collections.
	value  func(row any) any
	assign func(row any, v any)
	attach func(row any, c container)
}

func (f *Field) Name() string { return f.name }

func (f *Field) Kind() Kind { return f.kind }

// ValueType returns the scalar type of a plain field.
func (f *Field) ValueType() ValueType { return f.vtype }

// Type returns the record type declaring f.
func (f *Field) Type() *Type { return f.decl }

// Target returns the referenced or contained type. Nil for plain fields.
func (f *Field) Target() *Type { return f.target }

func (f *Field) Indexed() bool { return f.flags&Indexed != 0 }
func (f *Field) Unique() bool  { return f.flags&Unique != 0 }
func (f *Field) Scored() bool  { return f.flags&Scored != 0 }
func (f *Field) Listed() bool  { return f.flags&Listed != 0 }
func (f *Field) Owned() bool   { return f.flags&Owned != 0 }

// SortKey returns the element field scoring an owned sorted set, or nil.
func (f *Field) SortKey() *Field { return f.sortKey }

// IsCollection reports whether f is a list, set or sorted set.
func (f *Field) IsCollection() bool { return f.kind.IsCollection() }

// tracked reports whether f has derived index entries to keep in sync.
func (f *Field) tracked() bool {
	return f.flags&(Indexed|Scored|Listed) != 0
}

func (f *Field) String() string {
	if f.decl == nil {
		return f.name
	}
	return f.decl.name + "." + f.name
}

// scoreable reports whether values of f can be used as sorted-set scores.
func (f *Field) scoreable() bool {
	if f.kind == KindReference {
		return true
	}
	return f.kind == KindPlain && f.vtype != TypeString
}

// encode converts a caller-supplied value for f to its raw stored form.
// Collection fields encode element values.
func (f *Field) encode(v any) (string, error) {
	switch {
	case f.kind == KindReference:
		return encodeRef(f.target, v, true)
	case f.kind.IsCollection():
		return encodeElem(f.target, v)
	default:
		return encodeScalar(f.vtype, v)
	}
}

// decode parses a raw stored attribute value.
func (f *Field) decode(raw string) (any, error) {
	if f.kind == KindReference {
		if raw == "" {
			return Handle{}, nil
		}
		return Handle{typ: f.target, id: raw}, nil
	}
	return decodeScalar(f.vtype, raw)
}

// indexable reports whether raw gets index entries. Unset references don't.
func (f *Field) indexable(raw string) bool {
	return raw != "" || f.kind != KindReference
}

// apply processes builder options for f.
func (f *Field) apply(opts []any) {
	for _, o := range opts {
		switch o := o.(type) {
		case FieldOption:
			f.flags |= o
		case SortKey:
			f.sortKeyName = string(o)
		default:
			panic(fmt.Sprintf("store: %s: unknown option %T", f, o))
		}
	}
	if f.Unique() {
		f.flags |= Indexed
	}

	if f.kind.IsCollection() {
		if f.flags&(Scored|Listed) != 0 {
			panic(fmt.Sprintf("store: %s: collections cannot be scored or listed", f))
		}
		if f.Owned() && (f.target == nil || !f.target.identity) {
			panic(fmt.Sprintf("store: %s: owned collections need a record element type", f))
		}
		if f.sortKeyName != "" {
			if f.kind != KindSortedSet || !f.Owned() {
				panic(fmt.Sprintf("store: %s: sort key requires an owned sorted set", f))
			}
		}
		return
	}

	if f.Owned() || f.sortKeyName != "" {
		panic(fmt.Sprintf("store: %s: only collections can be owned or sorted", f))
	}
	if f.Scored() && !f.scoreable() {
		panic(fmt.Sprintf("store: %s: %s values cannot be scored", f, f.vtype))
	}
}
