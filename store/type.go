package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/jacentio/lattice/internal/keys"
)

// Type is a record type or a primitive element type.
type Type struct {
	name     string
	owner    *Type
	registry *Registry

	// Primitive element types carry a scalar value type and no identity.
	scalar   ValueType
	identity bool

	attrs       []*Field
	lists       []*Field
	sets        []*Field
	zsets       []*Field
	collections []*Field
	byName      map[string]*Field

	isRow func(row any) bool
}

// Primitive element types for collections of plain values.
var (
	StringType = &Type{name: "string", scalar: TypeString}
	IntType    = &Type{name: "int", scalar: TypeInteger}
	FloatType  = &Type{name: "float", scalar: TypeFloat}
)

func (t *Type) Name() string { return t.name }

// Owner returns the owner type of an extension record type, or nil.
func (t *Type) Owner() *Type { return t.owner }

// HasIdentity reports whether values of t are records addressed by id.
func (t *Type) HasIdentity() bool { return t.identity }

// Field returns the attribute or collection declared under name, or nil.
func (t *Type) Field(name string) *Field { return t.byName[name] }

// Attributes returns plain and reference fields in declaration order.
func (t *Type) Attributes() []*Field { return t.attrs }

func (t *Type) Lists() []*Field      { return t.lists }
func (t *Type) Sets() []*Field       { return t.sets }
func (t *Type) SortedSets() []*Field { return t.zsets }

// Collections returns every collection field in declaration order.
func (t *Type) Collections() []*Field { return t.collections }

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.name
}

// Define registers a record type built by build and returns it. Row is the
// struct holding a record's values; build installs an accessor per field.
//
// Define panics on invalid definitions, as they are programming errors.
func Define[Row any](reg *Registry, name string, build func(b *TypeBuilder[Row])) *Type {
	if name == "" || strings.Contains(name, keys.Sep) {
		panic(fmt.Sprintf("store: invalid type name %q", name))
	}
	t := &Type{
		name:     name,
		registry: reg,
		identity: true,
		byName:   make(map[string]*Field),
		isRow: func(row any) bool {
			_, ok := row.(*Row)
			return ok
		},
	}
	build(&TypeBuilder[Row]{t: t})
	t.resolveSortKeys()
	reg.register(t)
	return t
}

func (t *Type) resolveSortKeys() {
	for _, f := range t.zsets {
		if f.sortKeyName == "" {
			continue
		}
		key := f.target.Field(f.sortKeyName)
		if key == nil || key.IsCollection() || !key.scoreable() {
			panic(fmt.Sprintf("store: %s: sort key %q is not a numeric attribute of %s", f, f.sortKeyName, f.target))
		}
		f.sortKey = key
	}
}

func (t *Type) add(f *Field, opts []any) *Field {
	if f.name == "" || strings.Contains(f.name, keys.Sep) {
		panic(fmt.Sprintf("store: %s: invalid field name %q", t, f.name))
	}
	if _, dup := t.byName[f.name]; dup {
		panic(fmt.Sprintf("store: %s: field %q declared twice", t, f.name))
	}
	f.decl = t
	f.apply(opts)
	t.byName[f.name] = f

	switch f.kind {
	case KindList:
		t.lists = append(t.lists, f)
	case KindSet:
		t.sets = append(t.sets, f)
	case KindSortedSet:
		t.zsets = append(t.zsets, f)
	default:
		t.attrs = append(t.attrs, f)
		return f
	}
	t.collections = append(t.collections, f)
	return f
}

// encode renders every attribute of row.
func (t *Type) encode(row any) (map[string]string, error) {
	fields := make(map[string]string, len(t.attrs))
	for _, f := range t.attrs {
		raw, err := f.encode(f.value(row))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		fields[f.name] = raw
	}
	return fields, nil
}

// decode assigns stored attributes to row. Attributes absent from hash keep
// their zero value.
func (t *Type) decode(row any, hash map[string]string, key string) error {
	for _, f := range t.attrs {
		raw, ok := hash[f.name]
		if !ok {
			continue
		}
		v, err := f.decode(raw)
		if err != nil {
			return &DataError{Key: key, Field: f.name, Err: err}
		}
		f.assign(row, v)
	}
	return nil
}

// snapshot picks the raw values of tracked attributes out of a hash.
func (t *Type) snapshot(hash map[string]string) map[string]string {
	snap := make(map[string]string)
	for _, f := range t.attrs {
		raw, ok := hash[f.name]
		if ok && f.tracked() && f.indexable(raw) {
			snap[f.name] = raw
		}
	}
	return snap
}

func (t *Type) container(f *Field, id string) container {
	return container{
		key:     keys.Field(t.name, id, f.name),
		target:  f.target,
		ownerID: id,
		field:   f,
	}
}

// attachAll points every collection handle of row at the record id.
func (t *Type) attachAll(row any, id string) {
	for _, f := range t.collections {
		f.attach(row, t.container(f, id))
	}
}

// TypeBuilder declares the fields of a record type inside Define.
type TypeBuilder[Row any] struct {
	t *Type
}

// Self returns the type being defined, for self-referencing fields.
func (b *TypeBuilder[Row]) Self() *Type { return b.t }

// Owner makes the type an extension record of owner: each record shares the
// id of its owner record.
func (b *TypeBuilder[Row]) Owner(owner *Type) {
	if owner == nil || !owner.identity {
		panic(fmt.Sprintf("store: %s: owner must be a record type", b.t))
	}
	b.t.owner = owner
}

func attribute[Row, V any](b *TypeBuilder[Row], f *Field, get func(*Row) *V, opts []any) *Field {
	f.value = func(row any) any { return *get(row.(*Row)) }
	f.assign = func(row any, v any) { *get(row.(*Row)) = v.(V) }
	return b.t.add(f, opts)
}

// String declares a string attribute.
func (b *TypeBuilder[Row]) String(name string, get func(*Row) *string, opts ...any) *Field {
	return attribute(b, &Field{name: name, vtype: TypeString}, get, opts)
}

// Int declares an integer attribute.
func (b *TypeBuilder[Row]) Int(name string, get func(*Row) *int64, opts ...any) *Field {
	return attribute(b, &Field{name: name, vtype: TypeInteger}, get, opts)
}

// Float declares a float attribute.
func (b *TypeBuilder[Row]) Float(name string, get func(*Row) *float64, opts ...any) *Field {
	return attribute(b, &Field{name: name, vtype: TypeFloat}, get, opts)
}

// Bool declares a boolean attribute, stored as "1" or "0".
func (b *TypeBuilder[Row]) Bool(name string, get func(*Row) *bool, opts ...any) *Field {
	return attribute(b, &Field{name: name, vtype: TypeBoolean}, get, opts)
}

// Time declares a datetime attribute, stored as epoch seconds with "0" for
// the zero time.
func (b *TypeBuilder[Row]) Time(name string, get func(*Row) *time.Time, opts ...any) *Field {
	return attribute(b, &Field{name: name, vtype: TypeDateTime}, get, opts)
}

// Ref declares a reference to a record of type target, stored as its id.
func (b *TypeBuilder[Row]) Ref(name string, target *Type, get func(*Row) *Handle, opts ...any) *Field {
	requireRecordType(b.t, name, target)
	return attribute(b, &Field{name: name, kind: KindReference, target: target}, get, opts)
}

// List declares a list collection of target values.
func (b *TypeBuilder[Row]) List(name string, target *Type, get func(*Row) *ListHandle, opts ...any) *Field {
	return collection(b, &Field{name: name, kind: KindList, target: target}, opts, func(row *Row, c container) {
		*get(row) = ListHandle{c}
	})
}

// Set declares a set collection of target values.
func (b *TypeBuilder[Row]) Set(name string, target *Type, get func(*Row) *SetHandle, opts ...any) *Field {
	return collection(b, &Field{name: name, kind: KindSet, target: target}, opts, func(row *Row, c container) {
		*get(row) = SetHandle{c}
	})
}

// SortedSet declares a scored collection of target values. An owned sorted
// set can name the element attribute that scores it with a SortKey option.
func (b *TypeBuilder[Row]) SortedSet(name string, target *Type, get func(*Row) *SortedSetHandle, opts ...any) *Field {
	return collection(b, &Field{name: name, kind: KindSortedSet, target: target}, opts, func(row *Row, c container) {
		*get(row) = SortedSetHandle{c}
	})
}

func collection[Row any](b *TypeBuilder[Row], f *Field, opts []any, set func(*Row, container)) *Field {
	if f.target == nil {
		panic(fmt.Sprintf("store: %s.%s: missing element type", b.t, f.name))
	}
	f.attach = func(row any, c container) { set(row.(*Row), c) }
	return b.t.add(f, opts)
}

func requireRecordType(t *Type, name string, target *Type) {
	if target == nil || !target.identity {
		panic(fmt.Sprintf("store: %s.%s: reference target must be a record type", t, name))
	}
}
