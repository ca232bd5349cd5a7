package store

import (
	"fmt"

	"github.com/jacentio/lattice/internal/keys"
)

// Relationship links a record type to data stored on behalf of its records:
// a collection field, or an extension type sharing the parent's ids.
type Relationship struct {
	// Parent is the type whose records hold the data.
	Parent *Type

	// Child is the element type of the collection, or the extension type.
	Child *Type

	// Field is the collection field. Nil for extension records.
	Field *Field
}

// Owned reports whether the parent controls the lifecycle of child records.
func (r Relationship) Owned() bool {
	return r.Field == nil || r.Field.Owned()
}

// Registry holds every type defined with Define and the relationships
// between them, for key parsing and cascade operations.
type Registry struct {
	types         []*Type
	byName        map[string]*Type
	relationships []Relationship
	byParent      map[*Type][]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]*Type),
		byParent: make(map[*Type][]Relationship),
	}
}

// register is called by Define once the type is fully built.
func (r *Registry) register(t *Type) {
	if _, dup := r.byName[t.name]; dup {
		panic(fmt.Sprintf("store: type %q defined twice", t.name))
	}
	r.types = append(r.types, t)
	r.byName[t.name] = t

	for _, f := range t.collections {
		r.relate(Relationship{Parent: t, Child: f.target, Field: f})
	}
	if t.owner != nil {
		r.relate(Relationship{Parent: t.owner, Child: t})
	}
}

func (r *Registry) relate(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.Parent] = append(r.byParent[rel.Parent], rel)
}

// Types returns every registered type in definition order.
func (r *Registry) Types() []*Type {
	return r.types
}

// TypeNamed returns the type registered under name.
func (r *Registry) TypeNamed(name string) (*Type, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// ChildrenOf returns the relationships whose parent is t.
func (r *Registry) ChildrenOf(t *Type) []Relationship {
	return r.byParent[t]
}

// ExtensionsOf returns the extension types owned by t.
func (r *Registry) ExtensionsOf(t *Type) []*Type {
	var out []*Type
	for _, rel := range r.byParent[t] {
		if rel.Field == nil {
			out = append(out, rel.Child)
		}
	}
	return out
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasChildren returns true if records of t hold collections or extensions.
func (r *Registry) HasChildren(t *Type) bool {
	return len(r.byParent[t]) > 0
}

// ParseKey resolves a record key such as "City:1" to a handle.
func (r *Registry) ParseKey(key string) (Handle, error) {
	name, id, ok := keys.SplitRecord(key)
	if !ok {
		return Handle{}, invalid("%q is not a record key", key)
	}
	t, ok := r.byName[name]
	if !ok {
		return Handle{}, invalid("unknown type %q", name)
	}
	return Handle{typ: t, id: id}, nil
}
