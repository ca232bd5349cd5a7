package store

import (
	"fmt"

	"github.com/jacentio/lattice/internal/keys"
)

// Handle references a record by type and id without loading it. Handles are
// comparable: two handles are equal when type and id match, including two
// unset ids.
type Handle struct {
	typ *Type
	id  string
}

// NewHandle returns a handle to the record of type t with the given id.
func NewHandle(t *Type, id string) Handle {
	return Handle{typ: t, id: id}
}

// ByOwner returns the handle of the extension record of type t belonging to
// owner.
func ByOwner(t *Type, owner Referrer) (Handle, error) {
	oh := owner.Handle()
	if t.owner == nil || oh.typ != t.owner {
		return Handle{}, invalid("%s is not an extension of %s", t, oh.typ)
	}
	return Handle{typ: t, id: oh.id}, nil
}

func (h Handle) Type() *Type { return h.typ }
func (h Handle) ID() string  { return h.id }

// Valid reports whether h names a type and an id.
func (h Handle) Valid() bool { return h.typ != nil && h.id != "" }

// Key returns the key of the record hash.
func (h Handle) Key() string {
	if h.typ == nil {
		return ""
	}
	return keys.Record(h.typ.name, h.id)
}

func (h Handle) Equal(other Handle) bool { return h == other }

// Handle returns h, so a Handle is a Referrer.
func (h Handle) Handle() Handle { return h }

func (h Handle) String() string {
	if h.typ == nil {
		return "<nil>"
	}
	if h.id == "" {
		return fmt.Sprintf("%s:<unset>", h.typ.name)
	}
	return h.Key()
}
