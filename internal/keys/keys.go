// Package keys derives store key names. The layout is shared with other
// clients of the same data and must not change.
package keys

import "strings"

// Sep separates key segments.
const Sep = ":"

// Record is the hash key of a record: "{Type}:{id}".
func Record(typ, id string) string {
	return typ + Sep + id
}

// Field is the key of a record's collection field: "{Type}:{id}:{field}".
func Field(typ, id, field string) string {
	return typ + Sep + id + Sep + field
}

// Counter is the id counter of a record type: "{Type}:id".
func Counter(typ string) string {
	return typ + Sep + "id"
}

// Unique is the unique map of an attribute or collection field:
// "u:{Type}:{field}".
func Unique(typ, field string) string {
	return "u" + Sep + typ + Sep + field
}

// MemberPrefix is the membership-set prefix of a field: "i:{Type}:{field}".
func MemberPrefix(typ, field string) string {
	return "i" + Sep + typ + Sep + field
}

// Member is the membership set of one value: "i:{Type}:{field}:{value}".
func Member(typ, field, value string) string {
	return MemberPrefix(typ, field) + Sep + value
}

// Sorted is the sorted index of a field: "z:{Type}:{field}".
func Sorted(typ, field string) string {
	return "z" + Sep + typ + Sep + field
}

// Listed is the list index of one value: "l:{Type}:{field}:{value}".
func Listed(typ, field, value string) string {
	return "l" + Sep + typ + Sep + field + Sep + value
}

// OwnerID returns the second segment of a container key, which is the id of
// the owning record. Keys with fewer than two segments have no owner.
func OwnerID(key string) string {
	parts := strings.SplitN(key, Sep, 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// SplitRecord splits a record key into type and id. It reports false for
// keys that are not exactly two non-empty segments.
func SplitRecord(key string) (typ, id string, ok bool) {
	typ, id, found := strings.Cut(key, Sep)
	if !found || typ == "" || id == "" || strings.Contains(id, Sep) {
		return "", "", false
	}
	return typ, id, true
}
