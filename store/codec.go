package store

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Referrer is anything that identifies a record: a Handle or a *Record.
type Referrer interface {
	Handle() Handle
}

// formatFloat writes the shortest exact decimal with no exponent, so whole
// floats have no fractional part.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.Unix(), 10)
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// encodeScalar renders v in the stored text form of vt. Strings are taken as
// already encoded for every type.
func encodeScalar(vt ValueType, v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	switch vt {
	case TypeInteger:
		if n, ok := asInt(v); ok {
			return strconv.FormatInt(n, 10), nil
		}
	case TypeFloat:
		switch f := v.(type) {
		case float64:
			return formatFloat(f), nil
		case float32:
			return formatFloat(float64(f)), nil
		}
		if n, ok := asInt(v); ok {
			return strconv.FormatInt(n, 10), nil
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return "1", nil
			}
			return "0", nil
		}
	case TypeDateTime:
		if t, ok := v.(time.Time); ok {
			return formatTime(t), nil
		}
	}
	return "", invalid("%T is not a %s value", v, vt)
}

// decodeScalar parses a stored value of type vt.
func decodeScalar(vt ValueType, raw string) (any, error) {
	switch vt {
	case TypeString:
		return raw, nil
	case TypeInteger:
		return strconv.ParseInt(raw, 10, 64)
	case TypeFloat:
		return strconv.ParseFloat(raw, 64)
	case TypeBoolean:
		return strconv.ParseBool(raw)
	case TypeDateTime:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return time.Time{}, nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return nil, fmt.Errorf("unknown value type %s", vt)
}

// encodeRef returns the id of a reference to target. With allowUnset an
// unset handle encodes as the empty string.
func encodeRef(target *Type, v any, allowUnset bool) (string, error) {
	switch r := v.(type) {
	case string:
		if r == "" && !allowUnset {
			return "", invalid("empty %s id", target)
		}
		return r, nil
	case Referrer:
		h := r.Handle()
		if h.typ == nil && h.id == "" && allowUnset {
			return "", nil
		}
		if h.typ != target {
			return "", invalid("expected a %s reference, got %s", target, h.typ)
		}
		if h.id == "" && !allowUnset {
			return "", invalid("%s reference has no id", target)
		}
		return h.id, nil
	}
	return "", invalid("%T is not a %s reference", v, target)
}

// encodeElem renders a collection element of type target. Record elements
// may be given as a Referrer or as a raw id.
func encodeElem(target *Type, v any) (string, error) {
	if target.identity {
		return encodeRef(target, v, false)
	}
	return encodeScalar(target.scalar, v)
}

// decodeElem turns a raw element into a Handle for record targets, or the
// decoded scalar otherwise.
func decodeElem(target *Type, raw string) (any, error) {
	if target.identity {
		return Handle{typ: target, id: raw}, nil
	}
	return decodeScalar(target.scalar, raw)
}

// parseScore reads a raw stored value as a score.
func parseScore(raw string) (float64, error) {
	s, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(s) {
		return 0, invalid("%q cannot be used as a score", raw)
	}
	return s, nil
}

// toScore converts a caller-supplied bound or score to a float.
func toScore(v any) (float64, error) {
	switch s := v.(type) {
	case float64:
		if math.IsNaN(s) {
			return 0, invalid("NaN score")
		}
		return s, nil
	case float32:
		return toScore(float64(s))
	case bool:
		if s {
			return 1, nil
		}
		return 0, nil
	case time.Time:
		if s.IsZero() {
			return 0, nil
		}
		return float64(s.Unix()), nil
	case string:
		return parseScore(s)
	case Referrer:
		return parseScore(s.Handle().id)
	}
	if n, ok := asInt(v); ok {
		return float64(n), nil
	}
	return 0, invalid("%T cannot be used as a score", v)
}
