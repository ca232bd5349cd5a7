package kv

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Bound is one end of a score range.
type Bound struct {
	Value     float64
	Exclusive bool
}

var (
	// NegInf is the lowest possible bound.
	NegInf = Bound{Value: math.Inf(-1)}

	// PosInf is the highest possible bound.
	PosInf = Bound{Value: math.Inf(1)}
)

// Inclusive returns a bound that admits v.
func Inclusive(v float64) Bound { return Bound{Value: v} }

// Exclusive returns a bound that excludes v.
func Exclusive(v float64) Bound { return Bound{Value: v, Exclusive: true} }

// AboveMin reports whether score satisfies b used as a lower bound.
func (b Bound) AboveMin(score float64) bool {
	if b.Exclusive {
		return score > b.Value
	}
	return score >= b.Value
}

// BelowMax reports whether score satisfies b used as an upper bound.
func (b Bound) BelowMax(score float64) bool {
	if b.Exclusive {
		return score < b.Value
	}
	return score <= b.Value
}

// String renders b in Redis range syntax: "5", "(5", "-inf", "+inf".
func (b Bound) String() string {
	var s string
	switch {
	case math.IsInf(b.Value, -1):
		s = "-inf"
	case math.IsInf(b.Value, 1):
		s = "+inf"
	default:
		s = FormatScore(b.Value)
	}
	if b.Exclusive {
		return "(" + s
	}
	return s
}

// ParseBound parses Redis range syntax. A leading "(" makes the bound
// exclusive.
func ParseBound(s string) (Bound, error) {
	var b Bound
	if strings.HasPrefix(s, "(") {
		b.Exclusive = true
		s = s[1:]
	}
	switch strings.ToLower(s) {
	case "-inf":
		b.Value = math.Inf(-1)
		return b, nil
	case "+inf", "inf":
		b.Value = math.Inf(1)
		return b, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return Bound{}, fmt.Errorf("kv: invalid score bound %q", s)
	}
	b.Value = v
	return b, nil
}

// FormatScore renders a score as shortest decimal text.
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ScoreQuery selects sorted-set members by score.
//
// Count limits the number of members returned after skipping Offset of them;
// zero means no limit. With Reverse members are returned highest first, but
// Min and Max keep their meaning.
type ScoreQuery struct {
	Min     Bound
	Max     Bound
	Offset  int64
	Count   int64
	Reverse bool
}

// All matches every score.
func All() ScoreQuery {
	return ScoreQuery{Min: NegInf, Max: PosInf}
}

// Contains reports whether score lies within q's bounds.
func (q ScoreQuery) Contains(score float64) bool {
	return q.Min.AboveMin(score) && q.Max.BelowMax(score)
}

// Window applies Offset and Count to n matching members and returns the
// half-open index range to keep.
func (q ScoreQuery) Window(n int) (int, int) {
	lo := n
	if q.Offset < int64(n) {
		lo = int(max(q.Offset, 0))
	}
	hi := n
	// Compare against the remaining width so huge counts cannot overflow.
	if q.Count > 0 && q.Count < int64(n-lo) {
		hi = lo + int(q.Count)
	}
	return lo, hi
}

// NormalizeRange clamps Redis-style inclusive start and stop indexes
// (negative counts from the end) to a half-open range over n elements.
func NormalizeRange(start, stop int64, n int) (int, int) {
	size := int64(n)
	if start < 0 {
		start += size
	}
	if stop < 0 {
		stop += size
	}
	if start < 0 {
		start = 0
	}
	if stop >= size {
		stop = size - 1
	}
	if start > stop || start >= size {
		return 0, 0
	}
	return int(start), int(stop) + 1
}
