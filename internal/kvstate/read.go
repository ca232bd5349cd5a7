package kvstate

import (
	"sort"

	"github.com/jacentio/lattice/kv"
)

// HGetAll returns a copy of the hash fields.
func (v *Value) HGetAll() (map[string]string, error) {
	if err := v.check(KindHash); err != nil {
		return nil, err
	}
	out := map[string]string{}
	if v != nil {
		for k, s := range v.Hash {
			out[k] = s
		}
	}
	return out, nil
}

// HGet returns one hash field.
func (v *Value) HGet(field string) (string, bool, error) {
	if err := v.check(KindHash); err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	s, ok := v.Hash[field]
	return s, ok, nil
}

// SMembers returns set members in byte order.
func (v *Value) SMembers() ([]string, error) {
	if err := v.check(KindSet); err != nil {
		return nil, err
	}
	out := []string{}
	if v != nil {
		for m := range v.Set {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// SIsMember reports set membership.
func (v *Value) SIsMember(member string) (bool, error) {
	if err := v.check(KindSet); err != nil {
		return false, err
	}
	return v != nil && v.Set[member], nil
}

// ZRange returns members by rank.
func (v *Value) ZRange(start, stop int64, rev bool) ([]string, error) {
	if err := v.check(KindZSet); err != nil {
		return nil, err
	}
	all := v.ordered()
	if rev {
		reverse(all)
	}
	lo, hi := kv.NormalizeRange(start, stop, len(all))
	out := make([]string, 0, hi-lo)
	for _, e := range all[lo:hi] {
		out = append(out, e.member)
	}
	return out, nil
}

// ZRangeByScore returns members within q's bounds.
func (v *Value) ZRangeByScore(q kv.ScoreQuery) ([]string, error) {
	if err := v.check(KindZSet); err != nil {
		return nil, err
	}
	all := v.ordered()
	if q.Reverse {
		reverse(all)
	}
	var match []string
	for _, e := range all {
		if q.Contains(e.score) {
			match = append(match, e.member)
		}
	}
	lo, hi := q.Window(len(match))
	return append([]string{}, match[lo:hi]...), nil
}

// ZCount counts members between min and max.
func (v *Value) ZCount(min, max kv.Bound) (int64, error) {
	if err := v.check(KindZSet); err != nil {
		return 0, err
	}
	var n int64
	if v != nil {
		for _, s := range v.ZSet {
			if min.AboveMin(s) && max.BelowMax(s) {
				n++
			}
		}
	}
	return n, nil
}

// ZRank returns the rank of member.
func (v *Value) ZRank(member string, rev bool) (int64, bool, error) {
	if err := v.check(KindZSet); err != nil {
		return 0, false, err
	}
	all := v.ordered()
	if rev {
		reverse(all)
	}
	for i, e := range all {
		if e.member == member {
			return int64(i), true, nil
		}
	}
	return 0, false, nil
}

// ZScore returns the score of member.
func (v *Value) ZScore(member string) (float64, bool, error) {
	if err := v.check(KindZSet); err != nil {
		return 0, false, err
	}
	if v == nil {
		return 0, false, nil
	}
	s, ok := v.ZSet[member]
	return s, ok, nil
}

// LRange returns list elements by index.
func (v *Value) LRange(start, stop int64) ([]string, error) {
	if err := v.check(KindList); err != nil {
		return nil, err
	}
	var list []ListEntry
	if v != nil {
		list = v.List
	}
	lo, hi := kv.NormalizeRange(start, stop, len(list))
	out := make([]string, 0, hi-lo)
	for _, e := range list[lo:hi] {
		out = append(out, e.Val)
	}
	return out, nil
}

func reverse(s []scored) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
