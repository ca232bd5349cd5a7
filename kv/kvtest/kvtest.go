// Package kvtest is a conformance suite for kv.Store implementations.
package kvtest

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/lattice/kv"
)

// Opener returns a fresh, empty store for one subtest.
type Opener func(t *testing.T) kv.Store

// Run exercises every primitive of the kv contract against stores
// produced by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s kv.Store)
	}{
		{"Hash", testHash},
		{"Set", testSet},
		{"SortedSet", testSortedSet},
		{"SortedSetByScore", testSortedSetByScore},
		{"List", testList},
		{"Incr", testIncr},
		{"BatchReplies", testBatchReplies},
		{"DelRemovesAnyKind", testDel},
		{"EmptyValuesDisappear", testEmptyValuesDisappear},
		{"MissingKeys", testMissingKeys},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func exec(t *testing.T, s kv.Store, fill func(b *kv.Batch)) []int64 {
	t.Helper()
	b := s.Batch()
	fill(b)
	res, err := b.Exec(context.Background())
	require.NoError(t, err)
	return res
}

func testHash(t *testing.T, s kv.Store) {
	ctx := context.Background()
	res := exec(t, s, func(b *kv.Batch) {
		b.HSet("City:1", map[string]string{"name": "Reixte", "coast": "1"})
		b.HSet("City:1", map[string]string{"name": "Damtoo", "size": ""})
	})
	assert.Equal(t, []int64{2, 1}, res)

	all, err := s.HGetAll(ctx, "City:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Damtoo", "coast": "1", "size": ""}, all)

	v, ok, err := s.HGet(ctx, "City:1", "name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Damtoo", v)

	ok, err = s.HExists(ctx, "City:1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	res = exec(t, s, func(b *kv.Batch) {
		b.HDel("City:1", "size")
		b.HDel("City:1", "size")
	})
	assert.Equal(t, []int64{1, 0}, res)
}

func testSet(t *testing.T, s kv.Store) {
	ctx := context.Background()
	res := exec(t, s, func(b *kv.Batch) {
		b.SAdd("i:Fighter:city:1", "1")
		b.SAdd("i:Fighter:city:1", "2")
		b.SAdd("i:Fighter:city:1", "1")
		b.SRem("i:Fighter:city:1", "3")
	})
	assert.Equal(t, []int64{1, 1, 0, 0}, res)

	members, err := s.SMembers(ctx, "i:Fighter:city:1")
	require.NoError(t, err)
	sort.Strings(members)
	assert.Equal(t, []string{"1", "2"}, members)

	ok, err := s.SIsMember(ctx, "i:Fighter:city:1", "2")
	require.NoError(t, err)
	assert.True(t, ok)

	res = exec(t, s, func(b *kv.Batch) { b.SRem("i:Fighter:city:1", "2") })
	assert.Equal(t, []int64{1}, res)
}

func testSortedSet(t *testing.T, s kv.Store) {
	ctx := context.Background()
	res := exec(t, s, func(b *kv.Batch) {
		b.ZAdd("z:Fighter:age", "1", 20)
		b.ZAdd("z:Fighter:age", "2", 26)
		b.ZAdd("z:Fighter:age", "3", 23)
		b.ZAdd("z:Fighter:age", "1", 21)
	})
	assert.Equal(t, []int64{1, 1, 1, 0}, res)

	got, err := s.ZRange(ctx, "z:Fighter:age", 0, -1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "2"}, got)

	got, err = s.ZRange(ctx, "z:Fighter:age", 0, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, got)

	rank, ok, err := s.ZRank(ctx, "z:Fighter:age", "3", false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, rank)

	rank, ok, err = s.ZRank(ctx, "z:Fighter:age", "1", true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 2, rank)

	_, ok, err = s.ZRank(ctx, "z:Fighter:age", "99", false)
	require.NoError(t, err)
	assert.False(t, ok)

	score, ok, err := s.ZScore(ctx, "z:Fighter:age", "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 21.0, score)

	res = exec(t, s, func(b *kv.Batch) {
		b.ZRem("z:Fighter:age", "3")
		b.ZRem("z:Fighter:age", "3")
	})
	assert.Equal(t, []int64{1, 0}, res)
}

func testSortedSetByScore(t *testing.T, s kv.Store) {
	ctx := context.Background()
	exec(t, s, func(b *kv.Batch) {
		b.ZAdd("z", "a", 10)
		b.ZAdd("z", "b", 20)
		b.ZAdd("z", "c", 23)
		b.ZAdd("z", "d", 30)
		b.ZAdd("z", "e", 73.2)
	})

	tests := []struct {
		name string
		q    kv.ScoreQuery
		want []string
	}{
		{"all", kv.All(), []string{"a", "b", "c", "d", "e"}},
		{"lt", kv.ScoreQuery{Min: kv.NegInf, Max: kv.Exclusive(23)}, []string{"a", "b"}},
		{"lte", kv.ScoreQuery{Min: kv.NegInf, Max: kv.Inclusive(23)}, []string{"a", "b", "c"}},
		{"gt", kv.ScoreQuery{Min: kv.Exclusive(23), Max: kv.PosInf}, []string{"d", "e"}},
		{"eq", kv.ScoreQuery{Min: kv.Inclusive(73.2), Max: kv.Inclusive(73.2)}, []string{"e"}},
		{"limit", kv.ScoreQuery{Min: kv.NegInf, Max: kv.PosInf, Offset: 1, Count: 2}, []string{"b", "c"}},
		{"offset only", kv.ScoreQuery{Min: kv.NegInf, Max: kv.PosInf, Offset: 3}, []string{"d", "e"}},
		{"reverse", kv.ScoreQuery{Min: kv.Inclusive(20), Max: kv.Inclusive(30), Reverse: true}, []string{"d", "c", "b"}},
		{"reverse limit", kv.ScoreQuery{Min: kv.NegInf, Max: kv.PosInf, Reverse: true, Count: 1}, []string{"e"}},
		{"none", kv.ScoreQuery{Min: kv.Exclusive(100), Max: kv.PosInf}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ZRangeByScore(ctx, "z", tt.q)
			require.NoError(t, err)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	n, err := s.ZCount(ctx, "z", kv.Exclusive(10), kv.Inclusive(30))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func testList(t *testing.T, s kv.Store) {
	ctx := context.Background()
	res := exec(t, s, func(b *kv.Batch) {
		b.RPush("mylist", "a")
		b.RPush("mylist", "b")
		b.RPush("mylist", "a")
		b.RPush("mylist", "c")
	})
	assert.Equal(t, []int64{1, 2, 3, 4}, res)

	got, err := s.LRange(ctx, "mylist", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a", "c"}, got)

	got, err = s.LRange(ctx, "mylist", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, got)

	res = exec(t, s, func(b *kv.Batch) {
		b.LRem("mylist", "a")
		b.LRem("mylist", "zz")
		b.RPush("mylist", "d")
	})
	assert.Equal(t, []int64{2, 0, 3}, res)

	got, err = s.LRange(ctx, "mylist", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, got)
}

func testIncr(t *testing.T, s kv.Store) {
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		n, err := s.Incr(ctx, "City:id")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	n, err := s.Incr(ctx, "Fighter:id")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func testBatchReplies(t *testing.T, s kv.Store) {
	res := exec(t, s, func(b *kv.Batch) {
		b.HSet("Fighter:1", map[string]string{"name": "Alice"})
		b.HSet("u:Fighter:name", map[string]string{"Alice": "1"})
		b.SAdd("i:Fighter:city:1", "1")
		b.ZAdd("z:Fighter:weight", "1", 73.2)
		b.RPush("l:Fighter:city:1", "1")
	})
	assert.Equal(t, []int64{1, 1, 1, 1, 1}, res)

	ctx := context.Background()
	id, ok, err := s.HGet(ctx, "u:Fighter:name", "Alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", id)

	score, _, err := s.ZScore(ctx, "z:Fighter:weight", "1")
	require.NoError(t, err)
	assert.Equal(t, 73.2, score)
}

func testDel(t *testing.T, s kv.Store) {
	ctx := context.Background()
	exec(t, s, func(b *kv.Batch) {
		b.HSet("h", map[string]string{"a": "1"})
		b.SAdd("s", "1")
		b.ZAdd("z", "1", 1)
		b.RPush("l", "1")
	})
	res := exec(t, s, func(b *kv.Batch) {
		b.Del("h")
		b.Del("s")
		b.Del("z")
		b.Del("l")
		b.Del("never")
	})
	assert.Equal(t, []int64{1, 1, 1, 1, 0}, res)
	for _, key := range []string{"h", "s", "z", "l"} {
		ok, err := s.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func testEmptyValuesDisappear(t *testing.T, s kv.Store) {
	ctx := context.Background()
	exec(t, s, func(b *kv.Batch) { b.SAdd("i:Gang:cities:1", "1") })
	ok, err := s.Exists(ctx, "i:Gang:cities:1")
	require.NoError(t, err)
	assert.True(t, ok)

	exec(t, s, func(b *kv.Batch) { b.SRem("i:Gang:cities:1", "1") })
	ok, err = s.Exists(ctx, "i:Gang:cities:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testMissingKeys(t *testing.T, s kv.Store) {
	ctx := context.Background()

	all, err := s.HGetAll(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, all)

	_, ok, err := s.HGet(ctx, "nope", "f")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := s.SMembers(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, members)

	got, err := s.ZRange(ctx, "nope", 0, -1, false)
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := s.ZCount(ctx, "nope", kv.NegInf, kv.PosInf)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err = s.LRange(ctx, "nope", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, got)
}
