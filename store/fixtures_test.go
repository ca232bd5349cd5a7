package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jacentio/lattice/kv/memkv"
	"github.com/jacentio/lattice/store"
)

// --- Test Record Types ---

type City struct {
	Name        string
	Connections store.ListHandle
}

type Skill struct {
	Name     string
	Category string
}

type SkillInstance struct {
	Skill store.Handle
	Value int64
}

type Move struct {
	Name string
}

type Fighter struct {
	Name      string
	City      store.Handle
	Weight    float64
	Joined    time.Time
	Active    bool
	Skills    store.SortedSetHandle
	Moves     store.ListHandle
	Inventory store.ListHandle
}

type Gang struct {
	Name    string
	Leader  store.Handle
	Members store.SetHandle
	Cities  store.SetHandle
	Ranking store.SortedSetHandle
}

// Profile is an extension record of Fighter.
type Profile struct {
	Bio string
}

var (
	schema = store.NewRegistry()

	CityType = store.Define(schema, "City", func(b *store.TypeBuilder[City]) {
		b.String("name", func(c *City) *string { return &c.Name }, store.Unique)
		b.List("connections", b.Self(), func(c *City) *store.ListHandle { return &c.Connections })
	})

	SkillType = store.Define(schema, "Skill", func(b *store.TypeBuilder[Skill]) {
		b.String("name", func(s *Skill) *string { return &s.Name }, store.Unique)
		b.String("category", func(s *Skill) *string { return &s.Category }, store.Listed)
	})

	SkillInstanceType = store.Define(schema, "SkillInstance", func(b *store.TypeBuilder[SkillInstance]) {
		b.Ref("skill", SkillType, func(s *SkillInstance) *store.Handle { return &s.Skill }, store.Indexed)
		b.Int("value", func(s *SkillInstance) *int64 { return &s.Value })
	})

	MoveType = store.Define(schema, "Move", func(b *store.TypeBuilder[Move]) {
		b.String("name", func(m *Move) *string { return &m.Name })
	})

	FighterType = store.Define(schema, "Fighter", func(b *store.TypeBuilder[Fighter]) {
		b.String("name", func(f *Fighter) *string { return &f.Name }, store.Unique)
		b.Ref("city", CityType, func(f *Fighter) *store.Handle { return &f.City }, store.Indexed)
		b.Float("weight", func(f *Fighter) *float64 { return &f.Weight }, store.Scored)
		b.Time("joined", func(f *Fighter) *time.Time { return &f.Joined })
		b.Bool("active", func(f *Fighter) *bool { return &f.Active })
		b.SortedSet("skills", SkillInstanceType, func(f *Fighter) *store.SortedSetHandle { return &f.Skills },
			store.Owned, store.SortKey("value"))
		b.List("moves", MoveType, func(f *Fighter) *store.ListHandle { return &f.Moves }, store.Owned)
		b.List("inventory", store.StringType, func(f *Fighter) *store.ListHandle { return &f.Inventory })
	})

	GangType = store.Define(schema, "Gang", func(b *store.TypeBuilder[Gang]) {
		b.String("name", func(g *Gang) *string { return &g.Name }, store.Unique)
		b.Ref("leader", FighterType, func(g *Gang) *store.Handle { return &g.Leader })
		b.Set("members", FighterType, func(g *Gang) *store.SetHandle { return &g.Members }, store.Unique)
		b.Set("cities", CityType, func(g *Gang) *store.SetHandle { return &g.Cities }, store.Indexed)
		b.SortedSet("ranking", FighterType, func(g *Gang) *store.SortedSetHandle { return &g.Ranking })
	})

	ProfileType = store.Define(schema, "Profile", func(b *store.TypeBuilder[Profile]) {
		b.Owner(FighterType)
		b.String("bio", func(p *Profile) *string { return &p.Bio })
	})
)

// --- Helpers ---

func newStore(t *testing.T) (*store.Store, *memkv.Store) {
	t.Helper()
	kvs := memkv.New()
	t.Cleanup(func() { kvs.Close() })
	return store.New(kvs, store.DefaultConfig()), kvs
}

func createCity(t *testing.T, s *store.Store, name string) *store.Record[City] {
	t.Helper()
	r := store.NewRecord(CityType, City{Name: name})
	if err := store.NewWriter[City](s, CityType).Create(context.Background(), r); err != nil {
		t.Fatalf("create city %s: %v", name, err)
	}
	return r
}

func createFighter(t *testing.T, s *store.Store, f Fighter) *store.Record[Fighter] {
	t.Helper()
	r := store.NewRecord(FighterType, f)
	if err := store.NewWriter[Fighter](s, FighterType).Create(context.Background(), r); err != nil {
		t.Fatalf("create fighter %s: %v", f.Name, err)
	}
	return r
}

func createGang(t *testing.T, s *store.Store, name string) *store.Record[Gang] {
	t.Helper()
	r := store.NewRecord(GangType, Gang{Name: name})
	if err := store.NewWriter[Gang](s, GangType).Create(context.Background(), r); err != nil {
		t.Fatalf("create gang %s: %v", name, err)
	}
	return r
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func hasKey(kvs *memkv.Store, key string) bool {
	for _, k := range kvs.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

func handleIDs(t *testing.T, vals []any) []string {
	t.Helper()
	ids := make([]string, len(vals))
	for i, v := range vals {
		h, ok := v.(store.Handle)
		if !ok {
			t.Fatalf("element %d: expected store.Handle, got %T", i, v)
		}
		ids[i] = h.ID()
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
