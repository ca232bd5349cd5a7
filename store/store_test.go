package store_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jacentio/lattice/kv/memkv"
	"github.com/jacentio/lattice/store"
)

func TestDefaultConfig(t *testing.T) {
	cfg := store.DefaultConfig()
	if cfg.Logger == nil {
		t.Error("expected default logger")
	}
	if cfg.LogValues {
		t.Error("expected LogValues off by default")
	}
}

func TestNewStore(t *testing.T) {
	kvs := memkv.New()
	s := store.New(kvs, store.Config{})
	if s == nil {
		t.Fatal("expected non-nil Store")
	}
	if s.Client() != kvs {
		t.Error("expected Client to return the backing store")
	}
}

func TestCreate_AssignsSequentialIDs(t *testing.T) {
	s, _ := newStore(t)
	reixte := createCity(t, s, "Reixte")
	damtoo := createCity(t, s, "Damtoo")

	if reixte.ID() != "1" || damtoo.ID() != "2" {
		t.Errorf("expected ids 1 and 2, got %q and %q", reixte.ID(), damtoo.ID())
	}
	if reixte.Key() != "City:1" {
		t.Errorf("expected key City:1, got %q", reixte.Key())
	}
	if reixte.Row.Connections.Key() != "City:1:connections" {
		t.Errorf("expected connections key City:1:connections, got %q", reixte.Row.Connections.Key())
	}
	if reixte.Row.Connections.OwnerID() != "1" {
		t.Errorf("expected owner id 1, got %q", reixte.Row.Connections.OwnerID())
	}
}

func TestCreate_CityConnections(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	reixte := createCity(t, s, "Reixte")
	damtoo := createCity(t, s, "Damtoo")

	conns := s.FieldWriter(CityType.Field("connections"))
	if err := conns.Append(ctx, reixte.Row.Connections, "2"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := conns.Append(ctx, damtoo.Row.Connections, "1"); err != nil {
		t.Fatalf("append: %v", err)
	}

	loaded, err := store.Load[City](ctx, s, reixte.Handle())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	vals, err := loaded.Row.Connections.Load(ctx, s)
	if err != nil {
		t.Fatalf("load connections: %v", err)
	}
	if len(vals) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(vals))
	}
	if vals[0] != store.NewHandle(CityType, "2") {
		t.Errorf("expected City:2, got %v", vals[0])
	}

	other, err := store.Load[City](ctx, s, vals[0].(store.Handle))
	if err != nil {
		t.Fatalf("load connection: %v", err)
	}
	if other.Row.Name != "Damtoo" {
		t.Errorf("expected Damtoo, got %q", other.Row.Name)
	}
}

func TestCreate_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, kvs := newStore(t)
	city := createCity(t, s, "Reixte")
	joined := time.Unix(1700000000, 0).UTC()

	f := createFighter(t, s, Fighter{
		Name:   "Alice",
		City:   city.Handle(),
		Weight: 73.2,
		Joined: joined,
		Active: true,
	})

	hash, _ := kvs.HGetAll(ctx, "Fighter:1")
	want := map[string]string{
		"name":   "Alice",
		"city":   "1",
		"weight": "73.2",
		"joined": "1700000000",
		"active": "1",
	}
	for k, v := range want {
		if hash[k] != v {
			t.Errorf("field %s: expected %q, got %q", k, v, hash[k])
		}
	}

	got, err := store.Load[Fighter](ctx, s, f.Handle())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Row.Name != "Alice" || got.Row.City != city.Handle() || got.Row.Weight != 73.2 || !got.Row.Active {
		t.Errorf("unexpected row %+v", got.Row)
	}
	if !got.Row.Joined.Equal(joined) {
		t.Errorf("expected joined %v, got %v", joined, got.Row.Joined)
	}
	if got.Row.Skills != f.Row.Skills || got.Row.Moves != f.Row.Moves {
		t.Error("expected loaded container handles to match created ones")
	}
	if raw, ok := got.Snapshot("weight"); !ok || raw != "73.2" {
		t.Errorf("expected weight snapshot 73.2, got %q", raw)
	}
	if _, ok := got.Snapshot("joined"); ok {
		t.Error("expected no snapshot for an untracked field")
	}
}

func TestCreate_ZeroValues(t *testing.T) {
	ctx := context.Background()
	s, kvs := newStore(t)
	f := createFighter(t, s, Fighter{Name: "Bob", Weight: 98})

	hash, _ := kvs.HGetAll(ctx, f.Key())
	if hash["weight"] != "98" {
		t.Errorf("expected weight 98, got %q", hash["weight"])
	}
	if hash["joined"] != "0" {
		t.Errorf("expected joined 0, got %q", hash["joined"])
	}
	if hash["active"] != "0" {
		t.Errorf("expected active 0, got %q", hash["active"])
	}
	if hash["city"] != "" {
		t.Errorf("expected empty city, got %q", hash["city"])
	}

	got, err := store.Load[Fighter](ctx, s, f.Handle())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Row.Joined.IsZero() {
		t.Errorf("expected zero joined time, got %v", got.Row.Joined)
	}
	if got.Row.City.Valid() {
		t.Errorf("expected unset city, got %v", got.Row.City)
	}
}

func TestCreate_UniqueViolation(t *testing.T) {
	ctx := context.Background()
	s, kvs := newStore(t)
	first := createFighter(t, s, Fighter{Name: "Alice", Weight: 60})

	dup := store.NewRecord(FighterType, Fighter{Name: "Alice", Weight: 70})
	err := store.NewWriter[Fighter](s, FighterType).Create(ctx, dup)
	expectErr(t, err, store.ErrUniqueViolation)

	if dup.Persisted() {
		t.Error("expected duplicate to stay unsaved")
	}
	names, _ := kvs.HGetAll(ctx, "u:Fighter:name")
	if len(names) != 1 || names["Alice"] != first.ID() {
		t.Errorf("expected unique map {Alice: %s}, got %v", first.ID(), names)
	}
	if hasKey(kvs, "Fighter:2") {
		t.Error("expected no second fighter hash")
	}

	// The counter is untouched by the rejected create.
	next := createFighter(t, s, Fighter{Name: "Bob"})
	if next.ID() != "2" {
		t.Errorf("expected id 2, got %q", next.ID())
	}
}

func TestCreate_Preconditions(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	w := store.NewWriter[Fighter](s, FighterType)

	f := createFighter(t, s, Fighter{Name: "Alice"})
	expectErr(t, w.Create(ctx, f), store.ErrInvalidArgument)

	city := createCity(t, s, "Reixte")
	r := store.NewRecord(FighterType, Fighter{Name: "Bob"})
	expectErr(t, w.CreateFor(ctx, r, city), store.ErrInvalidArgument)

	wrongRef := store.NewRecord(FighterType, Fighter{Name: "Carol", City: store.NewHandle(GangType, "1")})
	expectErr(t, w.Create(ctx, wrongRef), store.ErrInvalidArgument)
}

func TestCreate_ExtensionRecord(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	profiles := store.NewWriter[Profile](s, ProfileType)
	alice := createFighter(t, s, Fighter{Name: "Alice"})
	createFighter(t, s, Fighter{Name: "Bob"})

	p := store.NewRecord(ProfileType, Profile{Bio: "left-handed"})
	expectErr(t, profiles.Create(ctx, p), store.ErrInvalidArgument)

	if err := profiles.CreateFor(ctx, p, alice); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if p.ID() != alice.ID() {
		t.Errorf("expected profile id %q, got %q", alice.ID(), p.ID())
	}

	again := store.NewRecord(ProfileType, Profile{Bio: "again"})
	expectErr(t, profiles.CreateFor(ctx, again, alice), store.ErrAlreadyExists)

	unsaved := store.NewRecord(FighterType, Fighter{Name: "Dan"})
	expectErr(t, profiles.CreateFor(ctx, again, unsaved), store.ErrInvalidArgument)

	h, err := store.ByOwner(ProfileType, alice)
	if err != nil {
		t.Fatalf("by owner: %v", err)
	}
	got, err := store.Load[Profile](ctx, s, h)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if got.Row.Bio != "left-handed" {
		t.Errorf("expected bio 'left-handed', got %q", got.Row.Bio)
	}

	if _, err := store.ByOwner(ProfileType, store.NewHandle(CityType, "1")); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestLoad_NotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	_, err := store.Load[Fighter](ctx, s, store.NewHandle(FighterType, "42"))
	expectErr(t, err, store.ErrNotFound)

	_, err = store.Load[Fighter](ctx, s, store.NewHandle(FighterType, ""))
	expectErr(t, err, store.ErrNotFound)

	_, err = store.Load[Fighter](ctx, s, store.Handle{})
	expectErr(t, err, store.ErrNotFound)
}

func TestLoad_WrongRowType(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	city := createCity(t, s, "Reixte")

	_, err := store.Load[Fighter](ctx, s, city.Handle())
	expectErr(t, err, store.ErrInvalidArgument)
}

func TestLoad_CorruptData(t *testing.T) {
	ctx := context.Background()
	s, kvs := newStore(t)
	f := createFighter(t, s, Fighter{Name: "Alice", Weight: 60})

	b := kvs.Batch()
	b.HSet(f.Key(), map[string]string{"weight": "heavy"})
	if _, err := b.Exec(ctx); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	_, err := store.Load[Fighter](ctx, s, f.Handle())
	var de *store.DataError
	if !errors.As(err, &de) {
		t.Fatalf("expected DataError, got %v", err)
	}
	if de.Key != "Fighter:1" || de.Field != "weight" {
		t.Errorf("expected Fighter:1 weight, got %s %s", de.Key, de.Field)
	}
}

func TestUpdate_ReScoresSortedIndex(t *testing.T) {
	ctx := context.Background()
	s, kvs := newStore(t)
	w := store.NewWriter[Fighter](s, FighterType)
	f := createFighter(t, s, Fighter{Name: "Alice", Weight: 73.2})
	createFighter(t, s, Fighter{Name: "Bob", Weight: 98})

	idx, err := s.SortedIndex(FighterType, "weight")
	if err != nil {
		t.Fatalf("sorted index: %v", err)
	}
	light, _ := idx.Find(ctx, s, store.Lt(80))
	if ids := handleIDs(t, light); !equalStrings(ids, []string{"1"}) {
		t.Errorf("expected [1] below 80, got %v", ids)
	}

	f.Row.Weight = 99.5
	if err := w.Update(ctx, f, "weight"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if f.ID() != "1" {
		t.Errorf("expected id to stay 1, got %q", f.ID())
	}

	light, _ = idx.Find(ctx, s, store.Lt(80))
	if len(light) != 0 {
		t.Errorf("expected nobody below 80, got %v", light)
	}
	heavy, _ := idx.Find(ctx, s, store.Gte(99))
	if ids := handleIDs(t, heavy); !equalStrings(ids, []string{"1"}) {
		t.Errorf("expected [1] from 99, got %v", ids)
	}
	score, ok, _ := kvs.ZScore(ctx, "z:Fighter:weight", "1")
	if !ok || score != 99.5 {
		t.Errorf("expected score 99.5, got %v (%v)", score, ok)
	}
	if raw, _ := f.Snapshot("weight"); raw != "99.5" {
		t.Errorf("expected snapshot 99.5, got %q", raw)
	}
}

func TestUpdate_MovesIndexEntries(t *testing.T) {
	ctx := context.Background()
	s, kvs := newStore(t)
	w := store.NewWriter[Fighter](s, FighterType)
	reixte := createCity(t, s, "Reixte")
	damtoo := createCity(t, s, "Damtoo")
	f := createFighter(t, s, Fighter{Name: "Alice", City: reixte.Handle()})

	f.Row.Name = "Alicia"
	f.Row.City = damtoo.Handle()
	if err := w.Update(ctx, f, "name", "city"); err != nil {
		t.Fatalf("update: %v", err)
	}

	names, _ := kvs.HGetAll(ctx, "u:Fighter:name")
	if len(names) != 1 || names["Alicia"] != "1" {
		t.Errorf("expected unique map {Alicia: 1}, got %v", names)
	}
	if hasKey(kvs, "i:Fighter:city:1") {
		t.Error("expected old city index to be gone")
	}
	members, _ := kvs.SMembers(ctx, "i:Fighter:city:2")
	if !equalStrings(members, []string{"1"}) {
		t.Errorf("expected [1] in new city index, got %v", members)
	}

	// Unsetting a reference drops its index entry.
	f.Row.City = store.Handle{}
	if err := w.Update(ctx, f, "city"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if hasKey(kvs, "i:Fighter:city:2") {
		t.Error("expected city index to be gone")
	}
	if _, ok := f.Snapshot("city"); ok {
		t.Error("expected no city snapshot")
	}
}

func TestUpdate_UniqueViolation(t *testing.T) {
	ctx := context.Background()
	s, kvs := newStore(t)
	w := store.NewWriter[Fighter](s, FighterType)
	createFighter(t, s, Fighter{Name: "Alice"})
	bob := createFighter(t, s, Fighter{Name: "Bob"})

	bob.Row.Name = "Alice"
	expectErr(t, w.Update(ctx, bob, "name"), store.ErrUniqueViolation)

	hash, _ := kvs.HGetAll(ctx, bob.Key())
	if hash["name"] != "Bob" {
		t.Errorf("expected stored name Bob, got %q", hash["name"])
	}

	// Writing an unchanged unique value passes.
	bob.Row.Name = "Bob"
	if err := w.UpdateAll(ctx, bob); err != nil {
		t.Errorf("expected UpdateAll to pass, got %v", err)
	}
}

func TestUpdate_Preconditions(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	w := store.NewWriter[Fighter](s, FighterType)

	unsaved := store.NewRecord(FighterType, Fighter{Name: "Alice"})
	expectErr(t, w.Update(ctx, unsaved, "name"), store.ErrInvalidArgument)

	f := createFighter(t, s, Fighter{Name: "Bob"})
	expectErr(t, w.Update(ctx, f), store.ErrInvalidArgument)
	expectErr(t, w.Update(ctx, f, "nickname"), store.ErrInvalidArgument)
	expectErr(t, w.Update(ctx, f, "moves"), store.ErrInvalidArgument)

	other := &store.Record[Fighter]{Row: Fighter{Name: "Carol"}}
	if err := w.Create(ctx, other); err != nil {
		t.Fatalf("create with zero record: %v", err)
	}
	if other.Type() != FighterType {
		t.Errorf("expected record bound to Fighter, got %v", other.Type())
	}
}

func TestUpdate_ListedField(t *testing.T) {
	ctx := context.Background()
	s, kvs := newStore(t)
	w := store.NewWriter[Skill](s, SkillType)

	var skills []*store.Record[Skill]
	for _, name := range []string{"jab", "kick", "cross"} {
		r := store.NewRecord(SkillType, Skill{Name: name, Category: "strike"})
		if err := w.Create(ctx, r); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		skills = append(skills, r)
	}

	hs, err := s.FindListed(ctx, SkillType, "category", "strike")
	if err != nil {
		t.Fatalf("find listed: %v", err)
	}
	if len(hs) != 3 || hs[0].ID() != "1" || hs[2].ID() != "3" {
		t.Errorf("expected [1 2 3], got %v", hs)
	}

	// Unchanged listed values keep their position.
	if err := w.UpdateAll(ctx, skills[0]); err != nil {
		t.Fatalf("update: %v", err)
	}
	ids, _ := kvs.LRange(ctx, "l:Skill:category:strike", 0, -1)
	if !equalStrings(ids, []string{"1", "2", "3"}) {
		t.Errorf("expected [1 2 3], got %v", ids)
	}

	skills[1].Row.Category = "kick"
	if err := w.Update(ctx, skills[1], "category"); err != nil {
		t.Fatalf("update: %v", err)
	}
	ids, _ = kvs.LRange(ctx, "l:Skill:category:strike", 0, -1)
	if !equalStrings(ids, []string{"1", "3"}) {
		t.Errorf("expected [1 3], got %v", ids)
	}
	ids, _ = kvs.LRange(ctx, "l:Skill:category:kick", 0, -1)
	if !equalStrings(ids, []string{"2"}) {
		t.Errorf("expected [2], got %v", ids)
	}
}

func TestDelete_RemovesIndexEntries(t *testing.T) {
	ctx := context.Background()
	s, kvs := newStore(t)
	w := store.NewWriter[Fighter](s, FighterType)
	city := createCity(t, s, "Reixte")
	f := createFighter(t, s, Fighter{Name: "Alice", City: city.Handle(), Weight: 60})
	h := f.Handle()

	members, _ := kvs.SMembers(ctx, "i:Fighter:city:1")
	if !equalStrings(members, []string{"1"}) {
		t.Fatalf("expected [1] in city index, got %v", members)
	}

	if err := w.Delete(ctx, f); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if f.Persisted() || f.ID() != "" {
		t.Errorf("expected id to be cleared, got %q", f.ID())
	}

	members, _ = kvs.SMembers(ctx, "i:Fighter:city:1")
	if len(members) != 0 {
		t.Errorf("expected empty city index, got %v", members)
	}
	for _, key := range []string{"Fighter:1", "u:Fighter:name", "z:Fighter:weight"} {
		if hasKey(kvs, key) {
			t.Errorf("expected %s to be gone", key)
		}
	}

	_, err := store.Load[Fighter](ctx, s, h)
	expectErr(t, err, store.ErrNotFound)
}

func TestDelete_NotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	w := store.NewWriter[Fighter](s, FighterType)

	unsaved := store.NewRecord(FighterType, Fighter{Name: "Alice"})
	expectErr(t, w.Delete(ctx, unsaved), store.ErrNotFound)

	f := createFighter(t, s, Fighter{Name: "Bob"})
	loaded, err := store.Load[Fighter](ctx, s, f.Handle())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := w.Delete(ctx, f); err != nil {
		t.Fatalf("delete: %v", err)
	}
	expectErr(t, w.Delete(ctx, loaded), store.ErrNotFound)
}

func TestDelete_DoesNotCascade(t *testing.T) {
	ctx := context.Background()
	s, kvs := newStore(t)
	f := createFighter(t, s, Fighter{Name: "Alice"})

	moves := store.NewOwnedWriter[Move](s, FighterType.Field("moves"))
	m := store.NewRecord(MoveType, Move{Name: "kick"})
	if err := moves.Append(ctx, f.Row.Moves, m); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := store.NewWriter[Fighter](s, FighterType).Delete(ctx, f); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !hasKey(kvs, "Move:1") || !hasKey(kvs, "Fighter:1:moves") {
		t.Error("expected owned data to survive a plain delete")
	}
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	f := createFighter(t, s, Fighter{Name: "Alice"})

	ok, err := s.Exists(ctx, f)
	if err != nil || !ok {
		t.Errorf("expected record to exist, got %v %v", ok, err)
	}
	ok, _ = s.Exists(ctx, store.NewHandle(FighterType, "9"))
	if ok {
		t.Error("expected Fighter:9 not to exist")
	}
	ok, _ = s.Exists(ctx, store.Handle{})
	if ok {
		t.Error("expected unset handle not to exist")
	}
}

func TestRecord_String(t *testing.T) {
	s, _ := newStore(t)
	f := createFighter(t, s, Fighter{Name: "Alice", Weight: 73.2, Active: true})

	want := "Fighter:1{active=1 city= joined=0 name=Alice weight=73.2}"
	if f.String() != want {
		t.Errorf("expected %q, got %q", want, f.String())
	}
}

func TestRecord_ZeroValue(t *testing.T) {
	var f store.Record[Fighter]

	if _, err := f.Values(); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if got := f.String(); !strings.HasPrefix(got, "<nil>{") {
		t.Errorf("expected <nil> prefix, got %q", got)
	}
}

func TestNewRecord_WrongRowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	store.NewRecord(CityType, Fighter{})
}

func ExampleDefine() {
	ctx := context.Background()
	s := store.New(memkv.New(), store.DefaultConfig())
	cities := store.NewWriter[City](s, CityType)

	reixte := store.NewRecord(CityType, City{Name: "Reixte"})
	damtoo := store.NewRecord(CityType, City{Name: "Damtoo"})
	_ = cities.Create(ctx, reixte)
	_ = cities.Create(ctx, damtoo)

	_ = s.FieldWriter(CityType.Field("connections")).Append(ctx, reixte.Row.Connections, damtoo)
	conns, _ := reixte.Row.Connections.Handles(ctx, s)
	fmt.Println(reixte.Handle(), "->", conns)
	// Output: City:1 -> [City:2]
}
