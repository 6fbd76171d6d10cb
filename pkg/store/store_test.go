package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sample(id, foodType string) *restaurant.Restaurant {
	return &restaurant.Restaurant{
		IkyuID:   id,
		Name:     "Restaurant " + id,
		FoodType: foodType,
		Rating:   restaurant.Float(4.0),
		Availability: restaurant.Availability{
			Lunch:  map[string]int{"2024-03-17": 3000},
			Status: restaurant.ReservationStatus{After: "2024-03-17", LikelyOpen: true},
		},
	}
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs, err := NewFile(dir, discardLogger())
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	repo := NewRepository(fs, Policy{}, discardLogger())
	if err := repo.Put(ctx, sample("1", "寿司")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	group := restaurant.LocationGroup{Locations: []string{"銀座", "東銀座"}}
	if err := repo.PutGroup(ctx, group, []string{"1"}); err != nil {
		t.Fatalf("PutGroup() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "groups", "銀座_東銀座.json")); err != nil {
		t.Errorf("group file missing: %v", err)
	}

	reopened, err := NewFile(dir, discardLogger())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	got, err := NewRepository(reopened, Policy{}, discardLogger()).Restaurant(ctx, "1")
	if err != nil {
		t.Fatalf("Restaurant() error = %v", err)
	}
	if got.FoodType != "寿司" || got.LastUpdated.IsZero() {
		t.Errorf("Restaurant() = %+v", got)
	}
	ids, err := reopened.GroupIDs(ctx, group.Key())
	if err != nil || len(ids) != 1 || ids[0] != "1" {
		t.Errorf("GroupIDs() = %v, %v", ids, err)
	}
	if _, err := reopened.GroupIDs(ctx, "nowhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GroupIDs(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSnapshotSkipsBadRecords(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	repo := NewRepository(mem, Policy{}, discardLogger())

	if err := repo.Put(ctx, sample("good", "寿司")); err != nil {
		t.Fatal(err)
	}
	if err := mem.PutRestaurant(ctx, "bad", []byte(`{"ikyu_id":"bad","name":"x"}`)); err != nil {
		t.Fatal(err)
	}
	ginza := restaurant.LocationGroup{Locations: []string{"銀座"}}
	asakusa := restaurant.LocationGroup{Locations: []string{"浅草"}}
	if err := repo.PutGroup(ctx, ginza, []string{"good", "bad", "missing"}); err != nil {
		t.Fatal(err)
	}

	snap, err := repo.Snapshot(ctx, []restaurant.LocationGroup{ginza, asakusa})
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if got := snap.Restaurants(ginza.Key()); len(got) != 1 || got[0].IkyuID != "good" {
		t.Errorf("Restaurants(ginza) = %v", got)
	}
	if got := snap.Restaurants(asakusa.Key()); len(got) != 0 {
		t.Errorf("Restaurants(asakusa) = %v, want empty", got)
	}
	if snap.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", snap.Skipped)
	}

	all, err := repo.All(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("All() = %d records, %v; want 1", len(all), err)
	}
}

func TestPolicyNeedsRefresh(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, jst)
	policy := Policy{Location: jst}

	tests := []struct {
		name    string
		updated time.Time
		status  restaurant.ReservationStatus
		maxAge  time.Duration
		want    bool
	}{
		{"same day", now.Add(-2 * time.Hour), restaurant.ReservationStatus{After: "2024-03-17", LikelyOpen: true}, 0, false},
		{"yesterday", now.Add(-24 * time.Hour), restaurant.ReservationStatus{After: "2024-03-17", LikelyOpen: true}, 0, true},
		{"terminal status", now.Add(-72 * time.Hour), restaurant.ReservationStatus{After: "2024-03-17"}, 0, false},
		{"closed before trip", now.Add(-72 * time.Hour), restaurant.ReservationStatus{After: "2024-03-01"}, 0, true},
		{"never updated", time.Time{}, restaurant.ReservationStatus{After: "2024-03-17", LikelyOpen: true}, 0, true},
		{"max age", now.Add(-2 * time.Hour), restaurant.ReservationStatus{After: "2024-03-17", LikelyOpen: true}, time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sample("1", "寿司")
			r.LastUpdated = tt.updated
			r.Availability.Status = tt.status
			p := policy
			p.MaxAge = tt.maxAge
			if got := p.NeedsRefresh(r, "2024-03-17", now); got != tt.want {
				t.Errorf("NeedsRefresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRepositoryFresh(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemory(), Policy{Location: time.UTC}, discardLogger())
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	if _, ok := repo.Fresh(ctx, "1", "2024-03-17"); ok {
		t.Error("Fresh() on empty store = true")
	}
	if err := repo.Put(ctx, sample("1", "寿司")); err != nil {
		t.Fatal(err)
	}
	if _, ok := repo.Fresh(ctx, "1", "2024-03-17"); !ok {
		t.Error("Fresh() after same-day Put = false")
	}
	now = now.Add(48 * time.Hour)
	if r, ok := repo.Fresh(ctx, "1", "2024-03-17"); ok || r == nil {
		t.Errorf("Fresh() two days later = %v, %v; want stale record", r, ok)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Config{Backend: "etcd"}, discardLogger()); err == nil {
		t.Error("Open(etcd) succeeded")
	}
	s, err := Open(context.Background(), Config{Backend: BackendMemory}, discardLogger())
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// checkBackend runs the Store contract against s. IDs are prefixed so shared
// databases can be reused between runs.
func checkBackend(t *testing.T, s Store, prefix string) {
	t.Helper()
	ctx := context.Background()
	id := prefix + "1"

	if _, err := s.Restaurant(ctx, prefix+"missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Restaurant(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := s.GroupIDs(ctx, prefix+"nowhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GroupIDs(missing) error = %v, want ErrNotFound", err)
	}

	repo := NewRepository(s, Policy{}, discardLogger())
	first := sample(id, "寿司")
	if err := repo.Put(ctx, first); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	second := sample(id, "天ぷら")
	if err := repo.Put(ctx, second); err != nil {
		t.Fatalf("Put(again) error = %v", err)
	}
	data, err := s.Restaurant(ctx, id)
	if err != nil {
		t.Fatalf("Restaurant() error = %v", err)
	}
	got, err := restaurant.Decode(id, data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.FoodType != "天ぷら" {
		t.Errorf("FoodType = %q, want the second write", got.FoodType)
	}

	if err := s.PutRestaurant(ctx, prefix+"2", []byte(`{"ikyu_id":"x"}`)); err != nil {
		t.Fatalf("PutRestaurant() error = %v", err)
	}
	ids, err := s.RestaurantIDs(ctx)
	if err != nil {
		t.Fatalf("RestaurantIDs() error = %v", err)
	}
	var mine []string
	for _, v := range ids {
		if len(v) > len(prefix) && v[:len(prefix)] == prefix {
			mine = append(mine, v)
		}
	}
	if want := []string{prefix + "1", prefix + "2"}; len(mine) != 2 || mine[0] != want[0] || mine[1] != want[1] {
		t.Errorf("RestaurantIDs() = %v, want %v", mine, want)
	}

	key := prefix + "銀座_東銀座"
	if err := s.PutGroup(ctx, key, []string{id, prefix + "2"}); err != nil {
		t.Fatalf("PutGroup() error = %v", err)
	}
	if err := s.PutGroup(ctx, key, nil); err != nil {
		t.Fatalf("PutGroup(nil) error = %v", err)
	}
	group, err := s.GroupIDs(ctx, key)
	if err != nil {
		t.Fatalf("GroupIDs() error = %v", err)
	}
	if group == nil || len(group) != 0 {
		t.Errorf("GroupIDs() = %#v, want empty non-nil list", group)
	}
}

func TestMemoryBackend(t *testing.T) {
	checkBackend(t, NewMemory(), "")
}

func TestFileBackend(t *testing.T) {
	fs, err := NewFile(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	checkBackend(t, fs, "")
}

func TestFileStoreBatchesWrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewFile(dir, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	repo := NewRepository(fs, Policy{}, discardLogger())
	for _, id := range []string{"1", "2", "3"} {
		if err := repo.Put(ctx, sample(id, "寿司")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, restaurantsFile)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("restaurants file written before flush: %v", err)
	}
	if err := repo.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := repo.Flush(ctx); err != nil {
		t.Fatalf("Flush(clean) error = %v", err)
	}
	if fs.writes != 1 {
		t.Errorf("writes = %d, want 1", fs.writes)
	}

	if err := repo.Put(ctx, sample("4", "天ぷら")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	reopened, err := NewFile(dir, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	ids, err := reopened.RestaurantIDs(ctx)
	if err != nil || len(ids) != 4 {
		t.Errorf("RestaurantIDs() after Close = %v, %v; want 4 ids", ids, err)
	}
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisClient(rdb, "test")
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	checkBackend(t, s, "")

	if !mr.Exists("test:restaurant:1") || !mr.Exists("test:group:銀座_東銀座") {
		t.Errorf("keys = %v, want prefixed restaurant and group keys", mr.Keys())
	}
	members, err := mr.Members("test:restaurants")
	if err != nil || len(members) != 2 {
		t.Errorf("index members = %v, %v", members, err)
	}
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	s, err := Open(ctx, Config{Backend: BackendRedis, RedisURL: "redis://" + mr.Addr() + "/0"}, discardLogger())
	if err != nil {
		t.Fatalf("Open(redis) error = %v", err)
	}
	if err := s.PutGroup(ctx, "渋谷", []string{"9"}); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("tokyodine:group:渋谷") {
		t.Errorf("keys = %v, want default prefix", mr.Keys())
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	addr := mr.Addr()
	mr.Close()
	if _, err := Open(ctx, Config{Backend: BackendRedis, RedisURL: "redis://" + addr}, discardLogger()); err == nil {
		t.Error("Open(unreachable redis) succeeded")
	}
	if _, err := Open(ctx, Config{Backend: BackendRedis}, discardLogger()); err == nil {
		t.Error("Open(redis without URL) succeeded")
	}
}

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	checkBackend(t, s, fmt.Sprintf("test-%d-", time.Now().UnixNano()))
}
