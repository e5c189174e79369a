package floorstate

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"servicetrack/store"
	"servicetrack/tracking"
)

type fakeSource struct {
	entries []tracking.FloorEntry
	calls   int
}

func (f *fakeSource) Floor() ([]tracking.FloorEntry, error) {
	f.calls++
	return f.entries, nil
}

func (f *fakeSource) FloorEntry(v *store.Visit) tracking.FloorEntry {
	return tracking.FloorEntry{VisitID: v.ID, VehicleNumber: v.VehicleNumber, EntryTime: v.EntryTime}
}

func unreachableRedis(t *testing.T) *RedisStore {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client)
}

func TestFloorWithoutRedisUsesSource(t *testing.T) {
	src := &fakeSource{entries: []tracking.FloorEntry{{VisitID: 1, VehicleNumber: "KA01"}}}
	m := NewManager(src, nil)

	got, err := m.Floor()
	if err != nil {
		t.Fatalf("floor: %v", err)
	}
	if len(got) != 1 || got[0].VehicleNumber != "KA01" {
		t.Errorf("floor = %+v", got)
	}
	if m.Healthy() {
		t.Error("manager without redis should not report healthy")
	}
	if err := m.SyncRedisFromSQL(); err != nil {
		t.Errorf("sync without redis: %v", err)
	}
	// Refresh is a no-op without redis.
	m.Refresh(&store.Visit{ID: 1})
}

func TestFloorFallsBackWhenRedisDown(t *testing.T) {
	src := &fakeSource{entries: []tracking.FloorEntry{
		{VisitID: 3, VehicleNumber: "MH12"},
		{VisitID: 4, VehicleNumber: "MH13"},
	}}
	m := NewManager(src, unreachableRedis(t))

	// Writes fail quietly.
	m.Refresh(&store.Visit{ID: 3, VehicleNumber: "MH12"})

	got, err := m.Floor()
	if err != nil {
		t.Fatalf("floor: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("floor = %d entries, want 2", len(got))
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1", src.calls)
	}
	if m.Healthy() {
		t.Error("unreachable redis should not report healthy")
	}
	if err := m.SyncRedisFromSQL(); err == nil {
		t.Error("sync against unreachable redis should fail")
	}
}

func TestEntryKey(t *testing.T) {
	if got := entryKey(42); got != "servicetrack:floor:visit:42" {
		t.Errorf("entryKey = %q", got)
	}
}
