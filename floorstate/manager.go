package floorstate

import (
	"context"
	"log"
	"sort"
	"time"

	"servicetrack/store"
	"servicetrack/tracking"
)

// Source computes the floor from the event log.
type Source interface {
	Floor() ([]tracking.FloorEntry, error)
	FloorEntry(v *store.Visit) tracking.FloorEntry
}

// Manager keeps a Redis projection of the vehicles on the floor. The event
// log stays authoritative; reads fall back to it whenever Redis is missing
// or unreachable.
type Manager struct {
	src   Source
	redis *RedisStore
}

// NewManager builds a manager. redis may be nil to run SQL-only.
func NewManager(src Source, redis *RedisStore) *Manager {
	return &Manager{src: src, redis: redis}
}

const redisTimeout = 2 * time.Second

func (m *Manager) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisTimeout)
}

// Refresh updates one visit's entry after a recorded event.
func (m *Manager) Refresh(v *store.Visit) {
	if m.redis == nil {
		return
	}
	ctx, cancel := m.ctx()
	defer cancel()
	var err error
	if v.ExitTime == nil {
		err = m.redis.SetEntry(ctx, m.src.FloorEntry(v))
	} else {
		err = m.redis.RemoveEntry(ctx, v.ID)
	}
	if err != nil {
		log.Printf("floorstate: refresh visit %d: %v", v.ID, err)
	}
}

// Floor returns the open visits oldest first, from Redis when available.
func (m *Manager) Floor() ([]tracking.FloorEntry, error) {
	if m.redis != nil {
		if entries, ok := m.floorFromRedis(); ok {
			return entries, nil
		}
	}
	return m.src.Floor()
}

func (m *Manager) floorFromRedis() ([]tracking.FloorEntry, bool) {
	ctx, cancel := m.ctx()
	defer cancel()
	built, err := m.redis.Exists(ctx)
	if err != nil || !built {
		return nil, false
	}
	ids, err := m.redis.VisitIDs(ctx)
	if err != nil {
		return nil, false
	}
	entries := make([]tracking.FloorEntry, 0, len(ids))
	for _, id := range ids {
		e, err := m.redis.GetEntry(ctx, id)
		if err != nil {
			return nil, false
		}
		if e != nil {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].EntryTime.Equal(entries[j].EntryTime) {
			return entries[i].VisitID < entries[j].VisitID
		}
		return entries[i].EntryTime.Before(entries[j].EntryTime)
	})
	return entries, true
}

// SyncRedisFromSQL rebuilds the projection from the event log. Called on
// startup and after a reset.
func (m *Manager) SyncRedisFromSQL() error {
	if m.redis == nil {
		return nil
	}
	entries, err := m.src.Floor()
	if err != nil {
		return err
	}
	ctx, cancel := m.ctx()
	defer cancel()
	if err := m.redis.FlushAll(ctx); err != nil {
		return err
	}
	for _, e := range entries {
		if err := m.redis.SetEntry(ctx, e); err != nil {
			log.Printf("floorstate: sync visit %d: %v", e.VisitID, err)
		}
	}
	if err := m.redis.MarkBuilt(ctx); err != nil {
		return err
	}
	log.Printf("floorstate: synced %d open visits to redis", len(entries))
	return nil
}

// Healthy reports whether the projection backend answers.
func (m *Manager) Healthy() bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := m.ctx()
	defer cancel()
	return m.redis.Ping(ctx) == nil
}
