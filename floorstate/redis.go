package floorstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"servicetrack/tracking"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func entryKey(visitID int64) string {
	return fmt.Sprintf("servicetrack:floor:visit:%d", visitID)
}

const (
	floorKey = "servicetrack:floor"
	builtKey = "servicetrack:floor:built"
)

// Ping reports whether Redis answers.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) SetEntry(ctx context.Context, e tracking.FloorEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, entryKey(e.VisitID), data, 0)
	pipe.SAdd(ctx, floorKey, e.VisitID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetEntry(ctx context.Context, visitID int64) (*tracking.FloorEntry, error) {
	data, err := r.client.Get(ctx, entryKey(visitID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e tracking.FloorEntry
	return &e, json.Unmarshal(data, &e)
}

func (r *RedisStore) RemoveEntry(ctx context.Context, visitID int64) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, entryKey(visitID))
	pipe.SRem(ctx, floorKey, visitID)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) VisitIDs(ctx context.Context) ([]int64, error) {
	members, err := r.client.SMembers(ctx, floorKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Exists reports whether the projection has been built. The floor set
// itself vanishes when empty, so a separate marker is kept.
func (r *RedisStore) Exists(ctx context.Context) (bool, error) {
	n, err := r.client.Exists(ctx, builtKey).Result()
	return n > 0, err
}

func (r *RedisStore) MarkBuilt(ctx context.Context) error {
	return r.client.Set(ctx, builtKey, "1", 0).Err()
}

func (r *RedisStore) FlushAll(ctx context.Context) error {
	ids, err := r.VisitIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		r.RemoveEntry(ctx, id)
	}
	return r.client.Del(ctx, floorKey, builtKey).Err()
}
