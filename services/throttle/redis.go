package throttle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore shares throttle state between nodes. Failure counters are kept
// until cleared, like MemoryStore. A locked entry expires ttl after its last
// write, so ttl must be at least the lockout duration.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "login:throttle:", ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) (State, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !st.LockedUntil.IsZero() {
		ttl = r.ttl
	}
	return r.client.Set(ctx, r.prefix+key, raw, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
