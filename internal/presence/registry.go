package presence

import (
	"context"
	"sync"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/config"
	"github.com/redis/go-redis/v9"
)

// Registry tracks live connections per user. An entry expires unless its
// connection keeps sending heartbeats, so connections of a crashed instance
// eventually stop counting as live.
type Registry interface {
	Register(ctx context.Context, userID, connID string) error
	Heartbeat(ctx context.Context, userID, connID string) error
	// Unregister removes the connection and reports how many remain live.
	Unregister(ctx context.Context, userID, connID string) (int, error)
	Live(ctx context.Context, userID string) (int, error)
}

// MemoryRegistry is a process-local Registry.
type MemoryRegistry struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	conns map[string]map[string]time.Time // userID -> connID -> expiry
}

func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		ttl:   ttl,
		now:   time.Now,
		conns: make(map[string]map[string]time.Time),
	}
}

func (r *MemoryRegistry) Register(_ context.Context, userID, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[userID] == nil {
		r.conns[userID] = make(map[string]time.Time)
	}
	r.conns[userID][connID] = r.now().Add(r.ttl)
	return nil
}

func (r *MemoryRegistry) Heartbeat(ctx context.Context, userID, connID string) error {
	return r.Register(ctx, userID, connID)
}

func (r *MemoryRegistry) Unregister(_ context.Context, userID, connID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns[userID], connID)
	return r.liveLocked(userID), nil
}

func (r *MemoryRegistry) Live(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveLocked(userID), nil
}

func (r *MemoryRegistry) liveLocked(userID string) int {
	now := r.now()
	for id, exp := range r.conns[userID] {
		if !exp.After(now) {
			delete(r.conns[userID], id)
		}
	}
	n := len(r.conns[userID])
	if n == 0 {
		delete(r.conns, userID)
	}
	return n
}

// RedisRegistry shares connection state across instances: one key with a
// TTL per connection plus a set of connection ids per user.
type RedisRegistry struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRegistry(rdb *redis.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, ttl: ttl}
}

func (r *RedisRegistry) Register(ctx context.Context, userID, connID string) error {
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.PresenceConnKey(connID), userID, r.ttl)
	pipe.SAdd(ctx, config.CacheKey.PresenceUserConnsKey(userID), connID)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisRegistry) Heartbeat(ctx context.Context, userID, connID string) error {
	ok, err := r.rdb.Expire(ctx, config.CacheKey.PresenceConnKey(connID), r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		// Key already expired (e.g. a long GC pause); re-register.
		return r.Register(ctx, userID, connID)
	}
	return nil
}

func (r *RedisRegistry) Unregister(ctx context.Context, userID, connID string) (int, error) {
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, config.CacheKey.PresenceConnKey(connID))
	pipe.SRem(ctx, config.CacheKey.PresenceUserConnsKey(userID), connID)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return r.Live(ctx, userID)
}

// Live counts the user's connections whose keys have not expired and prunes
// the rest from the user's set.
func (r *RedisRegistry) Live(ctx context.Context, userID string) (int, error) {
	setKey := config.CacheKey.PresenceUserConnsKey(userID)
	ids, err := r.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := r.rdb.Pipeline()
	checks := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		checks[i] = pipe.Exists(ctx, config.CacheKey.PresenceConnKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	live := 0
	var stale []any
	for i, cmd := range checks {
		if cmd.Val() > 0 {
			live++
		} else {
			stale = append(stale, ids[i])
		}
	}
	if len(stale) > 0 {
		if err := r.rdb.SRem(ctx, setKey, stale...).Err(); err != nil {
			return live, err
		}
	}
	return live, nil
}
