package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const registryTTL = 30 * time.Minute

// Registry records session metadata (id, model, lifecycle state) in redis so
// external tooling can see live sessions. It never stores conversation
// content. All methods are best-effort and safe on a nil receiver, so a
// missing redis simply disables the feature.
type Registry struct {
	rdb *redis.Client
}

// NewRegistry connects to redis if an address is configured and reachable;
// otherwise it returns nil and the session runs without a registry.
func NewRegistry(addr, password string) *Registry {
	if addr == "" {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil
	}
	return &Registry{rdb: rdb}
}

// Add registers a new session.
func (r *Registry) Add(ctx context.Context, id, model string) {
	if r == nil {
		return
	}
	r.rdb.HSet(ctx, "session:"+id, map[string]any{
		"created_at": time.Now().Format(time.RFC3339),
		"model":      model,
		"state":      StateIdle.String(),
	})
	r.rdb.SAdd(ctx, "active_sessions", id)
	r.rdb.Expire(ctx, "session:"+id, registryTTL)
}

// SetState records a lifecycle transition.
func (r *Registry) SetState(ctx context.Context, id string, st State) {
	if r == nil {
		return
	}
	r.rdb.HSet(ctx, "session:"+id, "state", st.String())
}

// Remove deletes the session entry after close.
func (r *Registry) Remove(ctx context.Context, id string) {
	if r == nil {
		return
	}
	r.rdb.Del(ctx, "session:"+id)
	r.rdb.SRem(ctx, "active_sessions", id)
}

// Close releases the redis connection.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	_ = r.rdb.Close()
}
