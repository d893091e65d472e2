package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/gatehouse-io/gatehouse/internal/authz"
)

const (
	roleKeyPrefix = "authz:role:"
	// roleGenPrefix counts invalidations per user. A load only writes back
	// when the counter is unchanged since the load started.
	roleGenPrefix = "authz:role-gen:"
	roleGenTTL    = 24 * time.Hour
)

var errStaleLoad = errors.New("users: role changed during load")

// RoleCache fronts a PrincipalStore with a short-lived Redis copy of each
// user's role. Concurrent misses for the same user share one store lookup.
type RoleCache struct {
	client *redis.Client
	next   authz.PrincipalStore
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewRoleCache wraps next. A non-positive ttl disables caching.
func NewRoleCache(client *redis.Client, next authz.PrincipalStore, ttl time.Duration, logger *slog.Logger) *RoleCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleCache{client: client, next: next, ttl: ttl, logger: logger}
}

// LoadRole implements authz.PrincipalStore.
func (c *RoleCache) LoadRole(ctx context.Context, id string) (authz.Role, error) {
	if c.client == nil || c.ttl <= 0 {
		return c.next.LoadRole(ctx, id)
	}
	cached, err := c.client.Get(ctx, roleKeyPrefix+id).Result()
	switch {
	case err == nil:
		return authz.Role(cached), nil
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "role cache read", slog.String("user", id), slog.Any("error", err))
	}

	gen, err := c.client.Get(ctx, roleGenPrefix+id).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "role cache generation read", slog.String("user", id), slog.Any("error", err))
		return c.next.LoadRole(ctx, id)
	}

	// Callers arriving after an invalidation never join a load that began before it.
	v, err, _ := c.group.Do(id+"@"+strconv.FormatInt(gen, 10), func() (any, error) {
		role, err := c.next.LoadRole(ctx, id)
		if err != nil {
			return authz.Role(""), err
		}
		c.store(ctx, id, gen, role)
		return role, nil
	})
	if err != nil {
		return "", err
	}
	return v.(authz.Role), nil
}

// store caches role unless id was invalidated after generation gen was read.
func (c *RoleCache) store(ctx context.Context, id string, gen int64, role authz.Role) {
	genKey := roleGenPrefix + id
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleLoad
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, roleKeyPrefix+id, string(role), c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleLoad), errors.Is(err, redis.TxFailedErr):
		c.logger.DebugContext(ctx, "role cache write skipped", slog.String("user", id))
	default:
		c.logger.WarnContext(ctx, "role cache write", slog.String("user", id), slog.Any("error", err))
	}
}

// Invalidate drops the cached role of id and fences off loads already in
// flight, so none of them can write the old role back.
func (c *RoleCache) Invalidate(ctx context.Context, id string) error {
	if c.client == nil {
		return nil
	}
	genKey := roleGenPrefix + id
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, roleGenTTL)
		pipe.Del(ctx, roleKeyPrefix+id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("users: invalidate role cache: %w", err)
	}
	return nil
}
