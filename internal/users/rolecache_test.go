package users

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/authz"
)

type countingRoles struct {
	calls atomic.Int32
	role  authz.Role
	err   error
	delay time.Duration
}

func (c *countingRoles) LoadRole(context.Context, string) (authz.Role, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	return c.role, c.err
}

func newCache(t *testing.T, next authz.PrincipalStore) (*RoleCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRoleCache(client, next, time.Minute, nil), mr
}

func TestRoleCacheHitsStoreOnce(t *testing.T) {
	store := &countingRoles{role: authz.RoleModerator}
	cache, mr := newCache(t, store)

	for i := 0; i < 3; i++ {
		role, err := cache.LoadRole(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, authz.RoleModerator, role)
	}
	assert.EqualValues(t, 1, store.calls.Load())
	assert.True(t, mr.Exists(roleKeyPrefix+"u1"))
}

func TestRoleCacheExpires(t *testing.T) {
	store := &countingRoles{role: authz.RoleMember}
	cache, mr := newCache(t, store)

	_, err := cache.LoadRole(context.Background(), "u1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = cache.LoadRole(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.calls.Load())
}

func TestRoleCacheInvalidate(t *testing.T) {
	store := &countingRoles{role: authz.RoleMember}
	cache, _ := newCache(t, store)

	_, err := cache.LoadRole(context.Background(), "u1")
	require.NoError(t, err)
	store.role = authz.RoleAdmin
	require.NoError(t, cache.Invalidate(context.Background(), "u1"))

	role, err := cache.LoadRole(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, role)
}

func TestRoleCacheDoesNotCacheMissingPrincipal(t *testing.T) {
	store := &countingRoles{err: authz.ErrPrincipalNotFound}
	cache, mr := newCache(t, store)

	_, err := cache.LoadRole(context.Background(), "gone")
	assert.ErrorIs(t, err, authz.ErrPrincipalNotFound)
	assert.False(t, mr.Exists(roleKeyPrefix+"gone"))
}

func TestRoleCacheCoalescesConcurrentMisses(t *testing.T) {
	store := &countingRoles{role: authz.RoleMember, delay: 50 * time.Millisecond}
	cache, _ := newCache(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			role, err := cache.LoadRole(context.Background(), "u1")
			assert.NoError(t, err)
			assert.Equal(t, authz.RoleMember, role)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, store.calls.Load(), int32(2))
}

func TestRoleCacheFallsBackWhenRedisDown(t *testing.T) {
	store := &countingRoles{role: authz.RoleMember}
	cache, mr := newCache(t, store)
	mr.Close()

	role, err := cache.LoadRole(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleMember, role)
}

// gatedRoles blocks inside LoadRole until released, reporting entry first.
type gatedRoles struct {
	mu      sync.Mutex
	role    authz.Role
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRoles) LoadRole(context.Context, string) (authz.Role, error) {
	g.mu.Lock()
	role := g.role
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()
	if first {
		close(g.entered)
		<-g.release
	}
	return role, nil
}

func (g *gatedRoles) set(role authz.Role) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.role = role
}

func TestRoleCacheLoadStartedBeforeInvalidateIsNotCached(t *testing.T) {
	store := &gatedRoles{role: authz.RoleAdmin, entered: make(chan struct{}), release: make(chan struct{})}
	cache, mr := newCache(t, store)

	done := make(chan authz.Role)
	go func() {
		role, err := cache.LoadRole(context.Background(), "u1")
		assert.NoError(t, err)
		done <- role
	}()

	<-store.entered
	store.set(authz.RoleMember)
	require.NoError(t, cache.Invalidate(context.Background(), "u1"))
	close(store.release)

	assert.Equal(t, authz.RoleAdmin, <-done)
	assert.False(t, mr.Exists(roleKeyPrefix+"u1"), "old role must not be written back")

	role, err := cache.LoadRole(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleMember, role)
	assert.True(t, mr.Exists(roleKeyPrefix+"u1"))
}

func TestRoleCacheInvalidateReportsRedisFailure(t *testing.T) {
	cache, mr := newCache(t, &countingRoles{role: authz.RoleMember})
	mr.Close()
	assert.ErrorContains(t, cache.Invalidate(context.Background(), "u1"), "invalidate role cache")
}
