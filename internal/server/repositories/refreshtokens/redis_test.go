package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisRepository) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisRepository(client, "ak:")
}

// The store only accepts a single-node client; its scripts span keys in
// different cluster slots.
var _ func(*redis.Client, string) *RedisRepository = NewRedisRepository

func TestRedis_ScriptWritesRecordAndOwnerKeys(t *testing.T) {
	mr, repo := newTestRedis(t)
	ctx := context.Background()

	_, err := repo.Insert(ctx, "u9", "tok-keys", time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.True(t, mr.Exists(repo.recordKey("tok-keys")))
	assert.True(t, mr.Exists(repo.ownerKey("u9")))
	assert.NotEqual(t, repo.recordKey("tok-keys"), repo.ownerKey("u9"))
}

func TestRedis_InsertAndFind(t *testing.T) {
	_, repo := newTestRedis(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	rec, err := repo.Insert(ctx, "u1", "tok-1", expires)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Revoked)

	got, err := repo.FindByValue(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "tok-1", got.Token)
	assert.Equal(t, expires.UnixMilli(), got.ExpiresAt.UnixMilli())
	assert.False(t, got.Revoked)
}

func TestRedis_InsertDuplicate(t *testing.T) {
	_, repo := newTestRedis(t)
	ctx := context.Background()

	_, err := repo.Insert(ctx, "u1", "tok-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = repo.Insert(ctx, "u2", "tok-1", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, common.ErrDuplicateToken)
}

func TestRedis_FindNotFound(t *testing.T) {
	_, repo := newTestRedis(t)

	_, err := repo.FindByValue(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRedis_RevokeIsIdempotent(t *testing.T) {
	mr, repo := newTestRedis(t)
	ctx := context.Background()

	rec, err := repo.Insert(ctx, "u1", "tok-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := repo.Revoke(ctx, rec)
		require.NoError(t, err)
		assert.True(t, got.Revoked)
	}

	stored, err := repo.FindByValue(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, stored.Revoked)

	// revoking a record that no longer exists must not resurrect it
	mr.Del(repo.recordKey("tok-1"))
	_, err = repo.Revoke(ctx, rec)
	require.NoError(t, err)
	assert.False(t, mr.Exists(repo.recordKey("tok-1")))
}

func TestRedis_RevokeAllForOwner(t *testing.T) {
	_, repo := newTestRedis(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	for _, tok := range []string{"a1", "a2", "a3"} {
		_, err := repo.Insert(ctx, "alice", tok, expires)
		require.NoError(t, err)
	}
	_, err := repo.Insert(ctx, "bob", "b1", expires)
	require.NoError(t, err)

	require.NoError(t, repo.RevokeAllForOwner(ctx, "alice"))

	for _, tok := range []string{"a1", "a2", "a3"} {
		rec, err := repo.FindByValue(ctx, tok)
		require.NoError(t, err)
		assert.True(t, rec.Revoked, tok)
	}
	rec, err := repo.FindByValue(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, rec.Revoked)

	require.NoError(t, repo.RevokeAllForOwner(ctx, "nobody"))
}

func TestRedis_RotateIsSingleUse(t *testing.T) {
	_, repo := newTestRedis(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	old, err := repo.Insert(ctx, "u1", "r1", expires)
	require.NoError(t, err)

	next, err := repo.Rotate(ctx, old, "r2", expires)
	require.NoError(t, err)
	assert.Equal(t, "u1", next.UserID)
	assert.NotEqual(t, old.ID, next.ID)

	stored, err := repo.FindByValue(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, stored.Revoked)

	_, err = repo.Rotate(ctx, old, "r3", expires)
	assert.ErrorIs(t, err, common.ErrTokenRevoked)

	_, err = repo.FindByValue(ctx, "r3")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	// the replacement is tracked under the owner and revoked with it
	require.NoError(t, repo.RevokeAllForOwner(ctx, "u1"))
	stored, err = repo.FindByValue(ctx, "r2")
	require.NoError(t, err)
	assert.True(t, stored.Revoked)
}

func TestRedis_RotateMissingAndDuplicate(t *testing.T) {
	_, repo := newTestRedis(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	old, err := repo.Insert(ctx, "u1", "r1", expires)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, "u1", "taken", expires)
	require.NoError(t, err)

	_, err = repo.Rotate(ctx, old, "taken", expires)
	assert.ErrorIs(t, err, common.ErrDuplicateToken)

	stored, err := repo.FindByValue(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, stored.Revoked, "failed rotation must leave the old record active")

	_, err = repo.Rotate(ctx, &models.RefreshToken{ID: "x", UserID: "u1", Token: "ghost"}, "r9", expires)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRedis_ConcurrentRotateHasOneWinner(t *testing.T) {
	_, repo := newTestRedis(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	old, err := repo.Insert(ctx, "u1", "r1", expires)
	require.NoError(t, err)

	const n = 16
	var wins, revoked atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Rotate(ctx, old, fmt.Sprintf("next-%d", i), expires)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, common.ErrTokenRevoked):
				revoked.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, n-1, revoked.Load())
}

func TestRedis_Purge(t *testing.T) {
	mr, repo := newTestRedis(t)
	ctx := context.Background()
	now := time.Now()

	_, err := repo.Insert(ctx, "u1", "stale", now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, "u1", "live", now.Add(time.Hour))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, "u2", "evicted", now.Add(time.Hour))
	require.NoError(t, err)
	mr.Del(repo.recordKey("evicted"))

	n, err := repo.Purge(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.FindByValue(ctx, "stale")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = repo.FindByValue(ctx, "live")
	assert.NoError(t, err)

	assert.False(t, mr.Exists(repo.ownerKey("u2")), "dangling index entry must be dropped")
}
