package refreshtokens

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound  int64 = 0
	rotateStatusRevoked   int64 = 1
	rotateStatusDuplicate int64 = 2
	rotateStatusRotated   int64 = 3
)

// DefaultRetention is how long a record stays in Redis after its expiry,
// so that expired and replayed tokens are still recognised until Purge.
const DefaultRetention = 24 * time.Hour

// KEYS[1] record, KEYS[2] owner index.
// ARGV id, user_id, token, expires_at, created_at, digest, evict_at.
const insertScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "id", ARGV[1], "user_id", ARGV[2], "token", ARGV[3],
  "expires_at", ARGV[4], "created_at", ARGV[5], "revoked", "0")
redis.call("PEXPIREAT", KEYS[1], ARGV[7])
redis.call("SADD", KEYS[2], ARGV[6])
return 1
`

// KEYS[1] old record, KEYS[2] new record, KEYS[3] owner index.
// ARGV as in insertScript.
const rotateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 1
end
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 2
end
redis.call("HSET", KEYS[1], "revoked", "1")
redis.call("HSET", KEYS[2], "id", ARGV[1], "user_id", ARGV[2], "token", ARGV[3],
  "expires_at", ARGV[4], "created_at", ARGV[5], "revoked", "0")
redis.call("PEXPIREAT", KEYS[2], ARGV[7])
redis.call("SADD", KEYS[3], ARGV[6])
return 3
`

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1")
return 1
`

// KEYS[1] owner index, ARGV[1] record key prefix.
const revokeAllScript = `
local n = 0
for _, digest in ipairs(redis.call("SMEMBERS", KEYS[1])) do
  local key = ARGV[1] .. digest
  if redis.call("EXISTS", key) == 1 then
    redis.call("HSET", key, "revoked", "1")
    n = n + 1
  else
    redis.call("SREM", KEYS[1], digest)
  end
end
return n
`

var (
	insertLua    = redis.NewScript(insertScript)
	rotateLua    = redis.NewScript(rotateScript)
	revokeLua    = redis.NewScript(revokeScript)
	revokeAllLua = redis.NewScript(revokeAllScript)
)

// RedisRepository keeps each record in a hash keyed by the SHA-256 of the
// token value, plus a per-owner set of those digests. Every mutation is a
// single Lua script, which is what makes Rotate atomic.
//
// The scripts touch a record key and an owner key that hash to different
// cluster slots, so the store runs against a single node (or a
// primary with replicas) and takes a *redis.Client, not a cluster client.
type RedisRepository struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisRepository returns a repository storing its keys under prefix.
func NewRedisRepository(rdb *redis.Client, prefix string) *RedisRepository {
	return &RedisRepository{
		rdb:       rdb,
		prefix:    prefix,
		retention: DefaultRetention,
		now:       time.Now,
	}
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *RedisRepository) recordPrefix() string { return r.prefix + "rt:" }

func (r *RedisRepository) recordKey(token string) string { return r.recordPrefix() + digest(token) }

func (r *RedisRepository) ownerKey(userID string) string { return r.prefix + "rtu:" + userID }

func (r *RedisRepository) newRecord(userID, token string, expiresAt time.Time) (*models.RefreshToken, []any) {
	rec := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: r.now(),
	}
	args := []any{
		rec.ID,
		rec.UserID,
		rec.Token,
		rec.ExpiresAt.UnixMilli(),
		rec.CreatedAt.UnixMilli(),
		digest(token),
		rec.ExpiresAt.Add(r.retention).UnixMilli(),
	}
	return rec, args
}

// Insert stores a new active record.
func (r *RedisRepository) Insert(ctx context.Context, userID string, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	rec, args := r.newRecord(userID, token, expiresAt)

	created, err := insertLua.Run(ctx, r.rdb, []string{r.recordKey(token), r.ownerKey(userID)}, args...).Int64()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if created == 0 {
		return nil, common.ErrDuplicateToken
	}
	return rec, nil
}

// FindByValue returns the record for token or common.ErrorNotFound.
func (r *RedisRepository) FindByValue(ctx context.Context, token string) (*models.RefreshToken, error) {
	fields, err := r.rdb.HGetAll(ctx, r.recordKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}
	return decodeRecord(fields)
}

func decodeRecord(fields map[string]string) (*models.RefreshToken, error) {
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis error: bad expires_at: %w", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis error: bad created_at: %w", err)
	}
	return &models.RefreshToken{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		Token:     fields["token"],
		ExpiresAt: time.UnixMilli(expires),
		CreatedAt: time.UnixMilli(created),
		Revoked:   fields["revoked"] == "1",
	}, nil
}

// Revoke sets the revoked flag on rec if the record still exists.
func (r *RedisRepository) Revoke(ctx context.Context, rec *models.RefreshToken) (*models.RefreshToken, error) {
	if err := revokeLua.Run(ctx, r.rdb, []string{r.recordKey(rec.Token)}).Err(); err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	revoked := *rec
	revoked.Revoked = true
	return &revoked, nil
}

// RevokeAllForOwner flags every record in the owner index as revoked and
// drops index entries whose record is gone.
func (r *RedisRepository) RevokeAllForOwner(ctx context.Context, userID string) error {
	if err := revokeAllLua.Run(ctx, r.rdb, []string{r.ownerKey(userID)}, r.recordPrefix()).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// Rotate revokes old and inserts the replacement in one script.
func (r *RedisRepository) Rotate(ctx context.Context, old *models.RefreshToken, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	rec, args := r.newRecord(old.UserID, token, expiresAt)
	keys := []string{r.recordKey(old.Token), r.recordKey(token), r.ownerKey(old.UserID)}

	status, err := rotateLua.Run(ctx, r.rdb, keys, args...).Int64()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	switch status {
	case rotateStatusRotated:
		return rec, nil
	case rotateStatusRevoked:
		return nil, common.ErrTokenRevoked
	case rotateStatusDuplicate:
		return nil, common.ErrDuplicateToken
	case rotateStatusNotFound:
		return nil, common.ErrorNotFound
	default:
		return nil, fmt.Errorf("redis error: unexpected rotate status %d", status)
	}
}

// Purge walks the owner indexes, deleting records that expired before the
// given instant and index entries whose record Redis already evicted.
func (r *RedisRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	cutoff := before.UnixMilli()

	iter := r.rdb.Scan(ctx, 0, r.prefix+"rtu:*", 100).Iterator()
	for iter.Next(ctx) {
		owner := iter.Val()

		members, err := r.rdb.SMembers(ctx, owner).Result()
		if err != nil {
			return purged, fmt.Errorf("redis error: %w", err)
		}

		for _, d := range members {
			key := r.recordPrefix() + d
			raw, err := r.rdb.HGet(ctx, key, "expires_at").Result()
			switch {
			case err == redis.Nil:
				if err := r.rdb.SRem(ctx, owner, d).Err(); err != nil {
					return purged, fmt.Errorf("redis error: %w", err)
				}
				continue
			case err != nil:
				return purged, fmt.Errorf("redis error: %w", err)
			}

			expires, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || expires >= cutoff {
				continue
			}

			pipe := r.rdb.TxPipeline()
			pipe.Del(ctx, key)
			pipe.SRem(ctx, owner, d)
			if _, err := pipe.Exec(ctx); err != nil {
				return purged, fmt.Errorf("redis error: %w", err)
			}
			purged++
		}
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("redis error: %w", err)
	}
	return purged, nil
}
