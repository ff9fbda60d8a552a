package repomanager

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces every key the refresh token store writes.
const RedisKeyPrefix = "authkeeper:"

// RedisRepositoryManager keeps refresh tokens in Redis and delegates the user
// directory and migrations to PostgreSQL.
type RedisRepositoryManager struct {
	pg     *PostgresRepositoryManager
	tokens *refreshtokens.RedisRepository
}

func NewRedisRepositoryManager(pg *PostgresRepositoryManager, rdb *redis.Client) *RedisRepositoryManager {
	return &RedisRepositoryManager{
		pg:     pg,
		tokens: refreshtokens.NewRedisRepository(rdb, RedisKeyPrefix),
	}
}

func (m *RedisRepositoryManager) RunMigrations(ctx context.Context) error {
	return m.pg.RunMigrations(ctx)
}

func (m *RedisRepositoryManager) Users() users.Repository {
	return m.pg.Users()
}

func (m *RedisRepositoryManager) RefreshTokens() refreshtokens.Repository {
	return m.tokens
}
