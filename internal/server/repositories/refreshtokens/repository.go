// Package refreshtokens declares the refresh token store contract and its
// PostgreSQL, Redis and in-memory implementations.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository persists refresh token records. Every implementation must make
// Rotate atomic: of any number of concurrent rotations of the same record at
// most one succeeds.
type Repository interface {
	// Insert stores a new active record. A token value that already exists
	// yields common.ErrDuplicateToken.
	Insert(ctx context.Context, userID string, token string, expiresAt time.Time) (*models.RefreshToken, error)

	// FindByValue returns the record for token regardless of its revoked flag
	// or expiry, or common.ErrorNotFound.
	FindByValue(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke marks the record revoked. Revoking a revoked record is a no-op.
	Revoke(ctx context.Context, rec *models.RefreshToken) (*models.RefreshToken, error)

	// RevokeAllForOwner marks every record of userID revoked.
	RevokeAllForOwner(ctx context.Context, userID string) error

	// Rotate revokes old, provided it is still active, and inserts the
	// replacement in the same unit of work. If old was already revoked it
	// returns common.ErrTokenRevoked and inserts nothing.
	Rotate(ctx context.Context, old *models.RefreshToken, token string, expiresAt time.Time) (*models.RefreshToken, error)

	// Purge deletes records that expired before the given instant and returns
	// how many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
