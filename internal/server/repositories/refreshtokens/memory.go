package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository is a process-local Repository guarded by one mutex.
// It backs tests and single-instance deployments without a database.
type MemoryRepository struct {
	mu      sync.Mutex
	byToken map[string]*models.RefreshToken
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byToken: make(map[string]*models.RefreshToken),
		now:     time.Now,
	}
}

func (r *MemoryRepository) insertLocked(userID, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	if _, ok := r.byToken[token]; ok {
		return nil, common.ErrDuplicateToken
	}
	rec := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: r.now(),
	}
	r.byToken[token] = rec
	cp := *rec
	return &cp, nil
}

func (r *MemoryRepository) Insert(_ context.Context, userID string, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(userID, token, expiresAt)
}

func (r *MemoryRepository) FindByValue(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byToken[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *MemoryRepository) Revoke(_ context.Context, rec *models.RefreshToken) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stored, ok := r.byToken[rec.Token]; ok {
		stored.Revoked = true
	}
	revoked := *rec
	revoked.Revoked = true
	return &revoked, nil
}

func (r *MemoryRepository) RevokeAllForOwner(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.byToken {
		if rec.UserID == userID {
			rec.Revoked = true
		}
	}
	return nil
}

// Rotate holds the lock across the check, the revoke and the insert.
func (r *MemoryRepository) Rotate(_ context.Context, old *models.RefreshToken, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byToken[old.Token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if stored.Revoked {
		return nil, common.ErrTokenRevoked
	}
	if _, taken := r.byToken[token]; taken {
		return nil, common.ErrDuplicateToken
	}

	stored.Revoked = true
	return r.insertLocked(stored.UserID, token, expiresAt)
}

func (r *MemoryRepository) Purge(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for token, rec := range r.byToken {
		if rec.ExpiresAt.Before(before) {
			delete(r.byToken, token)
			n++
		}
	}
	return n, nil
}
