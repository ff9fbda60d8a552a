package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint violation.
const pgUniqueViolation = "23505"

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new active record with a fresh id.
func (r *PostgresRepository) Insert(ctx context.Context, userID string, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	rec := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	if err := r.db.QueryRowContext(ctx, query, rec.ID, userID, token, expiresAt).Scan(&rec.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrDuplicateToken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// FindByValue returns the record for token or common.ErrorNotFound.
func (r *PostgresRepository) FindByValue(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at, revoked
		FROM refresh_tokens
		WHERE token = $1
	`
	rec := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&rec.ID, &rec.UserID, &rec.Token, &rec.ExpiresAt, &rec.CreatedAt, &rec.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// Revoke sets the revoked flag on rec.
func (r *PostgresRepository) Revoke(ctx context.Context, rec *models.RefreshToken) (*models.RefreshToken, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = true
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, rec.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	revoked := *rec
	revoked.Revoked = true
	return &revoked, nil
}

// RevokeAllForOwner flags every active record of userID as revoked.
func (r *PostgresRepository) RevokeAllForOwner(ctx context.Context, userID string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = true
		WHERE user_id = $1 AND revoked = false
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Rotate runs the conditional revoke and the insert in one transaction.
// The row lock taken by the UPDATE serialises concurrent rotations of the
// same record; the losers see zero affected rows.
func (r *PostgresRepository) Rotate(ctx context.Context, old *models.RefreshToken, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = true
		WHERE id = $1 AND revoked = false
	`
	var rec *models.RefreshToken

	err := dbx.RunInTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, query, old.ID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n == 0 {
			return common.ErrTokenRevoked
		}

		rec, err = NewPostgresRepository(tx).Insert(ctx, old.UserID, token, expiresAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Purge deletes records whose expiry is before the given instant.
func (r *PostgresRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
