// Package users is the user directory: lookups by id and by login, plus the
// few writes registration and administration need.
package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type Repository interface {
	// Create stores user and fills in its ID and CreatedAt. A taken username
	// or email yields common.ErrUserExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	// FindByUsernameOrEmail matches login against either column.
	FindByUsernameOrEmail(ctx context.Context, login string) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool) error
}
