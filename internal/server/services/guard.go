package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// Guard resolves an access token to an active user. It never writes.
type Guard struct {
	codec *auth.Codec
	users users.Repository
}

func NewGuard(codec *auth.Codec, users users.Repository) *Guard {
	return &Guard{codec: codec, users: users}
}

// Authenticate returns the owner of accessToken. Any token failure and an
// unknown subject yield common.ErrUnauthenticated; a disabled account yields
// common.ErrForbidden.
func (g *Guard) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := g.codec.Decode(accessToken, auth.KindAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}

	user, err := g.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrForbidden
	}
	return user, nil
}
