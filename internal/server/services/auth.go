// Package services contains server-side business logic: the token lifecycle
// (AuthService) and the access check run on every authenticated call (Guard).
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// TokenTypeBearer is reported with every issued pair.
const TokenTypeBearer = "bearer"

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// Passwords hashes and checks user passwords. password.Bcrypt implements it.
type Passwords interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// AuthService issues token pairs, rotates refresh tokens and revokes them.
// It holds no locks of its own: single use of a refresh token is enforced by
// the store's Rotate.
type AuthService struct {
	users      users.Repository
	tokens     refreshtokens.Repository
	codec      *auth.Codec
	passwords  Passwords
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	log        logging.Logger
}

// Option customises an AuthService.
type Option func(*AuthService)

// WithClock replaces time.Now for record expiry checks and purging.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService constructs an AuthService from the repositories of m and
// the token lifetimes of cfg.
func NewAuthService(cfg *config.Config, m repomanager.RepositoryManager, codec *auth.Codec, pw Passwords, log logging.Logger, opts ...Option) *AuthService {
	s := &AuthService{
		users:      m.Users(),
		tokens:     m.RefreshTokens(),
		codec:      codec,
		passwords:  pw,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
		log:        log.With("module", "auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an active user with a hashed password.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", common.ErrInvalidInput)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	u, err := s.users.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login checks the password of the user known by login (username or email)
// and issues a fresh pair. An unknown user and a wrong password are not
// told apart.
func (s *AuthService) Login(ctx context.Context, login, password string) (*TokenPair, error) {
	user, err := s.users.FindByUsernameOrEmail(ctx, login)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	if !s.passwords.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, common.ErrAccountDisabled
	}

	access, err := s.issueAccess(user)
	if err != nil {
		return nil, err
	}
	refresh, claims, err := s.codec.Issue(auth.KindRefresh, user.ID, user.Username, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("error issuing refresh token: %w", err)
	}

	if _, err := s.tokens.Insert(ctx, user.ID, refresh, claims.ExpiresAt); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: TokenTypeBearer}, nil
}

// Refresh exchanges a live refresh token for a new pair. The presented token
// is revoked in the same store operation that records its replacement, so it
// can be exchanged at most once.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	claims, err := s.codec.Decode(presented, auth.KindRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	rec, err := s.tokens.FindByValue(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnknownToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if rec.UserID != claims.Subject {
		return nil, fmt.Errorf("%w: subject does not own the token", common.ErrInvalidToken)
	}
	if rec.Revoked {
		s.warnReplay(ctx, rec)
		return nil, common.ErrTokenRevoked
	}
	if rec.ExpiredAt(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	user, err := s.users.FindByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountUnavailable
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrAccountUnavailable
	}

	refresh, rc, err := s.codec.Issue(auth.KindRefresh, user.ID, user.Username, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("error issuing refresh token: %w", err)
	}
	if _, err := s.tokens.Rotate(ctx, rec, refresh, rc.ExpiresAt); err != nil {
		if errors.Is(err, common.ErrTokenRevoked) {
			s.warnReplay(ctx, rec)
			return nil, common.ErrTokenRevoked
		}
		return nil, fmt.Errorf("error rotating refresh token: %w", err)
	}

	access, err := s.issueAccess(user)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "refresh token rotated", "user_id", user.ID, "token_id", rec.ID)
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: TokenTypeBearer}, nil
}

// RevokeAll revokes every refresh token of userID. Access tokens already
// issued stay valid until they expire.
func (s *AuthService) RevokeAll(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeAllForOwner(ctx, userID); err != nil {
		return fmt.Errorf("error revoking refresh tokens: %w", err)
	}
	s.log.Info(ctx, "all refresh tokens revoked", "user_id", userID)
	return nil
}

// Deactivate disables the account of userID and revokes all of its refresh
// tokens. Access tokens already issued are refused by the Guard from then on.
func (s *AuthService) Deactivate(ctx context.Context, userID string) error {
	if err := s.users.SetActive(ctx, userID, false); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrAccountUnavailable
		}
		return fmt.Errorf("error deactivating user: %w", err)
	}
	if err := s.tokens.RevokeAllForOwner(ctx, userID); err != nil {
		return fmt.Errorf("error revoking refresh tokens: %w", err)
	}
	s.log.Info(ctx, "user deactivated", "user_id", userID)
	return nil
}

// Logout revokes one refresh token. Logging out twice, or with a token that
// has already expired, succeeds.
func (s *AuthService) Logout(ctx context.Context, presented string) error {
	if _, err := s.codec.Decode(presented, auth.KindRefresh); err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil
		}
		return fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	rec, err := s.tokens.FindByValue(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUnknownToken
		}
		return fmt.Errorf("error searching refresh token: %w", err)
	}

	if _, err := s.tokens.Revoke(ctx, rec); err != nil {
		return fmt.Errorf("error revoking refresh token: %w", err)
	}
	s.log.Info(ctx, "refresh token revoked", "user_id", rec.UserID, "token_id", rec.ID)
	return nil
}

// PurgeExpired removes refresh token records that are past their expiry.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.Purge(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("error purging refresh tokens: %w", err)
	}
	s.log.Info(ctx, "expired refresh tokens purged", "count", n)
	return n, nil
}

func (s *AuthService) issueAccess(user *models.User) (string, error) {
	token, _, err := s.codec.Issue(auth.KindAccess, user.ID, user.Username, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("error issuing access token: %w", err)
	}
	return token, nil
}

func (s *AuthService) warnReplay(ctx context.Context, rec *models.RefreshToken) {
	s.log.Warn(ctx, "revoked refresh token presented, possible replay",
		"user_id", rec.UserID, "token_id", rec.ID)
}
