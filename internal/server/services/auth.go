// Package services contains server-side business logic: the refresh token
// store, the access token blocklist, the background sweeper and AuthService,
// which orchestrates registration, login, refresh, logout and
// authentication.
package services

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/password"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
)

// PasswordHasher is implemented by password.BcryptHasher.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
	VerifyDummy(plain string) bool
}

// TokenCodec is implemented by auth.Codec.
type TokenCodec interface {
	IssueAccess(userID, role string) (string, *auth.AccessClaims, error)
	DecodeAccess(token string) (*auth.AccessClaims, error)
	TTL() time.Duration
}

// KeyGenerator produces a new signing key; keys.Source implements it.
type KeyGenerator interface {
	Generate(ctx context.Context) (*rsa.PrivateKey, error)
}

// KeyRotator installs a new active signing key; keys.Ring implements it.
type KeyRotator interface {
	Rotate(key *rsa.PrivateKey) (string, error)
}

// TokenPair is what login and refresh hand to the client.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        time.Duration
	RefreshExpiresIn time.Duration
}

// AuthDeps are the collaborators of AuthService. Keys and Ring may be nil,
// which disables RotateSigningKey.
type AuthDeps struct {
	Repos     repomanager.RepositoryManager
	Hasher    PasswordHasher
	Codec     TokenCodec
	Refresh   *RefreshTokenStore
	Blocklist *Blocklist
	Keys      KeyGenerator
	Ring      KeyRotator
}

type registration struct {
	Username string `validate:"required,min=3,max=50,alphanum"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8"`
}

// AuthService ties the token engine together. None of its failures are
// retried; every error is a rejection of the single call.
type AuthService struct {
	deps     AuthDeps
	validate *validator.Validate
	logger   logging.Logger
}

func NewAuthService(deps AuthDeps, opts ...Option) *AuthService {
	o := buildOptions(opts)
	return &AuthService{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   o.logger.With("module", "auth"),
	}
}

// Register creates an active user with the default role.
func (s *AuthService) Register(ctx context.Context, username, email, plain string) (*models.User, error) {
	in := registration{
		Username: strings.TrimSpace(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: plain,
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrInvalidInput, describeValidation(err))
	}
	if len(plain) > password.MaxLength {
		return nil, fmt.Errorf("%w: password longer than %d bytes", common.ErrInvalidInput, password.MaxLength)
	}

	hash, err := s.deps.Hasher.Hash(plain)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.deps.Repos.Users(s.deps.Repos.DB()).Create(ctx, &models.User{
		UserName:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleDeveloper,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, common.ErrUsernameTaken) {
			return nil, common.ErrUsernameTaken
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}

// Login accepts a username or an email. Whatever went wrong, the caller only
// learns ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, login, plain string) (*TokenPair, error) {
	u, err := s.deps.Repos.Users(s.deps.Repos.DB()).GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.deps.Hasher.VerifyDummy(plain)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !s.deps.Hasher.Verify(plain, u.PasswordHash) || !u.IsActive {
		return nil, common.ErrInvalidCredentials
	}

	rec, err := s.deps.Refresh.Issue(ctx, u.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}
	pair, err := s.pair(u, rec.TokenID)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user logged in", "user_id", u.ID, "family_id", rec.FamilyID)
	return pair, nil
}

// Refresh rotates the refresh token and mints an access token carrying the
// user's current role.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrTokenNotFound
	}
	rec, err := s.deps.Refresh.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	u, err := s.deps.Repos.Users(s.deps.Repos.DB()).GetByID(ctx, rec.UserID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err != nil || !u.IsActive {
		if rerr := s.deps.Refresh.Revoke(ctx, rec.TokenID); rerr != nil {
			s.logger.Error(ctx, "revoking refresh token of disabled user failed", "user_id", rec.UserID, "error", rerr)
		}
		return nil, common.ErrInvalidCredentials
	}
	return s.pair(u, rec.TokenID)
}

func (s *AuthService) pair(u *models.User, refreshToken string) (*TokenPair, error) {
	access, _, err := s.deps.Codec.IssueAccess(u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshToken,
		TokenType:        common.TokenTypeBearer,
		ExpiresIn:        s.deps.Codec.TTL(),
		RefreshExpiresIn: s.deps.Refresh.TTL(),
	}, nil
}

// Logout ends the session of refreshToken. When accessToken is given and
// still decodes, it is blocklisted for the rest of its lifetime; a broken
// access token does not fail the logout.
func (s *AuthService) Logout(ctx context.Context, refreshToken, accessToken string) error {
	if accessToken != "" {
		claims, err := s.deps.Codec.DecodeAccess(accessToken)
		if err != nil {
			s.logger.Debug(ctx, "ignoring undecodable access token on logout", "error", err)
		} else if err := s.deps.Blocklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return err
		}
	}

	if refreshToken == "" {
		return common.ErrTokenNotFound
	}
	return s.deps.Refresh.Revoke(ctx, refreshToken)
}

// Authenticate decodes an access token and checks the blocklist. It is the
// only dependency of the authorization layer.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*auth.AccessClaims, error) {
	claims, err := s.deps.Codec.DecodeAccess(accessToken)
	if err != nil {
		return nil, err
	}
	revoked, err := s.deps.Blocklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, common.ErrTokenRevoked
	}
	return claims, nil
}

// CurrentUser loads the user an authenticated token belongs to.
func (s *AuthService) CurrentUser(ctx context.Context, claims *auth.AccessClaims) (*models.User, error) {
	u, err := s.deps.Repos.Users(s.deps.Repos.DB()).GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !u.IsActive {
		return nil, common.ErrInvalidCredentials
	}
	return u, nil
}

// RotateSigningKey generates a new signing key and makes it active. Tokens
// signed with the previous key keep verifying for the ring's retention.
func (s *AuthService) RotateSigningKey(ctx context.Context) (string, error) {
	if s.deps.Keys == nil || s.deps.Ring == nil {
		return "", fmt.Errorf("%w: key rotation not configured", common.ErrorInternal)
	}
	key, err := s.deps.Keys.Generate(ctx)
	if err != nil {
		return "", fmt.Errorf("generate signing key: %w", err)
	}
	kid, err := s.deps.Ring.Rotate(key)
	if err != nil {
		return "", fmt.Errorf("rotate signing key: %w", err)
	}
	s.logger.Info(ctx, "signing key rotated", "kid", kid)
	return kid, nil
}
