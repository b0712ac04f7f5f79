package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Success(t *testing.T) {
	e := newTestEnv(t)

	u, err := e.svc.Register(context.Background(), " alice ", "Alice@Example.com", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.UserName)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, models.RoleDeveloper, u.Role)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "password1", u.PasswordHash)
}

func TestRegister_InvalidInput(t *testing.T) {
	tests := []struct {
		name, user, email, pw string
	}{
		{"short username", "al", "al@example.com", "password1"},
		{"non alphanumeric username", "al ice", "alice@example.com", "password1"},
		{"long username", strings.Repeat("a", 51), "alice@example.com", "password1"},
		{"bad email", "alice", "not-an-email", "password1"},
		{"short password", "alice", "alice@example.com", "short"},
		{"password over 72 bytes", "alice", "alice@example.com", strings.Repeat("é", 40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			_, err := e.svc.Register(context.Background(), tt.user, tt.email, tt.pw)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "password1")

	_, err := e.svc.Register(context.Background(), "alice", "other@example.com", "password1")
	assert.ErrorIs(t, err, common.ErrUsernameTaken)

	_, err = e.svc.Register(context.Background(), "alice2", "alice@example.com", "password1")
	assert.ErrorIs(t, err, common.ErrUsernameTaken)
}

func TestLoginThenAuthenticate(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t, "alice", "password1")

	pair := e.login(t, "alice", "password1")
	assert.Equal(t, common.TokenTypeBearer, pair.TokenType)
	assert.Equal(t, 15*time.Minute, pair.ExpiresIn)
	assert.Equal(t, 24*time.Hour, pair.RefreshExpiresIn)
	assert.Len(t, pair.RefreshToken, 64)

	claims, err := e.svc.Authenticate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID())
	assert.Equal(t, models.RoleDeveloper, claims.Role)
}

func TestLogin_ByEmail(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "password1")

	_, err := e.svc.Login(context.Background(), "alice@example.com", "password1")
	assert.NoError(t, err)
}

func TestLogin_GenericFailure(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t, "alice", "password1")
	e.register(t, "bob", "password2")
	e.repos.UserStore().SetActive(id, false)

	for name, creds := range map[string][2]string{
		"unknown user":   {"carol", "password1"},
		"wrong password": {"bob", "password1"},
		"inactive user":  {"alice", "password1"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.svc.Login(context.Background(), creds[0], creds[1])
			assert.Equal(t, common.ErrInvalidCredentials, err)
		})
	}
}

// alice logs in, refreshes once, then the original refresh token shows up
// again: the whole chain dies.
func TestRefresh_ReuseKillsChain(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.register(t, "alice", "password1")

	first := e.login(t, "alice", "password1")

	second, err := e.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	_, err = e.svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, common.ErrReuseDetected)

	_, err = e.svc.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, common.ErrReuseDetected)
}

func TestRefresh_ChainKillCoversEveryLink(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.register(t, "alice", "password1")

	tokens := []string{e.login(t, "alice", "password1").RefreshToken}
	for i := 0; i < 4; i++ {
		next, err := e.svc.Refresh(ctx, tokens[len(tokens)-1])
		require.NoError(t, err)
		tokens = append(tokens, next.RefreshToken)
	}

	_, err := e.svc.Refresh(ctx, tokens[1])
	require.ErrorIs(t, err, common.ErrReuseDetected)

	for i, tok := range tokens {
		_, err := e.svc.Refresh(ctx, tok)
		assert.ErrorIs(t, err, common.ErrReuseDetected, "link %d", i)
	}

	rec, err := e.repos.RefreshTokens(nil).Find(ctx, tokens[0])
	require.NoError(t, err)
	chain, err := e.store.Chain(ctx, rec.FamilyID)
	require.NoError(t, err)
	require.Len(t, chain, len(tokens))
	for _, link := range chain {
		assert.True(t, link.Revoked)
	}
}

func TestRefresh_ReuseLeavesOtherSessionsAlone(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.register(t, "alice", "password1")
	e.register(t, "bob", "password2")

	laptop := e.login(t, "alice", "password1")
	phone := e.login(t, "alice", "password1")
	bob := e.login(t, "bob", "password2")

	_, err := e.svc.Refresh(ctx, laptop.RefreshToken)
	require.NoError(t, err)
	_, err = e.svc.Refresh(ctx, laptop.RefreshToken)
	require.ErrorIs(t, err, common.ErrReuseDetected)

	_, err = e.svc.Refresh(ctx, phone.RefreshToken)
	assert.NoError(t, err)
	_, err = e.svc.Refresh(ctx, bob.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_Expired(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "password1")
	pair := e.login(t, "alice", "password1")

	e.clock.Advance(25 * time.Hour)
	_, err := e.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestRefresh_Unknown(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.svc.Refresh(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, common.ErrTokenNotFound)
	_, err = e.svc.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrTokenNotFound)
}

func TestRefresh_UsesCurrentRole(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t, "alice", "password1")
	pair := e.login(t, "alice", "password1")

	e.repos.UserStore().SetRole(id, models.RoleManager)
	next, err := e.svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	claims, err := e.svc.Authenticate(context.Background(), next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, claims.Role)
}

func TestRefresh_DeactivatedUser(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	id := e.register(t, "alice", "password1")
	pair := e.login(t, "alice", "password1")

	e.repos.UserStore().SetActive(id, false)
	_, err := e.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	rec, err := e.repos.RefreshTokens(nil).Find(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, rec.ReplacedBy)
	successor, err := e.repos.RefreshTokens(nil).Find(ctx, *rec.ReplacedBy)
	require.NoError(t, err)
	assert.True(t, successor.Revoked)
}

func TestLogout_RevokesBothTokens(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.register(t, "alice", "password1")
	e.register(t, "bob", "password2")
	alice := e.login(t, "alice", "password1")
	bob := e.login(t, "bob", "password2")

	require.NoError(t, e.svc.Logout(ctx, alice.RefreshToken, alice.AccessToken))

	_, err := e.svc.Authenticate(ctx, alice.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenRevoked)

	_, err = e.svc.Refresh(ctx, alice.RefreshToken)
	assert.Error(t, err)

	_, err = e.svc.Authenticate(ctx, bob.AccessToken)
	assert.NoError(t, err)
	_, err = e.svc.Refresh(ctx, bob.RefreshToken)
	assert.NoError(t, err)
}

func TestLogout_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "password1")
	pair := e.login(t, "alice", "password1")

	require.NoError(t, e.svc.Logout(context.Background(), pair.RefreshToken, ""))
	assert.NoError(t, e.svc.Logout(context.Background(), pair.RefreshToken, ""))
}

func TestLogout_UnknownToken(t *testing.T) {
	e := newTestEnv(t)
	assert.ErrorIs(t, e.svc.Logout(context.Background(), "nope", ""), common.ErrTokenNotFound)
	assert.ErrorIs(t, e.svc.Logout(context.Background(), "", ""), common.ErrTokenNotFound)
}

func TestLogout_BrokenAccessTokenIgnored(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "password1")
	pair := e.login(t, "alice", "password1")

	assert.NoError(t, e.svc.Logout(context.Background(), pair.RefreshToken, "garbage"))
}

func TestAuthenticate_Failures(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "password1")
	pair := e.login(t, "alice", "password1")

	_, err := e.svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, common.ErrTokenInvalid)

	e.clock.Advance(16 * time.Minute)
	_, err = e.svc.Authenticate(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestCurrentUser(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t, "alice", "password1")
	pair := e.login(t, "alice", "password1")

	claims, err := e.svc.Authenticate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	u, err := e.svc.CurrentUser(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	e.repos.UserStore().SetActive(id, false)
	_, err = e.svc.CurrentUser(context.Background(), claims)
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestRotateSigningKey(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "password1")
	before := e.login(t, "alice", "password1")
	oldKID := e.ring.ActiveKID()

	kid, err := e.svc.RotateSigningKey(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, oldKID, kid)
	assert.Equal(t, kid, e.ring.ActiveKID())

	_, err = e.svc.Authenticate(context.Background(), before.AccessToken)
	assert.NoError(t, err, "tokens signed before rotation stay valid")

	after := e.login(t, "alice", "password1")
	_, err = e.svc.Authenticate(context.Background(), after.AccessToken)
	assert.NoError(t, err)
}

func TestRotateSigningKey_NotConfigured(t *testing.T) {
	svc := NewAuthService(AuthDeps{})
	_, err := svc.RotateSigningKey(context.Background())
	assert.True(t, errors.Is(err, common.ErrorInternal))
}
