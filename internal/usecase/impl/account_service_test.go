package impl

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"gatekeeper/config"
	"gatekeeper/internal/domain/entity"
	domainerrors "gatekeeper/internal/domain/errors"
	"gatekeeper/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type accountServiceFixtures struct {
	service usecase.AccountUsecase
	tokens  usecase.RefreshTokenUsecase
	db      *memDB
	clock   *fakeClock
}

func createTestAccountService(t *testing.T) accountServiceFixtures {
	t.Helper()

	db := newMemDB()
	txManager := &memTxManager{db: db}
	clock := newFakeClock(testEpoch)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{}

	keys := NewOneTimeKeyService(OneTimeKeyServiceParams{
		Config:    cfg,
		TxManager: txManager,
		KeyGen:    uuidKeyGen{},
		Hasher:    stubHasher{},
		Clock:     clock,
		Publisher: &spyPublisher{},
		Logger:    logger,
	})
	tokens := NewRefreshTokenManager(RefreshTokenManagerParams{
		Config:    cfg,
		TxManager: txManager,
		Codec:     stubTokenCodec{},
		KeyGen:    uuidKeyGen{},
		Clock:     clock,
		Logger:    logger,
	})

	service := NewAccountService(AccountServiceParams{
		TxManager: txManager,
		Hasher:    stubHasher{},
		Keys:      keys,
		Tokens:    tokens,
		Publisher: &spyPublisher{},
		Clock:     clock,
		Logger:    logger,
	})

	return accountServiceFixtures{service: service, tokens: tokens, db: db, clock: clock}
}

func TestAccountService_Register_Success(t *testing.T) {
	fx := createTestAccountService(t)

	output, err := fx.service.Register(context.Background(), &usecase.RegisterInput{
		Nickname: "alice",
		Email:    "alice@example.com",
		Password: "Password123",
		Language: "en-US",
	})

	require.NoError(t, err)
	require.NotNil(t, output.Identity)
	assert.NotEqual(t, uuid.Nil, output.Identity.ID)
	assert.True(t, output.Identity.Enabled)
	assert.False(t, output.Identity.Activated)
	assert.Equal(t, entity.Roles{entity.RoleUser}, output.Identity.Roles)
	assert.Equal(t, "hashed:Password123", output.Identity.PasswordHash)

	require.NotNil(t, output.ActivationKey)
	assert.Equal(t, entity.KeyPurposeActivation, output.ActivationKey.Purpose)
	assert.Len(t, keysForUser(fx.db, output.Identity.ID, entity.KeyPurposeActivation), 1)
}

func TestAccountService_Register_NicknameWithAtSign(t *testing.T) {
	fx := createTestAccountService(t)

	_, err := fx.service.Register(context.Background(), &usecase.RegisterInput{
		Nickname: "alice@home",
		Email:    "alice@example.com",
		Password: "Password123",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestAccountService_Register_WeakPassword(t *testing.T) {
	fx := createTestAccountService(t)

	_, err := fx.service.Register(context.Background(), &usecase.RegisterInput{
		Nickname: "alice",
		Email:    "alice@example.com",
		Password: "short",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrPasswordStrength)
}

func TestAccountService_Register_DuplicateEmail(t *testing.T) {
	fx := createTestAccountService(t)
	seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	_, err := fx.service.Register(context.Background(), &usecase.RegisterInput{
		Nickname: "alice2",
		Email:    "alice@example.com",
		Password: "Password123",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
}

func TestAccountService_RequestPasswordReset_Success(t *testing.T) {
	fx := createTestAccountService(t)
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	err := fx.service.RequestPasswordReset(context.Background(), "alice@example.com")

	require.NoError(t, err)
	assert.Len(t, keysForUser(fx.db, identity.ID, entity.KeyPurposeReset), 1)
}

func TestAccountService_RequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	fx := createTestAccountService(t)

	err := fx.service.RequestPasswordReset(context.Background(), "ghost@example.com")

	// The caller cannot tell a known address from an unknown one.
	require.NoError(t, err)

	fx.db.mu.Lock()
	defer fx.db.mu.Unlock()
	assert.Empty(t, fx.db.keys)
}

func TestAccountService_GetByID_Unknown(t *testing.T) {
	fx := createTestAccountService(t)

	_, err := fx.service.GetByID(context.Background(), uuid.New())

	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrIdentityNotFound)
}

func TestAccountService_UpdateNickname_Success(t *testing.T) {
	fx := createTestAccountService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.UpdateNickname(ctx, identity.ID, "alice-two"))

	updated, err := fx.service.GetByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice-two", updated.Nickname)
}

func TestAccountService_UpdateNickname_AtSignRejected(t *testing.T) {
	fx := createTestAccountService(t)
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	err := fx.service.UpdateNickname(context.Background(), identity.ID, "alice@home")

	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestAccountService_UpdateNickname_DuplicateRejected(t *testing.T) {
	fx := createTestAccountService(t)
	seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)
	bob := seedIdentity(fx.db, "bob", "bob@example.com", "Password123", true)

	err := fx.service.UpdateNickname(context.Background(), bob.ID, "alice")

	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
}

func TestAccountService_UpdateEmail_DuplicateRejected(t *testing.T) {
	fx := createTestAccountService(t)
	seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)
	bob := seedIdentity(fx.db, "bob", "bob@example.com", "Password123", true)

	err := fx.service.UpdateEmail(context.Background(), bob.ID, "alice@example.com")

	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
}

func TestAccountService_ChangePassword_Success(t *testing.T) {
	fx := createTestAccountService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Old12345", true)

	err := fx.service.ChangePassword(ctx, identity.ID, "Old12345", "New12345678")

	require.NoError(t, err)
	assert.Equal(t, "hashed:New12345678", fx.db.identities[identity.ID].PasswordHash)
}

func TestAccountService_ChangePassword_WrongCurrent(t *testing.T) {
	fx := createTestAccountService(t)
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Old12345", true)

	err := fx.service.ChangePassword(context.Background(), identity.ID, "not-current", "New12345678")

	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrBadCredentials)
	assert.Equal(t, "hashed:Old12345", fx.db.identities[identity.ID].PasswordHash)
}

func TestAccountService_ChangePassword_WeakNewPassword(t *testing.T) {
	fx := createTestAccountService(t)
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Old12345", true)

	err := fx.service.ChangePassword(context.Background(), identity.ID, "Old12345", "tiny")

	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrPasswordStrength)
}

func TestAccountService_UpdateLanguage(t *testing.T) {
	fx := createTestAccountService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.UpdateLanguage(ctx, identity.ID, "zh-TW"))

	updated, err := fx.service.GetByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "zh-TW", updated.Language)
}

func TestAccountService_SetEnabled_DisableRevokesToken(t *testing.T) {
	fx := createTestAccountService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	_, err := fx.tokens.Issue(ctx, identity)
	require.NoError(t, err)
	require.Len(t, tokensForUser(fx.db, identity.ID), 1)

	require.NoError(t, fx.service.SetEnabled(ctx, identity.ID, false))

	assert.False(t, fx.db.identities[identity.ID].Enabled)
	assert.Empty(t, tokensForUser(fx.db, identity.ID))
}

func TestAccountService_SetEnabled_ReenableKeepsTokensUntouched(t *testing.T) {
	fx := createTestAccountService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)
	require.NoError(t, fx.service.SetEnabled(ctx, identity.ID, false))

	require.NoError(t, fx.service.SetEnabled(ctx, identity.ID, true))

	assert.True(t, fx.db.identities[identity.ID].Enabled)
}

func TestAccountService_SetRoles(t *testing.T) {
	fx := createTestAccountService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.SetRoles(ctx, identity.ID, entity.Roles{entity.RoleUser, entity.RoleAdmin}))

	updated, err := fx.service.GetByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.True(t, updated.Roles.Contains(entity.RoleAdmin))
}

func TestAccountService_SetRoles_UnknownAccount(t *testing.T) {
	fx := createTestAccountService(t)

	err := fx.service.SetRoles(context.Background(), uuid.New(), entity.Roles{entity.RoleUser})

	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrIdentityNotFound)
}
