package impl

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"gatekeeper/config"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refreshTokenManagerFixtures struct {
	manager usecase.RefreshTokenUsecase
	db      *memDB
	clock   *fakeClock
}

func createTestRefreshTokenManager(t *testing.T) refreshTokenManagerFixtures {
	t.Helper()

	db := newMemDB()
	clock := newFakeClock(testEpoch)

	manager := NewRefreshTokenManager(RefreshTokenManagerParams{
		Config:    &config.Config{},
		TxManager: &memTxManager{db: db},
		Codec:     stubTokenCodec{},
		KeyGen:    uuidKeyGen{},
		Clock:     clock,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return refreshTokenManagerFixtures{manager: manager, db: db, clock: clock}
}

func TestRefreshTokenManager_Issue_Success(t *testing.T) {
	fx := createTestRefreshTokenManager(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	pair, err := fx.manager.Issue(ctx, identity)

	require.NoError(t, err)
	assert.Equal(t, "access-"+identity.ID.String(), pair.AccessToken)
	require.NotNil(t, pair.RefreshToken)
	assert.Equal(t, identity.ID, pair.RefreshToken.UserID)
	assert.Equal(t, testEpoch.Add(defaultRefreshTokenTTL), pair.RefreshToken.ExpiryDate)

	live := tokensForUser(fx.db, identity.ID)
	require.Len(t, live, 1)
	assert.Equal(t, pair.RefreshToken.Token, live[0].Token)
}

func TestRefreshTokenManager_Issue_DisplacesPrevious(t *testing.T) {
	fx := createTestRefreshTokenManager(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	first, err := fx.manager.Issue(ctx, identity)
	require.NoError(t, err)

	second, err := fx.manager.Issue(ctx, identity)
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken.Token, second.RefreshToken.Token)

	live := tokensForUser(fx.db, identity.ID)
	require.Len(t, live, 1)
	assert.Equal(t, second.RefreshToken.Token, live[0].Token)
}

func TestRefreshTokenManager_Issue_ConfiguredTTL(t *testing.T) {
	db := newMemDB()
	clock := newFakeClock(testEpoch)
	cfg := &config.Config{}
	cfg.Token.RefreshTTL = 48 * time.Hour

	manager := NewRefreshTokenManager(RefreshTokenManagerParams{
		Config:    cfg,
		TxManager: &memTxManager{db: db},
		Codec:     stubTokenCodec{},
		KeyGen:    uuidKeyGen{},
		Clock:     clock,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	identity := seedIdentity(db, "alice", "alice@example.com", "Password123", true)
	pair, err := manager.Issue(context.Background(), identity)

	require.NoError(t, err)
	assert.Equal(t, testEpoch.Add(48*time.Hour), pair.RefreshToken.ExpiryDate)
}

func TestRefreshTokenManager_Rotate_Success(t *testing.T) {
	fx := createTestRefreshTokenManager(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	issued, err := fx.manager.Issue(ctx, identity)
	require.NoError(t, err)

	rotated, err := fx.manager.Rotate(ctx, issued.RefreshToken.Token)
	require.NoError(t, err)
	assert.NotEqual(t, issued.RefreshToken.Token, rotated.RefreshToken.Token)

	// The presented value is spent.
	_, err = fx.manager.FindByToken(ctx, issued.RefreshToken.Token)
	assert.ErrorIs(t, err, repository.ErrRefreshTokenNotFound)

	live := tokensForUser(fx.db, identity.ID)
	require.Len(t, live, 1)
	assert.Equal(t, rotated.RefreshToken.Token, live[0].Token)
}

func TestRefreshTokenManager_Rotate_UnknownToken(t *testing.T) {
	fx := createTestRefreshTokenManager(t)

	_, err := fx.manager.Rotate(context.Background(), "never-issued")

	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrRefreshTokenNotFound)
}

func TestRefreshTokenManager_Rotate_ExpiredTokenIsDeleted(t *testing.T) {
	fx := createTestRefreshTokenManager(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	issued, err := fx.manager.Issue(ctx, identity)
	require.NoError(t, err)

	fx.clock.Advance(defaultRefreshTokenTTL + time.Hour)

	_, err = fx.manager.Rotate(ctx, issued.RefreshToken.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrRefreshTokenExpired)

	// The delete commits even though the rotation fails: a retry reads as
	// unknown, not expired, and no row lingers.
	_, err = fx.manager.Rotate(ctx, issued.RefreshToken.Token)
	assert.ErrorIs(t, err, repository.ErrRefreshTokenNotFound)
	assert.Empty(t, tokensForUser(fx.db, identity.ID))
}

func TestRefreshTokenManager_Revoke_Idempotent(t *testing.T) {
	fx := createTestRefreshTokenManager(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	_, err := fx.manager.Issue(ctx, identity)
	require.NoError(t, err)

	require.NoError(t, fx.manager.Revoke(ctx, identity.ID))
	assert.Empty(t, tokensForUser(fx.db, identity.ID))

	// Revoking again with nothing live still succeeds.
	require.NoError(t, fx.manager.Revoke(ctx, identity.ID))
}

func TestRefreshTokenManager_RevokeAll(t *testing.T) {
	fx := createTestRefreshTokenManager(t)
	ctx := context.Background()
	alice := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)
	bob := seedIdentity(fx.db, "bob", "bob@example.com", "Password123", true)

	_, err := fx.manager.Issue(ctx, alice)
	require.NoError(t, err)
	_, err = fx.manager.Issue(ctx, bob)
	require.NoError(t, err)

	require.NoError(t, fx.manager.RevokeAll(ctx))

	assert.Empty(t, tokensForUser(fx.db, alice.ID))
	assert.Empty(t, tokensForUser(fx.db, bob.ID))
}

func TestRefreshTokenManager_FindByUser(t *testing.T) {
	fx := createTestRefreshTokenManager(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	issued, err := fx.manager.Issue(ctx, identity)
	require.NoError(t, err)

	found, err := fx.manager.FindByUser(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.RefreshToken.Token, found.Token)

	other := seedIdentity(fx.db, "bob", "bob@example.com", "Password123", true)
	_, err = fx.manager.FindByUser(ctx, other.ID)
	assert.ErrorIs(t, err, repository.ErrRefreshTokenNotFound)
}

func TestRefreshTokenManager_PurgeExpiredBefore(t *testing.T) {
	fx := createTestRefreshTokenManager(t)
	ctx := context.Background()
	alice := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)
	bob := seedIdentity(fx.db, "bob", "bob@example.com", "Password123", true)

	_, err := fx.manager.Issue(ctx, alice)
	require.NoError(t, err)

	// Bob's token is issued a day later, so only Alice's expiry precedes
	// the purge cutoff.
	fx.clock.Advance(24 * time.Hour)
	_, err = fx.manager.Issue(ctx, bob)
	require.NoError(t, err)

	cutoff := testEpoch.Add(defaultRefreshTokenTTL + time.Hour)
	purged, err := fx.manager.PurgeExpiredBefore(ctx, cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	assert.Empty(t, tokensForUser(fx.db, alice.ID))
	assert.Len(t, tokensForUser(fx.db, bob.ID), 1)
}
