package impl

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"gatekeeper/config"
	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginAuditServiceFixtures struct {
	service usecase.AuditUsecase
	db      *memDB
	clock   *fakeClock
}

func createTestLoginAuditService(t *testing.T) loginAuditServiceFixtures {
	return createTestLoginAuditServiceWithConfig(t, &config.Config{})
}

func createTestLoginAuditServiceWithConfig(t *testing.T, cfg *config.Config) loginAuditServiceFixtures {
	t.Helper()

	db := newMemDB()
	clock := newFakeClock(testEpoch)

	service := NewLoginAuditService(LoginAuditServiceParams{
		Config:    cfg,
		TxManager: &memTxManager{db: db},
		Clock:     clock,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return loginAuditServiceFixtures{service: service, db: db, clock: clock}
}

func TestLoginAuditService_RecordIdentified(t *testing.T) {
	fx := createTestLoginAuditService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	err := fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID:     &identity.ID,
		Email:      identity.Email,
		Nickname:   identity.Nickname,
		RemoteAddr: "203.0.113.9",
		UserAgent:  "test-agent",
		Outcome:    entity.OutcomeSuccess,
	})
	require.NoError(t, err)

	attempts, err := fx.service.ListByEmail(ctx, "alice@example.com", pageAll())
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.NotZero(t, attempts[0].ID)
	assert.Equal(t, testEpoch, attempts[0].AttemptedAt)
	assert.Equal(t, entity.OutcomeSuccess, attempts[0].Outcome)
	require.NotNil(t, attempts[0].UserID)
	assert.Equal(t, identity.ID, *attempts[0].UserID)
}

func TestLoginAuditService_CountByEmail_SpansBothTables(t *testing.T) {
	fx := createTestLoginAuditService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID:  &identity.ID,
		Email:   identity.Email,
		Outcome: entity.OutcomeFailed,
	}))
	require.NoError(t, fx.service.RecordAnonymous(ctx, &usecase.RecordAttemptInput{
		Email: "alice@example.com",
	}))

	count, err := fx.service.CountByEmail(ctx, "alice@example.com")

	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Listing stays identified-only; the anonymous record has no account.
	attempts, err := fx.service.ListByEmail(ctx, "alice@example.com", pageAll())
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestLoginAuditService_CountByEmailSince_ExcludesOldAttempts(t *testing.T) {
	fx := createTestLoginAuditService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Email: identity.Email, Outcome: entity.OutcomeFailed,
	}))

	fx.clock.Advance(2 * time.Hour)
	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Email: identity.Email, Outcome: entity.OutcomeFailed,
	}))

	windowed, err := fx.service.CountByEmailSince(ctx, "alice@example.com", testEpoch.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), windowed)

	all, err := fx.service.CountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), all)
}

func TestLoginAuditService_CountByAddress(t *testing.T) {
	fx := createTestLoginAuditService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Email: identity.Email, RemoteAddr: "203.0.113.9", Outcome: entity.OutcomeFailed,
	}))
	require.NoError(t, fx.service.RecordAnonymous(ctx, &usecase.RecordAttemptInput{
		Email: "ghost@example.com", RemoteAddr: "203.0.113.9",
	}))
	require.NoError(t, fx.service.RecordAnonymous(ctx, &usecase.RecordAttemptInput{
		Email: "ghost@example.com", RemoteAddr: "198.51.100.1",
	}))

	count, err := fx.service.CountByAddress(ctx, "203.0.113.9")

	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestLoginAuditService_CountRecentFailures_OnlyFailedInWindow(t *testing.T) {
	fx := createTestLoginAuditService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	// A failure that will fall outside the window.
	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Nickname: "alice", Outcome: entity.OutcomeFailed,
	}))

	fx.clock.Advance(2 * time.Hour)
	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Nickname: "alice", Outcome: entity.OutcomeFailed,
	}))
	// A success inside the window does not count as a failure.
	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Nickname: "alice", Outcome: entity.OutcomeSuccess,
	}))

	count, err := fx.service.CountRecentFailures(ctx, "alice", time.Hour)

	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLoginAuditService_CountRecentFailures_DefaultWindow(t *testing.T) {
	fx := createTestLoginAuditServiceWithConfig(t, &config.Config{
		Auth: config.AuthConfig{ThrottleWindow: time.Hour},
	})
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Nickname: "alice", Outcome: entity.OutcomeFailed,
	}))
	fx.clock.Advance(2 * time.Hour)
	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Nickname: "alice", Outcome: entity.OutcomeFailed,
	}))

	// A zero window falls back to the configured one-hour window, which only
	// the second failure fits.
	count, err := fx.service.CountRecentFailures(ctx, "alice", 0)

	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLoginAuditService_IsThrottled_Threshold(t *testing.T) {
	fx := createTestLoginAuditServiceWithConfig(t, &config.Config{
		Auth: config.AuthConfig{ThrottleMaxFailures: 2, ThrottleWindow: time.Hour},
	})
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Nickname: "alice", Outcome: entity.OutcomeFailed,
	}))

	throttled, err := fx.service.IsThrottled(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, throttled)

	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Nickname: "alice", Outcome: entity.OutcomeFailed,
	}))

	throttled, err = fx.service.IsThrottled(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, throttled)
}

func TestLoginAuditService_IsThrottled_IgnoresOldFailures(t *testing.T) {
	fx := createTestLoginAuditServiceWithConfig(t, &config.Config{
		Auth: config.AuthConfig{ThrottleMaxFailures: 1, ThrottleWindow: time.Hour},
	})
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Nickname: "alice", Outcome: entity.OutcomeFailed,
	}))

	fx.clock.Advance(2 * time.Hour)

	throttled, err := fx.service.IsThrottled(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, throttled)
}

func TestLoginAuditService_ListByNickname_NewestFirst(t *testing.T) {
	fx := createTestLoginAuditService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	for i := 0; i < 3; i++ {
		require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
			UserID: &identity.ID, Nickname: "alice", Outcome: entity.OutcomeFailed,
		}))
		fx.clock.Advance(time.Minute)
	}

	attempts, err := fx.service.ListByNickname(ctx, "alice", pageAll())

	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.True(t, attempts[0].AttemptedAt.After(attempts[1].AttemptedAt))
	assert.True(t, attempts[1].AttemptedAt.After(attempts[2].AttemptedAt))
}

func TestLoginAuditService_ListBetween(t *testing.T) {
	fx := createTestLoginAuditService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Email: identity.Email, Outcome: entity.OutcomeFailed,
	}))
	fx.clock.Advance(time.Hour)
	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Email: identity.Email, Outcome: entity.OutcomeSuccess,
	}))

	attempts, err := fx.service.ListBetween(ctx, testEpoch.Add(30*time.Minute), testEpoch.Add(2*time.Hour), pageAll())

	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, entity.OutcomeSuccess, attempts[0].Outcome)
}

func TestLoginAuditService_ListByNickname_Pagination(t *testing.T) {
	fx := createTestLoginAuditService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	for i := 0; i < 5; i++ {
		require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
			UserID: &identity.ID, Nickname: "alice", Outcome: entity.OutcomeFailed,
		}))
		fx.clock.Advance(time.Minute)
	}

	first, err := fx.service.ListByNickname(ctx, "alice", repository.Page{Offset: 0, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := fx.service.ListByNickname(ctx, "alice", repository.Page{Offset: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second, 2)

	assert.True(t, first[1].AttemptedAt.After(second[0].AttemptedAt))
}

func TestLoginAuditService_DeleteBefore(t *testing.T) {
	fx := createTestLoginAuditService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Email: identity.Email, Outcome: entity.OutcomeFailed,
	}))
	require.NoError(t, fx.service.RecordAnonymous(ctx, &usecase.RecordAttemptInput{
		Email: "ghost@example.com",
	}))

	fx.clock.Advance(48 * time.Hour)
	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Email: identity.Email, Outcome: entity.OutcomeSuccess,
	}))

	removed, err := fx.service.DeleteBefore(ctx, testEpoch.Add(24*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	remaining, err := fx.service.CountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}

func TestLoginAuditService_EnforceRetention(t *testing.T) {
	fx := createTestLoginAuditServiceWithConfig(t, &config.Config{
		Retention: config.RetentionConfig{LoginAttempts: 24 * time.Hour},
	})
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Email: identity.Email, Outcome: entity.OutcomeFailed,
	}))

	fx.clock.Advance(48 * time.Hour)
	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Email: identity.Email, Outcome: entity.OutcomeSuccess,
	}))

	removed, err := fx.service.EnforceRetention(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := fx.service.CountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}

func TestLoginAuditService_EnforceRetention_ZeroKeepsEverything(t *testing.T) {
	fx := createTestLoginAuditService(t)
	ctx := context.Background()
	identity := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)

	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &identity.ID, Email: identity.Email, Outcome: entity.OutcomeFailed,
	}))
	fx.clock.Advance(1000 * time.Hour)

	removed, err := fx.service.EnforceRetention(ctx)

	require.NoError(t, err)
	assert.Zero(t, removed)

	count, err := fx.service.CountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLoginAuditService_DeleteByEmailBefore_ScopedToEmail(t *testing.T) {
	fx := createTestLoginAuditService(t)
	ctx := context.Background()
	alice := seedIdentity(fx.db, "alice", "alice@example.com", "Password123", true)
	bob := seedIdentity(fx.db, "bob", "bob@example.com", "Password123", true)

	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &alice.ID, Email: alice.Email, Outcome: entity.OutcomeFailed,
	}))
	require.NoError(t, fx.service.RecordIdentified(ctx, &usecase.RecordAttemptInput{
		UserID: &bob.ID, Email: bob.Email, Outcome: entity.OutcomeFailed,
	}))

	fx.clock.Advance(time.Hour)
	removed, err := fx.service.DeleteByEmailBefore(ctx, "alice@example.com", fx.clock.Now())

	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	bobCount, err := fx.service.CountByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), bobCount)
}
