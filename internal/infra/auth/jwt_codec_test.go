package auth

import (
	"testing"
	"time"

	"gatekeeper/config"
	domainerrors "gatekeeper/internal/domain/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// fakeClock returns a controllable instant so expiry can be simulated
// without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SecretKey.Access = "test_access_secret_key_very_long_for_testing"
	cfg.Token.AccessTTL = time.Minute * 15
	return cfg
}

func TestJWTCodec_IssueAndVerify(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := NewJWTCodec(newTestConfig(), clock)
	assert.NoError(t, err)
	assert.NotNil(t, codec)

	userID := uuid.New()
	roles := []string{"ROLE_USER", "ROLE_ADMIN"}

	token, err := codec.Issue(userID, roles, time.Minute*15)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := codec.Verify(token)
	assert.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, roles, claims.Roles)
	assert.Equal(t, clock.now.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, clock.now.Add(time.Minute*15).Unix(), claims.ExpiresAt.Unix())
}

func TestJWTCodec_ExpiredToken(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := NewJWTCodec(newTestConfig(), clock)
	assert.NoError(t, err)

	token, err := codec.Issue(uuid.New(), []string{"ROLE_USER"}, time.Minute)
	assert.NoError(t, err)

	// Still valid just before expiry
	clock.now = clock.now.Add(time.Second * 59)
	_, err = codec.Verify(token)
	assert.NoError(t, err)

	// Rejected once the clock passes expiry
	clock.now = clock.now.Add(time.Minute)
	claims, err := codec.Verify(token)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, domainerrors.ErrTokenExpired)
}

func TestJWTCodec_WrongSignature(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := NewJWTCodec(newTestConfig(), clock)
	assert.NoError(t, err)

	otherCfg := newTestConfig()
	otherCfg.SecretKey.Access = "a_completely_different_secret_key_value"
	otherCodec, err := NewJWTCodec(otherCfg, clock)
	assert.NoError(t, err)

	token, err := otherCodec.Issue(uuid.New(), nil, time.Minute*15)
	assert.NoError(t, err)

	claims, err := codec.Verify(token)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, domainerrors.ErrTokenSignature)
}

func TestJWTCodec_MalformedToken(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec, err := NewJWTCodec(newTestConfig(), clock)
	assert.NoError(t, err)

	claims, err := codec.Verify("clearly-not-a-jwt-token-format")
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, domainerrors.ErrTokenMalformed)
}

func TestJWTCodec_EmptyToken(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec, err := NewJWTCodec(newTestConfig(), clock)
	assert.NoError(t, err)

	claims, err := codec.Verify("")
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, domainerrors.ErrTokenEmpty)
}

func TestJWTCodec_EmptySecret(t *testing.T) {
	cfg := newTestConfig()
	cfg.SecretKey.Access = ""

	codec, err := NewJWTCodec(cfg, &fakeClock{now: time.Now()})
	assert.Error(t, err)
	assert.Nil(t, codec)
	assert.Contains(t, err.Error(), "jwt secret must be provided")
}

func TestJWTCodec_AccessTokenTTL(t *testing.T) {
	codec, err := NewJWTCodec(newTestConfig(), &fakeClock{now: time.Now()})
	assert.NoError(t, err)
	assert.Equal(t, time.Minute*15, codec.AccessTokenTTL())
}
