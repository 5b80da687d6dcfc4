package impl

import (
	"context"
	"errors"
	"sync"
	"time"

	"gatekeeper/internal/domain/entity"
	domainerrors "gatekeeper/internal/domain/errors"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/domain/service"

	"github.com/google/uuid"
)

// The mock suite for these services is an in-memory database plus small
// deterministic stand-ins for the codec, hasher, key generator, and clock.
// Behavioral fakes keep the single-use and one-live-token invariants
// observable across calls, which expectation mocks cannot do.

// --- Clock ---

// fakeClock is a settable clock so tests can simulate the passage of time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Token codec / hasher / key generator stubs ---

type stubTokenCodec struct{}

func (stubTokenCodec) Issue(subjectID uuid.UUID, roles []string, ttl time.Duration) (string, error) {
	return "access-" + subjectID.String(), nil
}

func (stubTokenCodec) Verify(token string) (*service.Claims, error) {
	return nil, domainerrors.ErrTokenMalformed
}

func (stubTokenCodec) AccessTokenTTL() time.Duration {
	return 15 * time.Minute
}

// stubHasher hashes by prefixing, which keeps password checks readable in
// test assertions.
type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (stubHasher) Check(hash, password string) bool {
	return hash == "hashed:"+password
}

func (stubHasher) ValidateStrength(password string) error {
	if len(password) < 8 {
		return domainerrors.ErrPasswordStrength
	}

	return nil
}

type uuidKeyGen struct{}

func (uuidKeyGen) NewKey() string {
	return uuid.NewString()
}

func (uuidKeyGen) ValidShape(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(value)

	return err == nil
}

// --- Event publisher spy ---

type spyPublisher struct {
	mu     sync.Mutex
	events []*service.AuthEvent
}

func (p *spyPublisher) PublishAuthEvent(ctx context.Context, event *service.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)

	return nil
}

func (p *spyPublisher) Close() error { return nil }

// eventTypes snapshots the published event types. Publishes run on detached
// goroutines, so assertions on this usually poll.
func (p *spyPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}

	return types
}

// --- In-memory persistence ---

// memDB backs every fake repository. One mutex serializes all access, which
// stands in for the transaction isolation the real store provides.
type memDB struct {
	mu sync.Mutex

	identities map[uuid.UUID]*entity.Identity
	tokens     map[uuid.UUID]*entity.RefreshToken
	keys       map[uuid.UUID]*entity.OneTimeKey
	attempts   []*entity.LoginAttempt
	anonymous  []*entity.FailedLoginAttempt
	sessions   map[uuid.UUID]*entity.Session

	attemptSeq int64
}

func newMemDB() *memDB {
	return &memDB{
		identities: make(map[uuid.UUID]*entity.Identity),
		tokens:     make(map[uuid.UUID]*entity.RefreshToken),
		keys:       make(map[uuid.UUID]*entity.OneTimeKey),
		sessions:   make(map[uuid.UUID]*entity.Session),
	}
}

// memTxManager satisfies TransactionManager by running the function against
// the shared store under its lock. An error from the callback restores the
// store to its pre-transaction snapshot, matching the real manager's
// rollback semantics.
type memTxManager struct {
	db *memDB
}

func (m *memTxManager) Execute(ctx context.Context, fn func(repository.RepositoryFactory) error) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	saved := m.db.snapshot()
	if err := fn(&memFactory{db: m.db}); err != nil {
		m.db.restore(saved)

		return err
	}

	return nil
}

func cloneMap[K comparable, V any](src map[K]*V) map[K]*V {
	dst := make(map[K]*V, len(src))
	for k, v := range src {
		copied := *v
		dst[k] = &copied
	}

	return dst
}

func cloneSlice[V any](src []*V) []*V {
	dst := make([]*V, 0, len(src))
	for _, v := range src {
		copied := *v
		dst = append(dst, &copied)
	}

	return dst
}

// snapshot deep-copies the store. Callers must hold the mutex.
func (db *memDB) snapshot() *memDB {
	return &memDB{
		identities: cloneMap(db.identities),
		tokens:     cloneMap(db.tokens),
		keys:       cloneMap(db.keys),
		attempts:   cloneSlice(db.attempts),
		anonymous:  cloneSlice(db.anonymous),
		sessions:   cloneMap(db.sessions),
		attemptSeq: db.attemptSeq,
	}
}

func (db *memDB) restore(saved *memDB) {
	db.identities = saved.identities
	db.tokens = saved.tokens
	db.keys = saved.keys
	db.attempts = saved.attempts
	db.anonymous = saved.anonymous
	db.sessions = saved.sessions
	db.attemptSeq = saved.attemptSeq
}

type memFactory struct {
	db *memDB
}

func (f *memFactory) IdentityRepo() repository.IdentityRepository {
	return &memIdentityRepo{db: f.db}
}

func (f *memFactory) RefreshTokenRepo() repository.RefreshTokenRepository {
	return &memRefreshTokenRepo{db: f.db}
}

func (f *memFactory) OneTimeKeyRepo() repository.OneTimeKeyRepository {
	return &memOneTimeKeyRepo{db: f.db}
}

func (f *memFactory) LoginAttemptRepo() repository.LoginAttemptRepository {
	return &memLoginAttemptRepo{db: f.db}
}

func (f *memFactory) SessionRepo() repository.SessionRepository {
	return &memSessionRepo{db: f.db}
}

// --- Identity repository ---

type memIdentityRepo struct {
	db *memDB
}

func (r *memIdentityRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Identity, error) {
	identity, ok := r.db.identities[id]
	if !ok {
		return nil, repository.ErrIdentityNotFound
	}
	copied := *identity

	return &copied, nil
}

func (r *memIdentityRepo) FindByEmail(ctx context.Context, email string) (*entity.Identity, error) {
	for _, identity := range r.db.identities {
		if identity.Email == email {
			copied := *identity

			return &copied, nil
		}
	}

	return nil, repository.ErrIdentityNotFound
}

func (r *memIdentityRepo) FindByNickname(ctx context.Context, nickname string) (*entity.Identity, error) {
	for _, identity := range r.db.identities {
		if identity.Nickname == nickname {
			copied := *identity

			return &copied, nil
		}
	}

	return nil, repository.ErrIdentityNotFound
}

func (r *memIdentityRepo) Create(ctx context.Context, identity *entity.Identity) error {
	for _, existing := range r.db.identities {
		if existing.Email == identity.Email || existing.Nickname == identity.Nickname {
			return repository.ErrDuplicateIdentity
		}
	}

	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	copied := *identity
	r.db.identities[identity.ID] = &copied

	return nil
}

func (r *memIdentityRepo) UpdateNickname(ctx context.Context, id uuid.UUID, nickname string) error {
	for otherID, other := range r.db.identities {
		if otherID != id && other.Nickname == nickname {
			return repository.ErrDuplicateIdentity
		}
	}

	return r.update(id, func(identity *entity.Identity) { identity.Nickname = nickname })
}

func (r *memIdentityRepo) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	for otherID, other := range r.db.identities {
		if otherID != id && other.Email == email {
			return repository.ErrDuplicateIdentity
		}
	}

	return r.update(id, func(identity *entity.Identity) { identity.Email = email })
}

func (r *memIdentityRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.update(id, func(identity *entity.Identity) { identity.PasswordHash = passwordHash })
}

func (r *memIdentityRepo) UpdateLanguage(ctx context.Context, id uuid.UUID, language string) error {
	return r.update(id, func(identity *entity.Identity) { identity.Language = language })
}

func (r *memIdentityRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	return r.update(id, func(identity *entity.Identity) { identity.Enabled = enabled })
}

func (r *memIdentityRepo) SetActivated(ctx context.Context, id uuid.UUID, activated bool) error {
	return r.update(id, func(identity *entity.Identity) { identity.Activated = activated })
}

func (r *memIdentityRepo) SetRoles(ctx context.Context, id uuid.UUID, roles entity.Roles) error {
	return r.update(id, func(identity *entity.Identity) { identity.Roles = roles })
}

func (r *memIdentityRepo) AcquireRowLock(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.db.identities[id]; !ok {
		return repository.ErrIdentityNotFound
	}

	return nil
}

func (r *memIdentityRepo) update(id uuid.UUID, mutate func(*entity.Identity)) error {
	identity, ok := r.db.identities[id]
	if !ok {
		return repository.ErrIdentityNotFound
	}
	mutate(identity)

	return nil
}

// --- Refresh token repository ---

type memRefreshTokenRepo struct {
	db *memDB
}

func (r *memRefreshTokenRepo) Create(ctx context.Context, token *entity.RefreshToken) error {
	// Mirrors the unique index on user_id: a second live token for the same
	// account is a bug in the caller, not something to silently allow.
	for _, existing := range r.db.tokens {
		if existing.UserID == token.UserID {
			return errors.New("duplicate refresh token for user")
		}
	}

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	copied := *token
	r.db.tokens[token.ID] = &copied

	return nil
}

func (r *memRefreshTokenRepo) FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error) {
	for _, existing := range r.db.tokens {
		if existing.Token == token {
			copied := *existing

			return &copied, nil
		}
	}

	return nil, repository.ErrRefreshTokenNotFound
}

func (r *memRefreshTokenRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.RefreshToken, error) {
	existing, ok := r.db.tokens[id]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	copied := *existing

	return &copied, nil
}

func (r *memRefreshTokenRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.RefreshToken, error) {
	for _, existing := range r.db.tokens {
		if existing.UserID == userID {
			copied := *existing

			return &copied, nil
		}
	}

	return nil, repository.ErrRefreshTokenNotFound
}

func (r *memRefreshTokenRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.db.tokens[id]; !ok {
		return repository.ErrRefreshTokenNotFound
	}
	delete(r.db.tokens, id)

	return nil
}

func (r *memRefreshTokenRepo) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	for id, existing := range r.db.tokens {
		if existing.UserID == userID {
			delete(r.db.tokens, id)
		}
	}

	return nil
}

func (r *memRefreshTokenRepo) DeleteAll(ctx context.Context) error {
	r.db.tokens = make(map[uuid.UUID]*entity.RefreshToken)

	return nil
}

func (r *memRefreshTokenRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	for id, existing := range r.db.tokens {
		if existing.ExpiryDate.Before(cutoff) {
			delete(r.db.tokens, id)
			removed++
		}
	}

	return removed, nil
}

// --- One-time key repository ---

type memOneTimeKeyRepo struct {
	db *memDB
}

func (r *memOneTimeKeyRepo) Create(ctx context.Context, key *entity.OneTimeKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	copied := *key
	r.db.keys[key.ID] = &copied

	return nil
}

func (r *memOneTimeKeyRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.OneTimeKey, error) {
	existing, ok := r.db.keys[id]
	if !ok {
		return nil, repository.ErrOneTimeKeyNotFound
	}
	copied := *existing

	return &copied, nil
}

func (r *memOneTimeKeyRepo) MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error {
	existing, ok := r.db.keys[id]
	if !ok || existing.ConsumedAt != nil {
		return repository.ErrOneTimeKeyNotFound
	}
	stamp := at
	existing.ConsumedAt = &stamp

	return nil
}

func (r *memOneTimeKeyRepo) DeleteByUserAndPurpose(ctx context.Context, userID uuid.UUID, purpose entity.KeyPurpose) error {
	for id, existing := range r.db.keys {
		if existing.UserID == userID && existing.Purpose == purpose {
			delete(r.db.keys, id)
		}
	}

	return nil
}

func (r *memOneTimeKeyRepo) DeleteCreatedBefore(ctx context.Context, purpose entity.KeyPurpose, cutoff time.Time) (int64, error) {
	var removed int64
	for id, existing := range r.db.keys {
		if existing.Purpose == purpose && existing.CreatedAt.Before(cutoff) {
			delete(r.db.keys, id)
			removed++
		}
	}

	return removed, nil
}

// --- Login attempt repository ---

type memLoginAttemptRepo struct {
	db *memDB
}

func (r *memLoginAttemptRepo) CreateIdentified(ctx context.Context, attempt *entity.LoginAttempt) error {
	r.db.attemptSeq++
	attempt.ID = r.db.attemptSeq
	copied := *attempt
	r.db.attempts = append(r.db.attempts, &copied)

	return nil
}

func (r *memLoginAttemptRepo) CreateAnonymous(ctx context.Context, attempt *entity.FailedLoginAttempt) error {
	r.db.attemptSeq++
	attempt.ID = r.db.attemptSeq
	copied := *attempt
	r.db.anonymous = append(r.db.anonymous, &copied)

	return nil
}

func (r *memLoginAttemptRepo) CountByEmail(ctx context.Context, email string, since time.Time) (int64, error) {
	return r.countBoth(func(a *entity.LoginAttempt) bool { return a.Email == email },
		func(a *entity.FailedLoginAttempt) bool { return a.Email == email }, since), nil
}

func (r *memLoginAttemptRepo) CountByNickname(ctx context.Context, nickname string, since time.Time) (int64, error) {
	return r.countBoth(func(a *entity.LoginAttempt) bool { return a.Nickname == nickname },
		func(a *entity.FailedLoginAttempt) bool { return a.Nickname == nickname }, since), nil
}

func (r *memLoginAttemptRepo) CountByAddress(ctx context.Context, remoteAddr string, since time.Time) (int64, error) {
	return r.countBoth(func(a *entity.LoginAttempt) bool { return a.RemoteAddr == remoteAddr },
		func(a *entity.FailedLoginAttempt) bool { return a.RemoteAddr == remoteAddr }, since), nil
}

func (r *memLoginAttemptRepo) CountFailedByNickname(ctx context.Context, nickname string, since time.Time) (int64, error) {
	var count int64
	for _, attempt := range r.db.attempts {
		if attempt.Nickname == nickname && attempt.Outcome == entity.OutcomeFailed && inWindow(attempt.AttemptedAt, since) {
			count++
		}
	}

	return count, nil
}

func (r *memLoginAttemptRepo) ListByEmail(ctx context.Context, email string, page repository.Page) ([]*entity.LoginAttempt, error) {
	return r.list(func(a *entity.LoginAttempt) bool { return a.Email == email }, page), nil
}

func (r *memLoginAttemptRepo) ListByNickname(ctx context.Context, nickname string, page repository.Page) ([]*entity.LoginAttempt, error) {
	return r.list(func(a *entity.LoginAttempt) bool { return a.Nickname == nickname }, page), nil
}

func (r *memLoginAttemptRepo) ListByAddress(ctx context.Context, remoteAddr string, page repository.Page) ([]*entity.LoginAttempt, error) {
	return r.list(func(a *entity.LoginAttempt) bool { return a.RemoteAddr == remoteAddr }, page), nil
}

func (r *memLoginAttemptRepo) ListBetween(ctx context.Context, from, to time.Time, page repository.Page) ([]*entity.LoginAttempt, error) {
	return r.list(func(a *entity.LoginAttempt) bool {
		return !a.AttemptedAt.Before(from) && !a.AttemptedAt.After(to)
	}, page), nil
}

func (r *memLoginAttemptRepo) ListAnonymousByAddress(ctx context.Context, remoteAddr string, page repository.Page) ([]*entity.FailedLoginAttempt, error) {
	matched := make([]*entity.FailedLoginAttempt, 0)
	for i := len(r.db.anonymous) - 1; i >= 0; i-- {
		if r.db.anonymous[i].RemoteAddr == remoteAddr {
			copied := *r.db.anonymous[i]
			matched = append(matched, &copied)
		}
	}

	return paginate(matched, page), nil
}

func (r *memLoginAttemptRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteBoth(func(a *entity.LoginAttempt) bool { return a.AttemptedAt.Before(cutoff) },
		func(a *entity.FailedLoginAttempt) bool { return a.AttemptedAt.Before(cutoff) }), nil
}

func (r *memLoginAttemptRepo) DeleteByEmailBefore(ctx context.Context, email string, cutoff time.Time) (int64, error) {
	return r.deleteBoth(
		func(a *entity.LoginAttempt) bool { return a.Email == email && a.AttemptedAt.Before(cutoff) },
		func(a *entity.FailedLoginAttempt) bool { return a.Email == email && a.AttemptedAt.Before(cutoff) }), nil
}

func (r *memLoginAttemptRepo) DeleteByNicknameBefore(ctx context.Context, nickname string, cutoff time.Time) (int64, error) {
	return r.deleteBoth(
		func(a *entity.LoginAttempt) bool { return a.Nickname == nickname && a.AttemptedAt.Before(cutoff) },
		func(a *entity.FailedLoginAttempt) bool {
			return a.Nickname == nickname && a.AttemptedAt.Before(cutoff)
		}), nil
}

func (r *memLoginAttemptRepo) countBoth(matchIdentified func(*entity.LoginAttempt) bool, matchAnonymous func(*entity.FailedLoginAttempt) bool, since time.Time) int64 {
	var count int64
	for _, attempt := range r.db.attempts {
		if matchIdentified(attempt) && inWindow(attempt.AttemptedAt, since) {
			count++
		}
	}
	for _, attempt := range r.db.anonymous {
		if matchAnonymous(attempt) && inWindow(attempt.AttemptedAt, since) {
			count++
		}
	}

	return count
}

func (r *memLoginAttemptRepo) list(match func(*entity.LoginAttempt) bool, page repository.Page) []*entity.LoginAttempt {
	matched := make([]*entity.LoginAttempt, 0)
	for i := len(r.db.attempts) - 1; i >= 0; i-- {
		if match(r.db.attempts[i]) {
			copied := *r.db.attempts[i]
			matched = append(matched, &copied)
		}
	}

	return paginate(matched, page)
}

func (r *memLoginAttemptRepo) deleteBoth(matchIdentified func(*entity.LoginAttempt) bool, matchAnonymous func(*entity.FailedLoginAttempt) bool) int64 {
	var removed int64

	kept := r.db.attempts[:0]
	for _, attempt := range r.db.attempts {
		if matchIdentified(attempt) {
			removed++
		} else {
			kept = append(kept, attempt)
		}
	}
	r.db.attempts = kept

	keptAnon := r.db.anonymous[:0]
	for _, attempt := range r.db.anonymous {
		if matchAnonymous(attempt) {
			removed++
		} else {
			keptAnon = append(keptAnon, attempt)
		}
	}
	r.db.anonymous = keptAnon

	return removed
}

func inWindow(at, since time.Time) bool {
	return since.IsZero() || !at.Before(since)
}

func paginate[T any](items []T, page repository.Page) []T {
	if page.Offset >= len(items) {
		return nil
	}
	items = items[page.Offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}

	return items
}

// --- Session repository ---

type memSessionRepo struct {
	db *memDB
}

func (r *memSessionRepo) Create(ctx context.Context, session *entity.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	copied := *session
	r.db.sessions[session.ID] = &copied

	return nil
}

func (r *memSessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	existing, ok := r.db.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	copied := *existing

	return &copied, nil
}

func (r *memSessionRepo) FindByUserID(ctx context.Context, userID uuid.UUID, page repository.Page) ([]*entity.Session, error) {
	matched := make([]*entity.Session, 0)
	for _, session := range r.db.sessions {
		if session.UserID == userID {
			copied := *session
			matched = append(matched, &copied)
		}
	}
	for i := 0; i < len(matched); i++ {
		for j := i + 1; j < len(matched); j++ {
			if matched[j].StartedAt.After(matched[i].StartedAt) {
				matched[i], matched[j] = matched[j], matched[i]
			}
		}
	}

	return paginate(matched, page), nil
}

func (r *memSessionRepo) Close(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	session, ok := r.db.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	session.Status = entity.SessionLoggedOut
	session.EndedAt = &endedAt

	return nil
}

func (r *memSessionRepo) ExpireStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var changed int64
	for _, session := range r.db.sessions {
		if session.Status == entity.SessionActive && session.StartedAt.Before(cutoff) {
			session.Status = entity.SessionExpired
			ended := cutoff
			session.EndedAt = &ended
			changed++
		}
	}

	return changed, nil
}

// --- Shared seeding helpers ---

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seedIdentity(db *memDB, nickname, email, password string, activated bool) *entity.Identity {
	identity := &entity.Identity{
		ID:           uuid.New(),
		Nickname:     nickname,
		Email:        email,
		PasswordHash: "hashed:" + password,
		Enabled:      true,
		Activated:    activated,
		Roles:        entity.Roles{entity.RoleUser},
		CreatedAt:    testEpoch,
		UpdatedAt:    testEpoch,
	}
	db.identities[identity.ID] = identity

	return identity
}

func tokensForUser(db *memDB, userID uuid.UUID) []*entity.RefreshToken {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []*entity.RefreshToken
	for _, token := range db.tokens {
		if token.UserID == userID {
			copied := *token
			out = append(out, &copied)
		}
	}

	return out
}

func pageAll() repository.Page {
	return repository.Page{Offset: 0, Limit: 100}
}
