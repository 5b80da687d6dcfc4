// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"time"

	"gatekeeper/internal/domain/entity"
	domainerrors "gatekeeper/internal/domain/errors"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// sessionRepository implements the domain.SessionRepository interface.
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository is the constructor for sessionRepository.
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Create persists a new session at login time.
func (repo *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	sessionM := fromSessionDomain(session)

	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrIdentityNotFound.WrapMessage("invalid account reference")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create session")
	}

	session.ID = sessionM.ID

	return nil
}

// FindByID retrieves a session by its opaque identifier.
func (repo *sessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	var sessionM model.SessionModel
	err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&sessionM).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, errors.WithStack(err)
	}

	return toSessionDomain(&sessionM), nil
}

// FindByUserID returns sessions for an account, newest first.
func (repo *sessionRepository) FindByUserID(ctx context.Context, userID uuid.UUID, page repository.Page) ([]*entity.Session, error) {
	var sessionModels []*model.SessionModel
	err := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&sessionModels).Error

	if err != nil {
		return nil, errors.WithStack(err)
	}

	sessions := make([]*entity.Session, 0, len(sessionModels))
	for _, sessionM := range sessionModels {
		sessions = append(sessions, toSessionDomain(sessionM))
	}

	return sessions, nil
}

// Close marks a session LOGGED_OUT and stamps its end time.
func (repo *sessionRepository) Close(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":   string(entity.SessionLoggedOut),
			"ended_at": endedAt,
		})

	if err := result.Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to close session")
	}

	if result.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}

	return nil
}

// ExpireStartedBefore marks still-ACTIVE sessions older than the cutoff as EXPIRED.
func (repo *sessionRepository) ExpireStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("status = ? AND started_at < ?", string(entity.SessionActive), cutoff).
		Updates(map[string]any{
			"status":   string(entity.SessionExpired),
			"ended_at": cutoff,
		})

	if err := result.Error; err != nil {
		return 0, errors.WithStack(err)
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

func toSessionDomain(data *model.SessionModel) *entity.Session {
	if data == nil {
		return nil
	}

	return &entity.Session{
		ID:         data.ID,
		UserID:     data.UserID,
		StartedAt:  data.StartedAt,
		EndedAt:    data.EndedAt,
		RemoteAddr: data.RemoteAddr,
		UserAgent:  data.UserAgent,
		Status:     entity.SessionStatus(data.Status),
	}
}

func fromSessionDomain(data *entity.Session) *model.SessionModel {
	if data == nil {
		return nil
	}

	return &model.SessionModel{
		ID:         data.ID,
		UserID:     data.UserID,
		StartedAt:  data.StartedAt,
		EndedAt:    data.EndedAt,
		RemoteAddr: data.RemoteAddr,
		UserAgent:  data.UserAgent,
		Status:     string(data.Status),
	}
}
