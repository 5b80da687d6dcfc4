// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"time"

	"gatekeeper/internal/domain/entity"
	domainerrors "gatekeeper/internal/domain/errors"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// loginAttemptRepository implements the domain.LoginAttemptRepository
// interface. Identified and anonymous attempts live in separate tables;
// count queries span both because throttling policy cares about the
// identifier, not about whether it resolved.
type loginAttemptRepository struct {
	db *gorm.DB
}

// NewLoginAttemptRepository is the constructor for loginAttemptRepository.
func NewLoginAttemptRepository(db *gorm.DB) repository.LoginAttemptRepository {
	return &loginAttemptRepository{db: db}
}

// CreateIdentified appends an attempt against a known account.
func (repo *loginAttemptRepository) CreateIdentified(ctx context.Context, attempt *entity.LoginAttempt) error {
	attemptM := fromLoginAttemptDomain(attempt)

	if err := repo.db.WithContext(ctx).Create(attemptM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to record login attempt")
	}

	attempt.ID = attemptM.ID

	return nil
}

// CreateAnonymous appends an attempt whose identifier resolved to nothing.
func (repo *loginAttemptRepository) CreateAnonymous(ctx context.Context, attempt *entity.FailedLoginAttempt) error {
	attemptM := fromFailedLoginAttemptDomain(attempt)

	if err := repo.db.WithContext(ctx).Create(attemptM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to record failed login attempt")
	}

	attempt.ID = attemptM.ID

	return nil
}

// CountByEmail counts attempts recorded for an email across both tables.
func (repo *loginAttemptRepository) CountByEmail(ctx context.Context, email string, since time.Time) (int64, error) {
	return repo.countBoth(ctx, "email = ?", email, since)
}

// CountByNickname counts attempts recorded for a nickname across both tables.
func (repo *loginAttemptRepository) CountByNickname(ctx context.Context, nickname string, since time.Time) (int64, error) {
	return repo.countBoth(ctx, "nickname = ?", nickname, since)
}

// CountByAddress counts attempts recorded from an origin address across both tables.
func (repo *loginAttemptRepository) CountByAddress(ctx context.Context, remoteAddr string, since time.Time) (int64, error) {
	return repo.countBoth(ctx, "remote_addr = ?", remoteAddr, since)
}

// CountFailedByNickname counts only FAILED identified attempts for a nickname.
// This is the lockout-policy query.
func (repo *loginAttemptRepository) CountFailedByNickname(ctx context.Context, nickname string, since time.Time) (int64, error) {
	query := repo.db.WithContext(ctx).
		Model(&model.LoginAttemptModel{}).
		Where("nickname = ? AND outcome = ?", nickname, string(entity.OutcomeFailed))
	if !since.IsZero() {
		query = query.Where("attempted_at >= ?", since)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, errors.WithStack(err)
	}

	return count, nil
}

// ListByEmail returns identified attempts for an email, newest first.
func (repo *loginAttemptRepository) ListByEmail(ctx context.Context, email string, page repository.Page) ([]*entity.LoginAttempt, error) {
	return repo.listIdentified(ctx, page, "email = ?", email)
}

// ListByNickname returns identified attempts for a nickname, newest first.
func (repo *loginAttemptRepository) ListByNickname(ctx context.Context, nickname string, page repository.Page) ([]*entity.LoginAttempt, error) {
	return repo.listIdentified(ctx, page, "nickname = ?", nickname)
}

// ListByAddress returns identified attempts from an address, newest first.
func (repo *loginAttemptRepository) ListByAddress(ctx context.Context, remoteAddr string, page repository.Page) ([]*entity.LoginAttempt, error) {
	return repo.listIdentified(ctx, page, "remote_addr = ?", remoteAddr)
}

// ListBetween returns identified attempts inside a time range, newest first.
func (repo *loginAttemptRepository) ListBetween(ctx context.Context, from, to time.Time, page repository.Page) ([]*entity.LoginAttempt, error) {
	return repo.listIdentified(ctx, page, "attempted_at >= ? AND attempted_at <= ?", from, to)
}

// ListAnonymousByAddress returns anonymous attempts from an address, newest first.
func (repo *loginAttemptRepository) ListAnonymousByAddress(ctx context.Context, remoteAddr string, page repository.Page) ([]*entity.FailedLoginAttempt, error) {
	var attemptModels []*model.FailedLoginAttemptModel
	err := repo.db.WithContext(ctx).
		Where("remote_addr = ?", remoteAddr).
		Order("attempted_at DESC").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&attemptModels).Error

	if err != nil {
		return nil, errors.WithStack(err)
	}

	attempts := make([]*entity.FailedLoginAttempt, 0, len(attemptModels))
	for _, attemptM := range attemptModels {
		attempts = append(attempts, toFailedLoginAttemptDomain(attemptM))
	}

	return attempts, nil
}

// DeleteBefore removes all attempt rows older than the cutoff.
func (repo *loginAttemptRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	identified := repo.db.WithContext(ctx).
		Where("attempted_at < ?", cutoff).
		Delete(&model.LoginAttemptModel{})
	if err := identified.Error; err != nil {
		return 0, errors.WithStack(err)
	}

	anonymous := repo.db.WithContext(ctx).
		Where("attempted_at < ?", cutoff).
		Delete(&model.FailedLoginAttemptModel{})
	if err := anonymous.Error; err != nil {
		return identified.RowsAffected, errors.WithStack(err)
	}

	return identified.RowsAffected + anonymous.RowsAffected, nil
}

// DeleteByEmailBefore removes attempt rows for one email older than the cutoff.
func (repo *loginAttemptRepository) DeleteByEmailBefore(ctx context.Context, email string, cutoff time.Time) (int64, error) {
	return repo.deleteBothBefore(ctx, "email = ?", email, cutoff)
}

// DeleteByNicknameBefore removes attempt rows for one nickname older than the cutoff.
func (repo *loginAttemptRepository) DeleteByNicknameBefore(ctx context.Context, nickname string, cutoff time.Time) (int64, error) {
	return repo.deleteBothBefore(ctx, "nickname = ?", nickname, cutoff)
}

func (repo *loginAttemptRepository) countBoth(ctx context.Context, cond string, value string, since time.Time) (int64, error) {
	identifiedQuery := repo.db.WithContext(ctx).
		Model(&model.LoginAttemptModel{}).
		Where(cond, value)
	anonymousQuery := repo.db.WithContext(ctx).
		Model(&model.FailedLoginAttemptModel{}).
		Where(cond, value)
	if !since.IsZero() {
		identifiedQuery = identifiedQuery.Where("attempted_at >= ?", since)
		anonymousQuery = anonymousQuery.Where("attempted_at >= ?", since)
	}

	var identified int64
	if err := identifiedQuery.Count(&identified).Error; err != nil {
		return 0, errors.WithStack(err)
	}

	var anonymous int64
	if err := anonymousQuery.Count(&anonymous).Error; err != nil {
		return 0, errors.WithStack(err)
	}

	return identified + anonymous, nil
}

func (repo *loginAttemptRepository) listIdentified(ctx context.Context, page repository.Page, cond string, args ...any) ([]*entity.LoginAttempt, error) {
	var attemptModels []*model.LoginAttemptModel
	err := repo.db.WithContext(ctx).
		Where(cond, args...).
		Order("attempted_at DESC").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&attemptModels).Error

	if err != nil {
		return nil, errors.WithStack(err)
	}

	attempts := make([]*entity.LoginAttempt, 0, len(attemptModels))
	for _, attemptM := range attemptModels {
		attempts = append(attempts, toLoginAttemptDomain(attemptM))
	}

	return attempts, nil
}

func (repo *loginAttemptRepository) deleteBothBefore(ctx context.Context, cond string, value string, cutoff time.Time) (int64, error) {
	identified := repo.db.WithContext(ctx).
		Where(cond, value).
		Where("attempted_at < ?", cutoff).
		Delete(&model.LoginAttemptModel{})
	if err := identified.Error; err != nil {
		return 0, errors.WithStack(err)
	}

	anonymous := repo.db.WithContext(ctx).
		Where(cond, value).
		Where("attempted_at < ?", cutoff).
		Delete(&model.FailedLoginAttemptModel{})
	if err := anonymous.Error; err != nil {
		return identified.RowsAffected, errors.WithStack(err)
	}

	return identified.RowsAffected + anonymous.RowsAffected, nil
}

// --- Mapper Functions ---

func toLoginAttemptDomain(data *model.LoginAttemptModel) *entity.LoginAttempt {
	if data == nil {
		return nil
	}

	return &entity.LoginAttempt{
		ID:          data.ID,
		UserID:      data.UserID,
		Email:       data.Email,
		Nickname:    data.Nickname,
		AttemptedAt: data.AttemptedAt,
		RemoteAddr:  data.RemoteAddr,
		UserAgent:   data.UserAgent,
		Outcome:     entity.AttemptOutcome(data.Outcome),
	}
}

func fromLoginAttemptDomain(data *entity.LoginAttempt) *model.LoginAttemptModel {
	if data == nil {
		return nil
	}

	return &model.LoginAttemptModel{
		ID:          data.ID,
		UserID:      data.UserID,
		Email:       data.Email,
		Nickname:    data.Nickname,
		AttemptedAt: data.AttemptedAt,
		RemoteAddr:  data.RemoteAddr,
		UserAgent:   data.UserAgent,
		Outcome:     string(data.Outcome),
	}
}

func toFailedLoginAttemptDomain(data *model.FailedLoginAttemptModel) *entity.FailedLoginAttempt {
	if data == nil {
		return nil
	}

	return &entity.FailedLoginAttempt{
		ID:          data.ID,
		Email:       data.Email,
		Nickname:    data.Nickname,
		AttemptedAt: data.AttemptedAt,
		RemoteAddr:  data.RemoteAddr,
		UserAgent:   data.UserAgent,
	}
}

func fromFailedLoginAttemptDomain(data *entity.FailedLoginAttempt) *model.FailedLoginAttemptModel {
	if data == nil {
		return nil
	}

	return &model.FailedLoginAttemptModel{
		ID:          data.ID,
		Email:       data.Email,
		Nickname:    data.Nickname,
		AttemptedAt: data.AttemptedAt,
		RemoteAddr:  data.RemoteAddr,
		UserAgent:   data.UserAgent,
	}
}
