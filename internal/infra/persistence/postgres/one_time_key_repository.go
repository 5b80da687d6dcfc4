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

// oneTimeKeyRepository implements the domain.OneTimeKeyRepository interface.
// A NULL consumed_at means the key is live; MarkConsumed with its
// RowsAffected guard is the consumption primitive.
type oneTimeKeyRepository struct {
	db *gorm.DB
}

// NewOneTimeKeyRepository is the constructor for oneTimeKeyRepository.
func NewOneTimeKeyRepository(db *gorm.DB) repository.OneTimeKeyRepository {
	return &oneTimeKeyRepository{db: db}
}

// Create persists a newly issued key.
func (repo *oneTimeKeyRepository) Create(ctx context.Context, key *entity.OneTimeKey) error {
	keyM := fromOneTimeKeyDomain(key)

	if err := repo.db.WithContext(ctx).Create(keyM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrConflict.WrapMessage("key already issued for this account and purpose")
		}
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrIdentityNotFound.WrapMessage("invalid account reference")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create one-time key")
	}

	key.ID = keyM.ID
	key.CreatedAt = keyM.CreatedAt

	return nil
}

// FindByID retrieves a key row by its unique ID.
func (repo *oneTimeKeyRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.OneTimeKey, error) {
	var keyM model.OneTimeKeyModel
	err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&keyM).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrOneTimeKeyNotFound
		}

		return nil, errors.WithStack(err)
	}

	return toOneTimeKeyDomain(&keyM), nil
}

// MarkConsumed stamps a live key row as spent. A zero RowsAffected means a
// concurrent consumer already spent the key.
func (repo *oneTimeKeyRepository) MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.OneTimeKeyModel{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", at)

	if err := result.Error; err != nil {
		return errors.WithStack(err)
	}

	if result.RowsAffected == 0 {
		return repository.ErrOneTimeKeyNotFound
	}

	return nil
}

// DeleteByUserAndPurpose removes any outstanding keys of one purpose for an account.
func (repo *oneTimeKeyRepository) DeleteByUserAndPurpose(ctx context.Context, userID uuid.UUID, purpose entity.KeyPurpose) error {
	if err := repo.db.WithContext(ctx).
		Where("user_id = ? AND purpose = ?", userID, string(purpose)).
		Delete(&model.OneTimeKeyModel{}).Error; err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// DeleteCreatedBefore removes keys of the given purpose issued before the cutoff.
func (repo *oneTimeKeyRepository) DeleteCreatedBefore(ctx context.Context, purpose entity.KeyPurpose, cutoff time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("purpose = ? AND created_at < ?", string(purpose), cutoff).
		Delete(&model.OneTimeKeyModel{})

	if err := result.Error; err != nil {
		return 0, errors.WithStack(err)
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

// toOneTimeKeyDomain converts a GORM OneTimeKeyModel to a domain OneTimeKey entity.
func toOneTimeKeyDomain(data *model.OneTimeKeyModel) *entity.OneTimeKey {
	if data == nil {
		return nil
	}

	return &entity.OneTimeKey{
		ID:         data.ID,
		UserID:     data.UserID,
		KeyValue:   data.KeyValue,
		CreatedAt:  data.CreatedAt,
		ConsumedAt: data.ConsumedAt,
		Purpose:    entity.KeyPurpose(data.Purpose),
	}
}

// fromOneTimeKeyDomain converts a domain OneTimeKey entity to a GORM OneTimeKeyModel.
func fromOneTimeKeyDomain(data *entity.OneTimeKey) *model.OneTimeKeyModel {
	if data == nil {
		return nil
	}

	return &model.OneTimeKeyModel{
		ID:         data.ID,
		UserID:     data.UserID,
		Purpose:    string(data.Purpose),
		KeyValue:   data.KeyValue,
		CreatedAt:  data.CreatedAt,
		ConsumedAt: data.ConsumedAt,
	}
}
