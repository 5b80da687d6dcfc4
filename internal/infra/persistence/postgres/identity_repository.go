// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"

	"gatekeeper/internal/domain/entity"
	domainerrors "gatekeeper/internal/domain/errors"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// identityRepository implements the domain.IdentityRepository interface using GORM.
type identityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository is the constructor for identityRepository.
// It returns the repository as a domain interface, adhering to dependency inversion.
func NewIdentityRepository(db *gorm.DB) repository.IdentityRepository {
	return &identityRepository{db: db}
}

// FindByID retrieves a single account by its unique ID.
func (repo *identityRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Identity, error) {
	var identityM model.IdentityModel
	err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&identityM).Error

	if err != nil {
		// If the error is 'record not found', return a domain-specific error.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrIdentityNotFound
		}

		return nil, errors.Wrap(err, "failed to find identity by id")
	}

	return toIdentityDomain(&identityM), nil
}

// FindByEmail retrieves a single account by its email address.
func (repo *identityRepository) FindByEmail(ctx context.Context, email string) (*entity.Identity, error) {
	var identityM model.IdentityModel
	err := repo.db.WithContext(ctx).
		Where("email = ?", email).
		First(&identityM).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrIdentityNotFound
		}

		return nil, errors.Wrap(err, "failed to find identity by email")
	}

	return toIdentityDomain(&identityM), nil
}

// FindByNickname retrieves a single account by its nickname.
func (repo *identityRepository) FindByNickname(ctx context.Context, nickname string) (*entity.Identity, error) {
	var identityM model.IdentityModel
	err := repo.db.WithContext(ctx).
		Where("nickname = ?", nickname).
		First(&identityM).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrIdentityNotFound
		}

		return nil, errors.Wrap(err, "failed to find identity by nickname")
	}

	return toIdentityDomain(&identityM), nil
}

// Create persists a new account.
func (repo *identityRepository) Create(ctx context.Context, identity *entity.Identity) error {
	identityM := fromIdentityDomain(identity)

	if err := repo.db.WithContext(ctx).Create(identityM).Error; err != nil {
		// Convert PostgreSQL errors to domain errors
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicateIdentity
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrIdentityCreationFailed.WrapMessage("missing required account information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create identity")
	}

	// Update the entity with generated values
	identity.ID = identityM.ID
	identity.CreatedAt = identityM.CreatedAt
	identity.UpdatedAt = identityM.UpdatedAt

	return nil
}

// UpdateNickname replaces the account's nickname.
func (repo *identityRepository) UpdateNickname(ctx context.Context, id uuid.UUID, nickname string) error {
	return repo.updateColumn(ctx, id, "nickname", nickname)
}

// UpdateEmail replaces the account's email address.
func (repo *identityRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	return repo.updateColumn(ctx, id, "email", email)
}

// UpdatePassword replaces the stored password hash.
func (repo *identityRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return repo.updateColumn(ctx, id, "password_hash", passwordHash)
}

// UpdateLanguage replaces the preferred language tag.
func (repo *identityRepository) UpdateLanguage(ctx context.Context, id uuid.UUID, language string) error {
	return repo.updateColumn(ctx, id, "language", language)
}

// SetEnabled flips the administrative status flag.
func (repo *identityRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	return repo.updateColumn(ctx, id, "enabled", enabled)
}

// SetActivated flips the activation flag.
func (repo *identityRepository) SetActivated(ctx context.Context, id uuid.UUID, activated bool) error {
	return repo.updateColumn(ctx, id, "activated", activated)
}

// SetRoles replaces the granted role set.
func (repo *identityRepository) SetRoles(ctx context.Context, id uuid.UUID, roles entity.Roles) error {
	return repo.updateColumn(ctx, id, "roles", roles.ToStrings())
}

// AcquireRowLock takes a FOR UPDATE lock on the account row so concurrent
// credential mutations for the same account serialize. Only meaningful
// inside a transaction.
func (repo *identityRepository) AcquireRowLock(ctx context.Context, id uuid.UUID) error {
	var identityM model.IdentityModel
	err := repo.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&identityM).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrIdentityNotFound
		}

		return errors.Wrap(err, "failed to lock identity row")
	}

	return nil
}

func (repo *identityRepository) updateColumn(ctx context.Context, id uuid.UUID, column string, value any) error {
	result := repo.db.WithContext(ctx).
		Model(&model.IdentityModel{}).
		Where("id = ?", id).
		Update(column, value)

	if err := result.Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicateIdentity
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to update identity")
	}

	// If no rows were affected, the account does not exist.
	if result.RowsAffected == 0 {
		return repository.ErrIdentityNotFound
	}

	return nil
}

// --- Mapper Functions ---

// toIdentityDomain converts a GORM IdentityModel to a domain Identity entity.
func toIdentityDomain(data *model.IdentityModel) *entity.Identity {
	if data == nil {
		return nil
	}

	return &entity.Identity{
		ID:           data.ID,
		Nickname:     data.Nickname,
		Email:        data.Email,
		PasswordHash: data.PasswordHash,
		Enabled:      data.Enabled,
		Activated:    data.Activated,
		Language:     data.Language,
		Roles:        entity.RolesFromStrings(data.Roles),
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}
}

// fromIdentityDomain converts a domain Identity entity to a GORM IdentityModel.
func fromIdentityDomain(data *entity.Identity) *model.IdentityModel {
	if data == nil {
		return nil
	}

	return &model.IdentityModel{
		ID:           data.ID,
		Nickname:     data.Nickname,
		Email:        data.Email,
		PasswordHash: data.PasswordHash,
		Enabled:      data.Enabled,
		Activated:    data.Activated,
		Language:     data.Language,
		Roles:        data.Roles.ToStrings(),
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}
}
