package repository

import "context"

// TransactionManager defines the interface for managing database transactions.
// This allows the use case layer to handle transactions without depending on a specific DB driver like GORM.
type TransactionManager interface {
	// Execute runs a function within a database transaction.
	// If the function returns an error, the transaction is rolled back. Otherwise, it's committed.
	// All repository operations within the function will use the same database transaction.
	Execute(ctx context.Context, fn func(txRepoFactory RepositoryFactory) error) error
}

// RepositoryFactory provides repository instances bound to a specific
// transaction, so every operation inside Execute shares one connection.
type RepositoryFactory interface {
	// IdentityRepo returns an IdentityRepository bound to the current transaction.
	IdentityRepo() IdentityRepository

	// RefreshTokenRepo returns a RefreshTokenRepository bound to the current transaction.
	RefreshTokenRepo() RefreshTokenRepository

	// OneTimeKeyRepo returns a OneTimeKeyRepository bound to the current transaction.
	OneTimeKeyRepo() OneTimeKeyRepository

	// LoginAttemptRepo returns a LoginAttemptRepository bound to the current transaction.
	LoginAttemptRepo() LoginAttemptRepository

	// SessionRepo returns a SessionRepository bound to the current transaction.
	SessionRepo() SessionRepository
}
