package repository

import (
	"context"
	"errors"
	"fmt"

	"order-settlement/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// userRepository implements the UserRepository interface using PostgreSQL.
type userRepository struct {
	logger zerolog.Logger
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(logger zerolog.Logger) UserRepository {
	return &userRepository{
		logger: logger.With().Str("repository", "user").Logger(),
	}
}

// GetByID retrieves a user within the provided transaction.
func (r *userRepository) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.User, error) {
	query := `SELECT id, full_name, email, phone, created_at FROM users WHERE id = $1`

	var u model.User
	err := tx.QueryRow(ctx, query, id).Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("user_id", id.String()).Msg("user not found")
			return nil, model.ErrUserNotFound
		}
		r.logger.Error().Err(err).Str("user_id", id.String()).Msg("failed to query user")
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &u, nil
}

// Lock takes a row lock on the user, held until the transaction ends.
func (r *userRepository) Lock(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var locked uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrUserNotFound
		}
		r.logger.Error().Err(err).Str("user_id", id.String()).Msg("failed to lock user")
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}
