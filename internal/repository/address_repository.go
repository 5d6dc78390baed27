package repository

import (
	"context"
	"errors"
	"fmt"

	"order-settlement/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// addressRepository implements the AddressRepository interface using PostgreSQL.
type addressRepository struct {
	logger zerolog.Logger
}

// NewAddressRepository creates a new PostgreSQL-backed address repository.
func NewAddressRepository(logger zerolog.Logger) AddressRepository {
	return &addressRepository{
		logger: logger.With().Str("repository", "address").Logger(),
	}
}

// FindOrCreateWalkIn returns the store counter address matching the
// template's recipient, phone, line and city, inserting the template when
// none exists. Lookups for the same key are serialised with an advisory lock.
func (r *addressRepository) FindOrCreateWalkIn(ctx context.Context, tx pgx.Tx, template model.Address) (*model.Address, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
		"walk-in:"+template.Line1+":"+template.RecipientName); err != nil {
		r.logger.Error().Err(err).Msg("failed to lock walk-in address")
		return nil, fmt.Errorf("failed to lock walk-in address: %w", err)
	}

	query := `
		SELECT id, user_id, recipient_name, phone, line1, city, address_type, created_at
		FROM addresses
		WHERE user_id IS NULL AND line1 = $1 AND city = $2 AND recipient_name = $3 AND phone = $4
		ORDER BY created_at
		LIMIT 1
	`

	var a model.Address
	err := tx.QueryRow(ctx, query, template.Line1, template.City, template.RecipientName, template.Phone).Scan(
		&a.ID, &a.UserID, &a.RecipientName, &a.Phone, &a.Line1, &a.City, &a.AddressType, &a.CreatedAt,
	)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error().Err(err).Msg("failed to query walk-in address")
		return nil, fmt.Errorf("failed to query walk-in address: %w", err)
	}

	insert := `
		INSERT INTO addresses (id, user_id, recipient_name, phone, line1, city, address_type, created_at)
		VALUES ($1, NULL, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, insert,
		template.ID, template.RecipientName, template.Phone, template.Line1,
		template.City, template.AddressType, template.CreatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to create walk-in address")
		return nil, fmt.Errorf("failed to create walk-in address: %w", err)
	}

	r.logger.Info().Str("address_id", template.ID.String()).Msg("walk-in address created")

	created := template
	created.UserID = nil
	return &created, nil
}
