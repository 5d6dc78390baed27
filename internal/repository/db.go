package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// txManager implements TxManager on a connection pool.
type txManager struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewTxManager creates a transaction manager backed by pool.
func NewTxManager(pool *pgxpool.Pool, logger zerolog.Logger) TxManager {
	return &txManager{
		pool:   pool,
		logger: logger.With().Str("component", "tx-manager").Logger(),
	}
}

// BeginTx starts a new database transaction with the given options.
func (m *txManager) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	tx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		m.logger.Error().
			Err(err).
			Str("isolation", string(opts.IsoLevel)).
			Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
