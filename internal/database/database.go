package database

import (
	"context"
	"fmt"
	"time"

	"order-settlement/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	applicationName = "order-settlement"

	// Settlement work holds row locks on variants, users, orders and returns.
	// A caller waiting longer than this on a lock fails instead of piling up.
	lockTimeout      = 5 * time.Second
	statementTimeout = 30 * time.Second
)

// NewPool creates the PostgreSQL connection pool shared by every repository.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := newPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Int32("max_connections", poolConfig.MaxConns).
		Int32("min_connections", poolConfig.MinConns).
		Dur("lock_timeout", lockTimeout).
		Msg("creating settlement connection pool")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	stat := pool.Stat()
	logger.Info().
		Int32("total_connections", stat.TotalConns()).
		Int32("idle_connections", stat.IdleConns()).
		Msg("settlement connection pool ready")

	return pool, nil
}

// newPoolConfig translates DatabaseConfig into pool settings. Every session
// carries the application name and the lock and statement timeouts.
func newPoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime) * time.Second
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	params := poolConfig.ConnConfig.RuntimeParams
	params["application_name"] = applicationName
	params["lock_timeout"] = fmt.Sprintf("%dms", lockTimeout.Milliseconds())
	params["statement_timeout"] = fmt.Sprintf("%dms", statementTimeout.Milliseconds())

	return poolConfig, nil
}
