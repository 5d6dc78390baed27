package coupon

import (
	"context"
	"errors"
	"fmt"

	"order-settlement/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// syncer implements Syncer.
type syncer struct {
	loader Loader
	txm    repository.TxManager
	repo   repository.CouponRepository
	logger zerolog.Logger
}

// NewSyncer creates a catalog syncer writing through repo.
func NewSyncer(loader Loader, txm repository.TxManager, repo repository.CouponRepository, logger zerolog.Logger) Syncer {
	return &syncer{
		loader: loader,
		txm:    txm,
		repo:   repo,
		logger: logger.With().Str("component", "coupon-syncer").Logger(),
	}
}

// Sync loads all catalogs concurrently, merges them so later paths override
// earlier ones and upserts every coupon in a single transaction.
func (s *syncer) Sync(ctx context.Context, paths ...string) (written int, err error) {
	catalogs := make([]Catalog, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			catalog, err := s.loader.Load(gctx, path)
			if err != nil {
				return fmt.Errorf("failed to load coupon catalog %s: %w", path, err)
			}
			catalogs[i] = catalog
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Msg("coupon catalog sync aborted")
		return 0, err
	}

	merged := NewMapCatalog(1024).(*mapCatalog)
	for _, catalog := range catalogs {
		for _, c := range catalog.Coupons() {
			merged.Add(c)
		}
	}

	tx, err := s.txm.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Error().Err(rbErr).Msg("failed to rollback coupon sync")
			}
		}
	}()

	for _, c := range merged.Coupons() {
		if err = s.repo.Upsert(ctx, tx, &c); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to commit coupon sync")
		return 0, fmt.Errorf("failed to commit coupon sync: %w", err)
	}

	s.logger.Info().
		Int("catalogs", len(paths)).
		Int("coupons", merged.Size()).
		Msg("coupon catalog synced")

	return merged.Size(), nil
}
