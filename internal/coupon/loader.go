package coupon

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// fileLoader reads coupon catalogs from the local file system.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a coupon catalog loader backed by local files.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "coupon-file-loader").Logger(),
	}
}

// Load reads the catalog at filePath. Gzipped and plain JSON-lines files
// are both accepted.
func (l *fileLoader) Load(ctx context.Context, filePath string) (Catalog, error) {
	log := l.logger.With().Str("file", filePath).Logger()

	file, err := os.Open(filePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to open coupon catalog")
		return nil, fmt.Errorf("failed to open coupon catalog %s: %w", filePath, err)
	}
	defer file.Close()

	catalog, err := decodeCatalog(ctx, file, filePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to decode coupon catalog")
		return nil, err
	}

	log.Info().Int("coupons", catalog.Size()).Msg("coupon catalog read from disk")
	return catalog, nil
}
