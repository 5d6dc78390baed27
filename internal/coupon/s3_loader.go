package coupon

import (
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// objectGetter is the subset of the S3 client the loader uses.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// s3Loader reads coupon catalogs stored as objects in one bucket.
type s3Loader struct {
	client objectGetter
	bucket string
	logger zerolog.Logger
}

// NewS3Loader creates a coupon catalog loader for bucket using the default
// AWS credential chain.
func NewS3Loader(ctx context.Context, bucket, region string, logger zerolog.Logger) (Loader, error) {
	logger = logger.With().
		Str("component", "coupon-s3-loader").
		Str("bucket", bucket).
		Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().Str("region", region).Msg("coupon catalog bucket configured")
	return newS3Loader(s3.NewFromConfig(cfg), bucket, logger), nil
}

func newS3Loader(client objectGetter, bucket string, logger zerolog.Logger) *s3Loader {
	return &s3Loader{
		client: client,
		bucket: bucket,
		logger: logger,
	}
}

// Load fetches the object stored under key and decodes it as a catalog.
func (l *s3Loader) Load(ctx context.Context, key string) (Catalog, error) {
	log := l.logger.With().Str("key", key).Logger()

	result, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to get coupon catalog object")
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", l.bucket, key, err)
	}
	defer result.Body.Close()

	source := "s3://" + l.bucket + "/" + key
	catalog, err := decodeCatalog(ctx, result.Body, source)
	if err != nil {
		log.Error().Err(err).Msg("failed to decode coupon catalog object")
		return nil, err
	}

	event := log.Info().Int("coupons", catalog.Size())
	if result.ETag != nil {
		event = event.Str("etag", *result.ETag)
	}
	event.Msg("coupon catalog read from S3")

	return catalog, nil
}

// fallbackLoader prefers the bucket copy of a catalog and falls back to the
// local file when the bucket is disabled or unreachable.
type fallbackLoader struct {
	remote    Loader
	local     Loader
	keyPrefix string
	useRemote bool
	logger    zerolog.Logger
}

// NewFallbackLoader combines an S3 and a file loader. A nil s3Loader or
// s3Enabled=false makes it read local files only.
func NewFallbackLoader(s3Loader, fileLoader Loader, s3Prefix string, s3Enabled bool, logger zerolog.Logger) Loader {
	return &fallbackLoader{
		remote:    s3Loader,
		local:     fileLoader,
		keyPrefix: s3Prefix,
		useRemote: s3Enabled && s3Loader != nil,
		logger:    logger.With().Str("component", "coupon-fallback-loader").Logger(),
	}
}

// Load looks for the catalog under keyPrefix plus the base name of filePath
// in S3, then reads filePath from disk.
func (l *fallbackLoader) Load(ctx context.Context, filePath string) (Catalog, error) {
	if !l.useRemote {
		return l.local.Load(ctx, filePath)
	}

	key := l.objectKey(filePath)
	catalog, err := l.remote.Load(ctx, key)
	if err == nil {
		return catalog, nil
	}

	l.logger.Warn().
		Err(err).
		Str("s3_key", key).
		Str("file", filePath).
		Msg("coupon catalog unavailable in S3, reading local copy")

	return l.local.Load(ctx, filePath)
}

func (l *fallbackLoader) objectKey(filePath string) string {
	name := path.Base(filePath)
	if l.keyPrefix == "" {
		return name
	}
	return path.Join(l.keyPrefix, name)
}
