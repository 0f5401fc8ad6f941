package discount

import (
	"context"
	"fmt"

	"storefront/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// s3Loader implements Loader for reading gzipped discount files from AWS S3.
type s3Loader struct {
	client *s3.Client
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Loader creates a new S3-based discount loader. The prefix is
// prepended to every key passed to Load.
func NewS3Loader(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (Loader, error) {
	logger = logger.With().Str("component", "s3-discount-loader").Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Str("prefix", prefix).
		Msg("S3 loader initialised")

	return &s3Loader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Load reads a gzipped discount CSV object from S3 and returns the parsed
// codes.
func (l *s3Loader) Load(ctx context.Context, key string) ([]model.DiscountCode, error) {
	fullKey := l.prefix + key

	l.logger.Info().
		Str("bucket", l.bucket).
		Str("key", fullKey).
		Msg("loading discount file from S3")

	result, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		l.logger.Error().
			Err(err).
			Str("bucket", l.bucket).
			Str("key", fullKey).
			Msg("failed to get object from S3")
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", l.bucket, fullKey, err)
	}
	defer result.Body.Close()

	codes, err := parseRecords(result.Body)
	if err != nil {
		l.logger.Error().
			Err(err).
			Str("bucket", l.bucket).
			Str("key", fullKey).
			Msg("failed to parse discount file from S3")
		return nil, fmt.Errorf("failed to parse S3 object %s: %w", fullKey, err)
	}

	l.logger.Info().
		Str("bucket", l.bucket).
		Str("key", fullKey).
		Int("codes_loaded", len(codes)).
		Msg("discount file loaded from S3 successfully")

	return codes, nil
}
