package discount

import (
	"context"
	"fmt"
	"os"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// fileLoader implements Loader for reading gzipped discount files from the
// local filesystem.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based discount loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "discount-loader").Logger(),
	}
}

// Load reads a gzipped discount CSV file and returns the parsed codes.
func (l *fileLoader) Load(ctx context.Context, path string) ([]model.DiscountCode, error) {
	l.logger.Info().Str("file", path).Msg("loading discount file")

	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open discount file")
		return nil, fmt.Errorf("failed to open discount file %s: %w", path, err)
	}
	defer file.Close()

	codes, err := parseRecords(file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to parse discount file")
		return nil, fmt.Errorf("failed to parse discount file %s: %w", path, err)
	}

	l.logger.Info().
		Str("file", path).
		Int("codes_loaded", len(codes)).
		Msg("discount file loaded successfully")

	return codes, nil
}
