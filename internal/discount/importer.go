package discount

import (
	"context"
	"fmt"
	"sync"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

// Importer bulk-loads discount code files into the database. Later files win
// on code collisions, so sources should be ordered least to most
// authoritative.
type Importer struct {
	loader Loader
	repo   repository.DiscountRepository
	logger zerolog.Logger
}

// NewImporter creates a new discount importer.
func NewImporter(loader Loader, repo repository.DiscountRepository, logger zerolog.Logger) *Importer {
	return &Importer{
		loader: loader,
		repo:   repo,
		logger: logger.With().Str("component", "discount-importer").Logger(),
	}
}

// Import loads all files concurrently and upserts the parsed codes. Any load
// or parse failure aborts the import before anything is written.
func (i *Importer) Import(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	i.logger.Info().Int("file_count", len(paths)).Msg("starting discount import")

	type loadResult struct {
		index int
		codes []model.DiscountCode
		err   error
	}

	resultChan := make(chan loadResult, len(paths))
	var wg sync.WaitGroup

	for idx, path := range paths {
		wg.Add(1)
		go func(index int, p string) {
			defer wg.Done()

			codes, err := i.loader.Load(ctx, p)
			resultChan <- loadResult{index: index, codes: codes, err: err}
		}(idx, path)
	}

	wg.Wait()
	close(resultChan)

	results := make([]loadResult, len(paths))
	for result := range resultChan {
		results[result.index] = result
	}

	for idx, result := range results {
		if result.err != nil {
			return 0, fmt.Errorf("failed to load discount file %s: %w", paths[idx], result.err)
		}
	}

	// Deduplicate across files in source order; a code's last occurrence
	// wins.
	merged := make(map[string]model.DiscountCode)
	for _, result := range results {
		for _, code := range result.codes {
			merged[code.Code] = code
		}
	}

	imported := 0
	for _, code := range merged {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		code := code
		if err := i.repo.Upsert(ctx, &code); err != nil {
			return imported, fmt.Errorf("failed to upsert discount code %s: %w", code.Code, err)
		}
		imported++
	}

	i.logger.Info().
		Int("files", len(paths)).
		Int("codes_imported", imported).
		Msg("discount import complete")

	return imported, nil
}
