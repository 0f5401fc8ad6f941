package discount

import (
	"context"

	"storefront/internal/model"
)

// Loader defines the interface for loading discount code files. Files are
// gzipped CSV with columns:
//
//	code,type,value,min_order_cents,max_uses,expires_at
//
// min_order_cents, max_uses and expires_at may be empty; expires_at is
// RFC 3339.
type Loader interface {
	// Load reads a gzipped discount file and returns the parsed codes.
	Load(ctx context.Context, path string) ([]model.DiscountCode, error)
}
