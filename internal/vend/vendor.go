package vendor

import (
	"context"
	"errors"
)

// ErrNoListing signals that the vendor answered but had no listing matching
// the product code. Distinct from transport failures, which surface as plain
// errors.
var ErrNoListing = errors.New("vendor: no matching listing")

// Vendor retrieves the raw price text a storefront shows for a product code.
// Implementations apply their own request timeout and must not panic; every
// failure mode is an error return.
type Vendor interface {
	Name() string
	FetchRaw(ctx context.Context, productCode string) (string, error)
}
