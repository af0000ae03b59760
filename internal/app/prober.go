package app

import (
	"context"
	"fmt"
)

// DefaultPageCeiling bounds how far the prober looks for the last page
const DefaultPageCeiling = 100

// FindLastPage finds the last non-empty page of a listing whose reported totals can't be trusted.
// Pages are probed at 1, 2, 4, ... until an empty page or the ceiling is reached, then the
// boundary is binary searched. A listing with an empty first page has last page 1.
func FindLastPage(ctx context.Context, ceiling int, isNonEmpty func(ctx context.Context, page int) (bool, error)) (int, error) {
	if ceiling < 1 {
		return 0, fmt.Errorf("page ceiling must be positive, got %d", ceiling)
	}

	low, high := 1, 1
	for {
		nonEmpty, err := isNonEmpty(ctx, high)
		if err != nil {
			return 0, fmt.Errorf("failed to probe page %d: %w", high, err)
		}
		if !nonEmpty {
			break
		}

		low = high
		next := min(high*2, ceiling)
		if next == high {
			// The ceiling itself is non-empty
			return low, nil
		}
		high = next
	}

	// low is known non-empty (or 1), high is known empty
	for low+1 < high {
		mid := low + (high-low)/2
		nonEmpty, err := isNonEmpty(ctx, mid)
		if err != nil {
			return 0, fmt.Errorf("failed to probe page %d: %w", mid, err)
		}
		if nonEmpty {
			low = mid
		} else {
			high = mid
		}
	}

	return low, nil
}
