package domain

import "context"

// Deduper remembers codes the producer already delivered within a recent window.
type Deduper interface {
	// Seen reports whether code was recorded within the window.
	Seen(ctx context.Context, code string) (bool, error)
	// Record marks code as delivered now.
	Record(ctx context.Context, code string) error
}
