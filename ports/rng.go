package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// Stream creates a deterministic RNG stream for a specific stage and key
	// (a permutation index, a compound, a reference scope). The same
	// stage/key/seed triple always yields the same sequence.
	Stream(ctx context.Context, stageName, key string, baseSeed int64) (*rand.Rand, error)
}
