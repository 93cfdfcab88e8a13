// Package rng implements ports.RNGPort with derived, independent streams
package rng

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"

	"gorevsig/ports"
)

// SeededAdapter derives reproducible RNG streams from a base seed
type SeededAdapter struct{}

// NewSeededAdapter creates the default RNG adapter
func NewSeededAdapter() *SeededAdapter {
	return &SeededAdapter{}
}

var _ ports.RNGPort = (*SeededAdapter)(nil)

// Stream creates a deterministic RNG stream for a specific stage and key
func (r *SeededAdapter) Stream(ctx context.Context, stageName, key string, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(DeriveSeed(baseSeed, stageName, key))), nil
}

// DeriveSeed mixes a base seed with a list of labels into a new seed.
// Labels are length-prefixed so ("ab","c") and ("a","bc") differ.
func DeriveSeed(base int64, labels ...string) int64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(base))
	h.Write(buf[:])
	for _, label := range labels {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(label)))
		h.Write(buf[:])
		h.Write([]byte(label))
	}
	return int64(splitmix64(h.Sum64()) & math.MaxInt64)
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
