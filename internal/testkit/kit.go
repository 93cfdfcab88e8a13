package testkit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gorevsig/adapters/rng"
	"gorevsig/domain/core"
	"gorevsig/domain/run"
	"gorevsig/internal"
	"gorevsig/ports"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	runs   *InMemoryRunRepository // Shared repository instance
	config SignatureGeneratorConfig
}

// NewTestKit creates a new test kit instance with synthetic data
func NewTestKit() *TestKit {
	return &TestKit{
		runs:   NewInMemoryRunRepository(),
		config: DefaultSignatureConfig(),
	}
}

// WithSignatureConfig replaces the generator configuration
func (tk *TestKit) WithSignatureConfig(config SignatureGeneratorConfig) *TestKit {
	tk.config = config
	return tk
}

// RNGAdapter returns the deterministic RNG port used in production
func (tk *TestKit) RNGAdapter() ports.RNGPort {
	return rng.NewSeededAdapter()
}

// Logger returns a logger that discards output
func (tk *TestKit) Logger() *internal.Logger {
	return internal.Discard
}

// Generator returns a fresh signature generator; every call replays the same stream
func (tk *TestKit) Generator() *SignatureGenerator {
	return NewSignatureGenerator(tk.config)
}

// RunRepository returns the shared in-memory run repository
func (tk *TestKit) RunRepository() *InMemoryRunRepository {
	return tk.runs
}

// InMemoryRunRepository implements ports.RunRepository with in-memory storage
type InMemoryRunRepository struct {
	runs  map[core.RunID]run.Run
	order []core.RunID
	saves int
	mu    sync.RWMutex
}

var _ ports.RunRepository = (*InMemoryRunRepository)(nil)

func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{
		runs: make(map[core.RunID]run.Run),
	}
}

func (s *InMemoryRunRepository) SaveRun(ctx context.Context, r *run.Run) error {
	if r == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if err := r.Manifest.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.Manifest.RunID
	if _, exists := s.runs[id]; !exists {
		s.order = append(s.order, id)
	}
	s.runs[id] = *r
	s.saves++
	return nil
}

func (s *InMemoryRunRepository) GetRun(ctx context.Context, id core.RunID) (*run.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	return &r, nil
}

// ListRuns returns manifests newest first
func (s *InMemoryRunRepository) ListRuns(ctx context.Context, limit int) ([]run.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	manifests := make([]run.Manifest, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		manifests = append(manifests, s.runs[s.order[i]].Manifest)
		if limit > 0 && len(manifests) >= limit {
			break
		}
	}
	return manifests, nil
}

// Saves reports how many SaveRun calls succeeded
func (s *InMemoryRunRepository) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// RunIDs returns the stored run IDs in lexical order
func (s *InMemoryRunRepository) RunIDs() []core.RunID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]core.RunID, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
