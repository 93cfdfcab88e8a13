package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"gorevsig/adapters/stats/stages"
	"gorevsig/domain/core"
	"gorevsig/domain/signature"
)

// Profile is the true behaviour a synthetic compound is generated with
type Profile string

const (
	ProfileReverser Profile = "reverser"
	ProfileMimicker Profile = "mimicker"
	ProfileNoise    Profile = "noise"
	ProfileMixed    Profile = "mixed" // reverses in some contexts, mimics in others
)

// SignatureGeneratorConfig configures the signature table generator
type SignatureGeneratorConfig struct {
	CompoundCount         int       `json:"compound_count"`
	SignaturesPerCompound int       `json:"signatures_per_compound"`
	Contexts              []string  `json:"contexts"`
	Durations             []string  `json:"durations"`
	ProfileMix            []Profile `json:"profile_mix"` // cycled over compounds
	EffectSize            float64   `json:"effect_size"`
	NoiseSD               float64   `json:"noise_sd"`
	FDRRate               float64   `json:"fdr_rate"`     // fraction of rows carrying FDR values
	InvalidRate           float64   `json:"invalid_rate"` // fraction of rows with a NaN value
	Seed                  int64     `json:"seed"`
}

// DefaultSignatureConfig returns sensible defaults for signature generation
func DefaultSignatureConfig() SignatureGeneratorConfig {
	return SignatureGeneratorConfig{
		CompoundCount:         24,
		SignaturesPerCompound: 6,
		Contexts:              []string{"MCF7", "A549", "PC3", "HEPG2"},
		Durations:             []string{"6h", "24h"},
		ProfileMix:            []Profile{ProfileReverser, ProfileNoise, ProfileMimicker, ProfileNoise, ProfileMixed, ProfileNoise},
		EffectSize:            0.6,
		NoiseSD:               0.25,
		FDRRate:               0.8,
		InvalidRate:           0.02,
		Seed:                  42,
	}
}

// SignatureGenerator generates signature tables with known compound profiles
type SignatureGenerator struct {
	config SignatureGeneratorConfig
	rng    *rand.Rand
}

// NewSignatureGenerator creates a new signature generator
func NewSignatureGenerator(config SignatureGeneratorConfig) *SignatureGenerator {
	return &SignatureGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// ProfileOf returns the profile compound index i is generated with
func (g *SignatureGenerator) ProfileOf(i int) Profile {
	if len(g.config.ProfileMix) == 0 {
		return ProfileNoise
	}
	return g.config.ProfileMix[i%len(g.config.ProfileMix)]
}

// CompoundID returns the identifier of compound index i
func CompoundID(i int) core.CompoundID {
	return core.CompoundID(fmt.Sprintf("cmpd-%03d", i))
}

// GenerateRecords generates typed signature records
func (g *SignatureGenerator) GenerateRecords() []signature.Record {
	records := make([]signature.Record, 0, g.config.CompoundCount*g.config.SignaturesPerCompound)
	for c := 0; c < g.config.CompoundCount; c++ {
		profile := g.ProfileOf(c)
		for s := 0; s < g.config.SignaturesPerCompound; s++ {
			records = append(records, g.record(c, s, profile))
		}
	}
	return records
}

// GenerateTable generates the same records as an untyped table
func (g *SignatureGenerator) GenerateTable() *stages.RawTable {
	table := &stages.RawTable{
		Header: []string{"sig_id", "pert_iname", "cell_id", "pert_time", "up", "down", "fdr_up", "fdr_down", "significance"},
	}
	for _, r := range g.GenerateRecords() {
		table.Rows = append(table.Rows, []string{
			string(r.ID),
			string(r.CompoundID),
			string(r.Context),
			r.Duration,
			formatFloat(r.ValueUp),
			formatFloat(r.ValueDown),
			formatOptional(r.FDRUp),
			formatOptional(r.FDRDown),
			formatOptional(r.Significance),
		})
	}
	return table
}

func (g *SignatureGenerator) record(c, s int, profile Profile) signature.Record {
	contextIdx := s % max(1, len(g.config.Contexts))
	rec := signature.Record{
		ID:         core.SignatureID(fmt.Sprintf("%s-sig-%02d", CompoundID(c), s)),
		CompoundID: CompoundID(c),
	}
	if len(g.config.Contexts) > 0 {
		rec.Context = core.ContextID(g.config.Contexts[contextIdx])
	}
	if len(g.config.Durations) > 0 {
		rec.Duration = g.config.Durations[g.rng.Intn(len(g.config.Durations))]
	}

	mean := g.profileMean(profile, contextIdx)
	rec.ValueUp = mean + g.rng.NormFloat64()*g.config.NoiseSD
	rec.ValueDown = mean + g.rng.NormFloat64()*g.config.NoiseSD

	if g.rng.Float64() < g.config.FDRRate {
		strength := math.Abs(mean) / math.Max(g.config.NoiseSD, 1e-6)
		rec.FDRUp = signature.Float(g.fdr(strength))
		rec.FDRDown = signature.Float(g.fdr(strength))
		rec.Significance = signature.Float(-math.Log10(math.Min(*rec.FDRUp, *rec.FDRDown)))
	}

	if g.rng.Float64() < g.config.InvalidRate {
		rec.ValueDown = math.NaN()
	}
	return rec
}

func (g *SignatureGenerator) profileMean(profile Profile, contextIdx int) float64 {
	switch profile {
	case ProfileReverser:
		return -g.config.EffectSize
	case ProfileMimicker:
		return g.config.EffectSize
	case ProfileMixed:
		if contextIdx%2 == 0 {
			return -g.config.EffectSize
		}
		return g.config.EffectSize
	}
	return 0
}

// fdr draws a q-value that shrinks as the true effect grows
func (g *SignatureGenerator) fdr(strength float64) float64 {
	q := g.rng.Float64() * math.Exp(-strength)
	return math.Max(q, 1e-6)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
