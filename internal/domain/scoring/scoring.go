// Package scoring defines the contract for computing points from reports.
package scoring

import (
	"context"
)

// Bounds and fallbacks the scorer enforces.
const (
	defaultKindWeight = 10
	minSeverity       = 1
	maxSeverity       = 5
)

// Option applies a configuration option to the WeightedScorer.
type Option func(*WeightedScorer)

// WithKindWeightsFromConfig sets kind weights from a configuration map.
// Non-positive weights are dropped so the fallback can take over.
func WithKindWeightsFromConfig(weights map[string]float64, fallback float64) Option {
	return func(s *WeightedScorer) {
		// Own the map; the caller may keep mutating theirs.
		s.kindWeights = make(map[string]float64, len(weights))
		for kind, w := range weights {
			if w > 0 {
				s.kindWeights[kind] = w
			}
		}
		if fallback > 0 {
			s.defaultWeight = fallback
		}
	}
}

// Input abstracts the report fields needed for scoring.
type Input struct {
	DeviceID string
	Kind     string
	Severity int
}

// Result contains the computed points for a device.
type Result struct {
	DeviceID string
	Points   float64
}

// Scorer computes points from an input.
type Scorer interface {
	// Score computes points, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// WeightedScorer implements Scorer with per-kind weights scaled by severity.
type WeightedScorer struct {
	kindWeights   map[string]float64
	defaultWeight float64
}

// NewWeightedScorer creates a new weighted scorer with configuration options.
func NewWeightedScorer(opts ...Option) *WeightedScorer {
	s := &WeightedScorer{
		kindWeights:   make(map[string]float64),
		defaultWeight: defaultKindWeight,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Score computes points for the given input. Severity outside 1..5 is
// clamped before weighting.
func (s *WeightedScorer) Score(ctx context.Context, in Input) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	w, ok := s.kindWeights[in.Kind]
	if !ok {
		w = s.defaultWeight
	}

	severity := min(max(in.Severity, minSeverity), maxSeverity)

	return Result{
		DeviceID: in.DeviceID,
		Points:   w * float64(severity),
	}, nil
}

// SetKindWeight allows customization of kind-specific scoring.
func (s *WeightedScorer) SetKindWeight(kind string, weight float64) {
	s.kindWeights[kind] = weight
}
