// Package metrics turns pairs of assemblies into scores: cross-validated
// regression metrics, representational dissimilarity metrics and the
// aggregation of per split results.
package metrics

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
)

// Metric scores how well source accounts for target.
type Metric interface {
	Score(ctx context.Context, source, target *assembly.Assembly) (*Score, error)
}

// Score is the outcome of a metric. Aggregation is always derived from Raw by
// the score's aggregator and carries the labels center and error.
type Score struct {
	Raw         *assembly.Assembly
	Aggregation *assembly.Assembly
	// Attrs holds auxiliary scores, e.g. the unceiled score and the ceiling.
	Attrs map[string]*Score

	aggregator Aggregator
}

const (
	AttrRaw     = "raw"
	AttrCeiling = "ceiling"
)

// NewScore aggregates raw with agg.
func NewScore(raw *assembly.Assembly, agg Aggregator) (*Score, error) {
	if agg == nil {
		agg = MeanSEM
	}
	s := &Score{Raw: raw, aggregator: agg}
	if err := s.Recompute(); err != nil {
		return nil, err
	}
	return s, nil
}

// Recompute re-derives Aggregation from Raw.
func (s *Score) Recompute() error {
	agg, err := s.Aggregator()(s.Raw)
	if err != nil {
		return fmt.Errorf("aggregate score: %w", err)
	}
	s.Aggregation = agg
	return nil
}

// Aggregator returns the function that produced Aggregation.
func (s *Score) Aggregator() Aggregator {
	if s.aggregator == nil {
		return MeanSEM
	}
	return s.aggregator
}

func (s *Score) Center() float64 { return s.aggregate(assembly.LabelCenter) }

func (s *Score) Error() float64 { return s.aggregate(assembly.LabelError) }

func (s *Score) aggregate(label string) float64 {
	if s.Aggregation == nil {
		return math.NaN()
	}
	i := slices.Index(s.Aggregation.Labels(assembly.CoordAggregation), label)
	if i < 0 {
		return math.NaN()
	}
	return s.Aggregation.At(i)
}

// WithAttr records an auxiliary score and returns s.
func (s *Score) WithAttr(name string, attr *Score) *Score {
	if s.Attrs == nil {
		s.Attrs = make(map[string]*Score)
	}
	s.Attrs[name] = attr
	return s
}

func (s *Score) String() string {
	return fmt.Sprintf("%.4f±%.4f", s.Center(), s.Error())
}
