// Package benchmark pairs a metric with a lazily loaded target assembly and
// normalizes candidate scores by the target's ceiling.
package benchmark

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/errs"
	"github.com/tensorplex-labs/brainscore/internal/metrics"
)

// Loader produces the target assembly of a benchmark.
type Loader func(ctx context.Context) (*assembly.Assembly, error)

// CeilingFunc estimates the best score any candidate can reach on target.
type CeilingFunc func(ctx context.Context, target *assembly.Assembly) (*metrics.Score, error)

type Benchmark struct {
	Identifier string
	Version    int
	Metric     metrics.Metric

	load        Loader
	ceilingFunc CeilingFunc

	mu      sync.Mutex
	target  *assembly.Assembly
	ceiling *metrics.Score
}

func New(identifier string, version int, metric metrics.Metric, load Loader, ceiling CeilingFunc) *Benchmark {
	return &Benchmark{
		Identifier:  identifier,
		Version:     version,
		Metric:      metric,
		load:        load,
		ceilingFunc: ceiling,
	}
}

// Target loads the target assembly on first use. A failed load is retried on
// the next call.
func (b *Benchmark) Target(ctx context.Context) (*assembly.Assembly, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.targetLocked(ctx)
}

func (b *Benchmark) targetLocked(ctx context.Context) (*assembly.Assembly, error) {
	if b.target != nil {
		return b.target, nil
	}
	target, err := b.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s target: %w", b.Identifier, err)
	}
	log.Info().Str("benchmark", b.Identifier).Ints("shape", target.Shape()).Msg("target assembly loaded")
	b.target = target
	return target, nil
}

// Ceiling computes the ceiling on first use. Benchmarks without a ceiling
// function report nil.
func (b *Benchmark) Ceiling(ctx context.Context) (*metrics.Score, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ceilingFunc == nil {
		return nil, nil
	}
	if b.ceiling != nil {
		return b.ceiling, nil
	}
	target, err := b.targetLocked(ctx)
	if err != nil {
		return nil, err
	}
	ceiling, err := b.ceilingFunc(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%s ceiling: %w", b.Identifier, err)
	}
	log.Info().Str("benchmark", b.Identifier).Float64("ceiling", ceiling.Center()).Msg("ceiling computed")
	b.ceiling = ceiling
	return ceiling, nil
}

// Score runs the metric of the benchmark on candidate and ceils the result.
func (b *Benchmark) Score(ctx context.Context, candidate *assembly.Assembly) (*metrics.Score, error) {
	target, err := b.Target(ctx)
	if err != nil {
		return nil, err
	}
	score, err := b.Metric.Score(ctx, candidate, target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Identifier, err)
	}
	ceiling, err := b.Ceiling(ctx)
	if err != nil {
		return nil, err
	}
	if ceiling == nil {
		return score, nil
	}
	return Ceil(score, ceiling)
}

// Ceil divides every split of score by the square root of the matching split
// of ceiling and re-aggregates. A ceiling without a split dim applies its
// center to every split. The result keeps score and ceiling as attrs.
func Ceil(score, ceiling *metrics.Score) (*metrics.Score, error) {
	raw := score.Raw
	if !raw.HasDim(assembly.DimSplit) {
		return nil, errs.Alignmentf("score to ceil has no %q dim", assembly.DimSplit)
	}
	splitLabels := raw.Labels(assembly.CoordSplit)
	if len(splitLabels) != raw.Len(assembly.DimSplit) {
		return nil, errs.Alignmentf("score to ceil has no %q coord", assembly.CoordSplit)
	}

	ceilingOf, err := splitCeilings(ceiling, splitLabels)
	if err != nil {
		return nil, err
	}

	// split-first layout so every split is one contiguous chunk
	dims := raw.Dims()
	order := []string{assembly.DimSplit}
	for _, d := range dims {
		if d != assembly.DimSplit {
			order = append(order, d)
		}
	}
	splitFirst, err := raw.Transpose(order...)
	if err != nil {
		return nil, err
	}
	values := splitFirst.Values()
	chunk := len(values) / len(splitLabels)
	for s, label := range splitLabels {
		c := ceilingOf[label]
		if !(c > 0) {
			return nil, errs.Numericf("ceiling of split %s is %v, must be positive", label, c)
		}
		root := math.Sqrt(c)
		for i := s * chunk; i < (s+1)*chunk; i++ {
			values[i] /= root
		}
	}

	ceiled, err := assembly.New(values, splitFirst.Dims(), splitFirst.Shape(), splitFirst.Coords()...)
	if err != nil {
		return nil, err
	}
	if ceiled, err = ceiled.Transpose(dims...); err != nil {
		return nil, err
	}

	out, err := metrics.NewScore(ceiled, score.Aggregator())
	if err != nil {
		return nil, err
	}
	return out.WithAttr(metrics.AttrRaw, score).WithAttr(metrics.AttrCeiling, ceiling), nil
}

func splitCeilings(ceiling *metrics.Score, splitLabels []string) (map[string]float64, error) {
	out := make(map[string]float64, len(splitLabels))
	if !ceiling.Raw.HasDim(assembly.DimSplit) {
		for _, l := range splitLabels {
			out[l] = ceiling.Center()
		}
		return out, nil
	}

	ceilingLabels := ceiling.Raw.Labels(assembly.CoordSplit)
	if !sameSet(splitLabels, ceilingLabels) {
		return nil, errs.Alignmentf("score splits %v do not match ceiling splits %v", splitLabels, ceilingLabels)
	}
	values, err := metrics.SplitValues(ceiling.Raw, stats.Mean)
	if err != nil {
		return nil, err
	}
	for i, l := range ceilingLabels {
		out[l] = values[i]
	}
	return out, nil
}

func sameSet(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
