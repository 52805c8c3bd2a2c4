package benchmark

import (
	"context"
	"math/rand/v2"
	"slices"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/compare"
	"github.com/tensorplex-labs/brainscore/internal/errs"
	"github.com/tensorplex-labs/brainscore/internal/metrics"
)

const DefaultCeilingSplits = 10

// SplitHalfConsistency estimates how reliable a target is by correlating the
// averages of two random halves of its repetitions, corrected to full length
// with the Spearman-Brown formula.
type SplitHalfConsistency struct {
	RepetitionCoord string
	ImageCoord      string
	NSplits         int
	Seed            uint64
}

func NewSplitHalfConsistency() SplitHalfConsistency {
	return SplitHalfConsistency{
		RepetitionCoord: assembly.CoordRepetition,
		ImageCoord:      assembly.CoordImageID,
		NSplits:         DefaultCeilingSplits,
	}
}

// Ceiling adapts c to a CeilingFunc.
func (c SplitHalfConsistency) Ceiling(ctx context.Context, target *assembly.Assembly) (*metrics.Score, error) {
	return c.Score(ctx, target)
}

func (c SplitHalfConsistency) Score(ctx context.Context, target *assembly.Assembly) (*metrics.Score, error) {
	if c.NSplits < 1 {
		return nil, errs.Configurationf("split-half consistency needs at least 1 split, got %d", c.NSplits)
	}
	repetitions := slices.Clone(target.Labels(c.RepetitionCoord))
	if repetitions == nil {
		return nil, errs.Configurationf("target has no %q coord to halve", c.RepetitionCoord)
	}
	slices.Sort(repetitions)
	repetitions = slices.Compact(repetitions)
	if len(repetitions) < 2 {
		return nil, errs.Configurationf("split-half consistency needs at least 2 repetitions, got %d", len(repetitions))
	}

	rng := rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15))
	values := make([]float64, c.NSplits)
	for s := range values {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(repetitions), func(i, j int) { repetitions[i], repetitions[j] = repetitions[j], repetitions[i] })
		half := len(repetitions) / 2
		r, err := c.halvesCorrelation(target, repetitions[:half], repetitions[half:])
		if err != nil {
			return nil, &metrics.SplitError{Split: s, Err: err}
		}
		values[s] = SpearmanBrown(r, 2)
		log.Debug().Int("split", s).Float64("r", r).Float64("corrected", values[s]).Msg("split-half consistency")
	}

	raw, err := assembly.New(values, []string{assembly.DimSplit}, []int{c.NSplits},
		assembly.Coord{Name: assembly.CoordSplit, Dim: assembly.DimSplit, Labels: metrics.SplitLabels(c.NSplits)})
	if err != nil {
		return nil, err
	}
	return metrics.NewScore(raw, metrics.MeanSEM)
}

// halvesCorrelation is the median over neuroids of the Pearson correlation
// between the image averages of two repetition halves.
func (c SplitHalfConsistency) halvesCorrelation(target *assembly.Assembly, first, second []string) (float64, error) {
	a, err := c.halfAverage(target, first)
	if err != nil {
		return 0, err
	}
	b, err := c.halfAverage(target, second)
	if err != nil {
		return 0, err
	}
	perNeuroid, err := compare.Pearson.Compare(a, b)
	if err != nil {
		return 0, err
	}
	r, err := metrics.SplitValues(perNeuroid, stats.Median)
	if err != nil {
		return 0, err
	}
	return r[0], nil
}

func (c SplitHalfConsistency) halfAverage(target *assembly.Assembly, repetitions []string) (*assembly.Assembly, error) {
	half, err := target.Sel(c.RepetitionCoord, repetitions...)
	if err != nil {
		return nil, err
	}
	return half.GroupMean(c.ImageCoord)
}

// SpearmanBrown predicts the reliability of a test n times as long as one
// with reliability r.
func SpearmanBrown(r, n float64) float64 {
	return n * r / (1 + (n-1)*r)
}
