package metrics

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/compare"
	"github.com/tensorplex-labs/brainscore/internal/errs"
	"github.com/tensorplex-labs/brainscore/internal/split"
	"github.com/tensorplex-labs/brainscore/internal/utils/logger"
)

const (
	DefaultRDMTestFraction = 0.5

	// rdmMinSamples is the smallest test set whose RDM has more than one
	// off-diagonal pair to correlate.
	rdmMinSamples = 3

	pairSuffix = "_pair"
)

// RDMCrossValidated compares the representational dissimilarity matrices of
// source and target on the test part of every split. No regression is fitted.
type RDMCrossValidated struct {
	Splitter   split.Splitter
	Aggregator Aggregator
	Workers    int
}

func NewRDMCrossValidated(opts ...CrossValidationOption) *RDMCrossValidated {
	splitter := split.DefaultSplitter()
	splitter.TestFraction = DefaultRDMTestFraction
	// share the option functions with CrossValidation
	cv := &CrossValidation{Splitter: splitter, Aggregator: MeanSEM, Workers: 1}
	for _, opt := range opts {
		opt(cv)
	}
	return &RDMCrossValidated{Splitter: cv.Splitter, Aggregator: cv.Aggregator, Workers: cv.Workers}
}

func (m *RDMCrossValidated) Score(ctx context.Context, source, target *assembly.Assembly) (*Score, error) {
	source, target, err := assembly.Intersect(source, target, assembly.CoordImageID)
	if err != nil {
		return nil, fmt.Errorf("rdm: %w", err)
	}
	splits, err := m.Splitter.SplitAssembly(target, assembly.DimPresentation)
	if err != nil {
		return nil, fmt.Errorf("rdm: %w", err)
	}
	for _, sp := range splits {
		if len(sp.Test) < rdmMinSamples {
			return nil, errs.Configurationf("rdm needs at least %d test presentations per split, split %d has %d", rdmMinSamples, sp.Index, len(sp.Test))
		}
	}

	logger.Sugar().Infow("Comparing RDMs",
		"presentations", target.Len(assembly.DimPresentation),
		"splits", len(splits),
		"testFraction", m.Splitter.TestFraction,
		"workers", m.Workers,
	)

	values, err := runSplits(ctx, splits, m.Workers, func(_ context.Context, sp split.Split) (float64, error) {
		return m.scoreSplit(sp, source, target)
	})
	if err != nil {
		return nil, err
	}

	raw, err := assembly.New(values, []string{assembly.DimSplit}, []int{len(values)},
		assembly.Coord{Name: assembly.CoordSplit, Dim: assembly.DimSplit, Labels: SplitLabels(len(values))})
	if err != nil {
		return nil, err
	}
	return NewScore(raw, m.Aggregator)
}

func (m *RDMCrossValidated) scoreSplit(sp split.Split, source, target *assembly.Assembly) (float64, error) {
	sourceTest, err := source.Isel(assembly.DimPresentation, sp.Test)
	if err != nil {
		return 0, err
	}
	targetTest, err := target.Isel(assembly.DimPresentation, sp.Test)
	if err != nil {
		return 0, err
	}
	if err := assembly.AssertAligned(sourceTest, targetTest, assembly.CoordImageID); err != nil {
		return 0, err
	}

	sourceRDM, err := rdmMatrix(sourceTest)
	if err != nil {
		return 0, fmt.Errorf("source rdm: %w", err)
	}
	targetRDM, err := rdmMatrix(targetTest)
	if err != nil {
		return 0, fmt.Errorf("target rdm: %w", err)
	}
	r := compare.PearsonVectors(upperTriangle(sourceRDM), upperTriangle(targetRDM))

	log.Debug().Int("split", sp.Index).Int("test", len(sp.Test)).Float64("r", r).Msg("rdm split compared")
	return r, nil
}

// RDM returns 1 - Pearson correlation between every pair of positions along
// dim, using the remaining dim as features. The result is symmetric with a
// zero diagonal; its second dim and coords carry a "_pair" suffix.
func RDM(a *assembly.Assembly, dim string) (*assembly.Assembly, error) {
	m, err := rdmMatrixAlong(a, dim)
	if err != nil {
		return nil, err
	}
	coords := a.CoordsOn(dim)
	for _, c := range a.CoordsOn(dim) {
		coords = append(coords, assembly.Coord{Name: c.Name + pairSuffix, Dim: dim + pairSuffix, Labels: c.Labels})
	}
	return assembly.NewMatrix(m, dim, dim+pairSuffix, coords...)
}

func rdmMatrix(a *assembly.Assembly) (*mat.SymDense, error) {
	return rdmMatrixAlong(a, assembly.DimPresentation)
}

func rdmMatrixAlong(a *assembly.Assembly, dim string) (*mat.SymDense, error) {
	dims := a.Dims()
	if len(dims) != 2 || !a.HasDim(dim) {
		return nil, errs.Alignmentf("rdm needs a 2D assembly with dim %q, got dims %v", dim, dims)
	}
	features := dims[0]
	if features == dim {
		features = dims[1]
	}
	x, err := a.Matrix(dim, features)
	if err != nil {
		return nil, err
	}

	n, _ := x.Dims()
	out := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := 1 - compare.PearsonVectors(x.RawRowView(i), x.RawRowView(j))
			out.SetSym(i, j, d)
		}
	}
	return out, nil
}

func upperTriangle(m *mat.SymDense) []float64 {
	n := m.SymmetricDim()
	out := make([]float64, 0, n*(n-1)/2)
	for i := range n {
		for j := i + 1; j < n; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}
