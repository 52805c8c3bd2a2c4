package metrics

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/compare"
	"github.com/tensorplex-labs/brainscore/internal/regression"
	"github.com/tensorplex-labs/brainscore/internal/split"
	"github.com/tensorplex-labs/brainscore/internal/utils/logger"
)

// CrossValidation fits a regression from source to target on the train part
// of every split and compares its prediction with the held-out target.
type CrossValidation struct {
	Regression regression.Factory
	Comparator compare.Comparator
	Splitter   split.Splitter
	Aggregator Aggregator
	Workers    int
}

type CrossValidationOption func(*CrossValidation)

func WithRegression(f regression.Factory) CrossValidationOption {
	return func(cv *CrossValidation) {
		cv.Regression = f
	}
}

func WithComparator(c compare.Comparator) CrossValidationOption {
	return func(cv *CrossValidation) {
		cv.Comparator = c
	}
}

func WithSplitter(s split.Splitter) CrossValidationOption {
	return func(cv *CrossValidation) {
		cv.Splitter = s
	}
}

func WithAggregator(agg Aggregator) CrossValidationOption {
	return func(cv *CrossValidation) {
		cv.Aggregator = agg
	}
}

func WithWorkers(n int) CrossValidationOption {
	return func(cv *CrossValidation) {
		cv.Workers = n
	}
}

// NewCrossValidation defaults to PLS regression, Pearson comparison, the
// default splitter and MeanSEM aggregation on a single worker.
func NewCrossValidation(opts ...CrossValidationOption) *CrossValidation {
	cv := &CrossValidation{
		Regression: func() regression.Regressor { return regression.NewPLSRegression(regression.DefaultPLSComponents) },
		Comparator: compare.Pearson,
		Splitter:   split.DefaultSplitter(),
		Aggregator: MeanSEM,
		Workers:    1,
	}

	for _, opt := range opts {
		opt(cv)
	}

	return cv
}

func (cv *CrossValidation) Score(ctx context.Context, source, target *assembly.Assembly) (*Score, error) {
	source, target, err := assembly.Intersect(source, target, assembly.CoordImageID)
	if err != nil {
		return nil, fmt.Errorf("cross-validation: %w", err)
	}
	splits, err := cv.Splitter.SplitAssembly(target, assembly.DimPresentation)
	if err != nil {
		return nil, fmt.Errorf("cross-validation: %w", err)
	}

	logger.Sugar().Infow("Cross-validating",
		"presentations", target.Len(assembly.DimPresentation),
		"splits", len(splits),
		"testFraction", cv.Splitter.TestFraction,
		"stratify", cv.Splitter.StratifyCoord,
		"workers", cv.Workers,
	)

	parts, err := runSplits(ctx, splits, cv.Workers, func(_ context.Context, sp split.Split) (*assembly.Assembly, error) {
		return cv.scoreSplit(sp, source, target)
	})
	if err != nil {
		return nil, err
	}

	raw, err := assembly.Stack(assembly.DimSplit, assembly.CoordSplit, SplitLabels(len(parts)), parts...)
	if err != nil {
		return nil, fmt.Errorf("stack split scores: %w", err)
	}
	return NewScore(raw, cv.Aggregator)
}

func (cv *CrossValidation) scoreSplit(sp split.Split, source, target *assembly.Assembly) (*assembly.Assembly, error) {
	sourceTrain, err := source.Isel(assembly.DimPresentation, sp.Train)
	if err != nil {
		return nil, err
	}
	sourceTest, err := source.Isel(assembly.DimPresentation, sp.Test)
	if err != nil {
		return nil, err
	}
	targetTrain, err := target.Isel(assembly.DimPresentation, sp.Train)
	if err != nil {
		return nil, err
	}
	targetTest, err := target.Isel(assembly.DimPresentation, sp.Test)
	if err != nil {
		return nil, err
	}

	model := cv.Regression()
	if err := model.Fit(sourceTrain, targetTrain); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	prediction, err := model.Predict(sourceTest)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	result, err := cv.Comparator.Compare(prediction, targetTest)
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}

	// per presentation comparisons differ in their presentations across splits
	if result.HasDim(assembly.DimPresentation) {
		result, err = result.Reduce(assembly.DimPresentation, func(xs []float64) float64 { return stat.Mean(xs, nil) })
		if err != nil {
			return nil, err
		}
	}

	log.Debug().
		Int("split", sp.Index).
		Int("train", len(sp.Train)).
		Int("test", len(sp.Test)).
		Msg("split scored")
	return result, nil
}
