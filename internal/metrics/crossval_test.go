package metrics

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/suite"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/compare"
	"github.com/tensorplex-labs/brainscore/internal/errs"
	"github.com/tensorplex-labs/brainscore/internal/regression"
	"github.com/tensorplex-labs/brainscore/internal/split"
	"github.com/tensorplex-labs/brainscore/internal/testkit"
)

type CrossValidationTestSuite struct {
	suite.Suite
	source *assembly.Assembly
	mixed  *assembly.Assembly
}

func (s *CrossValidationTestSuite) SetupSuite() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	source, err := testkit.RandomAssembly(testkit.DefaultAssemblyConfig())
	s.Require().NoError(err)
	s.source = source

	mixed, err := testkit.LinearMix(source, 25, 0, 7, "target", "IT")
	s.Require().NoError(err)
	s.mixed = mixed
}

// uniform splits of 30 presentations leave 27 training rows, so the centered
// design keeps full rank and identity fits are exact.
func (s *CrossValidationTestSuite) uniform() split.Splitter {
	return split.Splitter{NSplits: 10, TestFraction: split.DefaultTestFraction}
}

func (s *CrossValidationTestSuite) linear(comparator compare.Comparator, opts ...CrossValidationOption) *CrossValidation {
	base := []CrossValidationOption{
		WithRegression(func() regression.Regressor { return regression.NewLinearRegression() }),
		WithComparator(comparator),
		WithSplitter(s.uniform()),
	}
	return NewCrossValidation(append(base, opts...)...)
}

func (s *CrossValidationTestSuite) TestIdentityScoresOne() {
	score, err := s.linear(compare.Pearson).Score(context.Background(), s.source, s.source)
	s.Require().NoError(err)

	s.Equal([]string{assembly.DimSplit, assembly.DimNeuroid}, score.Raw.Dims())
	s.Equal([]int{10, 25}, score.Raw.Shape())
	s.InDelta(1.0, score.Center(), 1e-6)
	s.Less(score.Error(), 1e-6)
}

func (s *CrossValidationTestSuite) TestLinearEuclideanIdentityIsZero() {
	opts := DefaultOptions()
	opts.StratifyCoord = ""
	metric, err := New(LinearEuclidean, opts)
	s.Require().NoError(err)

	score, err := metric.Score(context.Background(), s.source, s.source)
	s.Require().NoError(err)
	s.Less(score.Center(), 1e-10)
}

func (s *CrossValidationTestSuite) TestLinearMetricsWithDefaultOptions() {
	// stratified splits leave 25 training rows for 25 neuroids
	pearson, err := New(LinearPearson, DefaultOptions())
	s.Require().NoError(err)
	score, err := pearson.Score(context.Background(), s.source, s.source)
	s.Require().NoError(err)
	s.Equal([]int{10, 25}, score.Raw.Shape())
	s.Greater(score.Center(), 0.9)
	s.LessOrEqual(score.Center(), 1.0+1e-9)

	euclidean, err := New(LinearEuclidean, DefaultOptions())
	s.Require().NoError(err)
	identity, err := euclidean.Score(context.Background(), s.source, s.source)
	s.Require().NoError(err)

	cfg := testkit.DefaultAssemblyConfig()
	cfg.Seed = 1234
	unrelated, err := testkit.RandomAssembly(cfg)
	s.Require().NoError(err)
	baseline, err := euclidean.Score(context.Background(), s.source, unrelated)
	s.Require().NoError(err)
	s.Less(identity.Center(), baseline.Center())
}

func (s *CrossValidationTestSuite) TestWideSourceIdentity() {
	// 60 model features spanned by 6 latent ones
	cfg := testkit.DefaultAssemblyConfig()
	cfg.Neuroids = 6
	latent, err := testkit.RandomAssembly(cfg)
	s.Require().NoError(err)
	wide, err := testkit.LinearMix(latent, 60, 0, 21, "model", "IT")
	s.Require().NoError(err)

	pearson, err := New(LinearPearson, DefaultOptions())
	s.Require().NoError(err)
	score, err := pearson.Score(context.Background(), wide, wide)
	s.Require().NoError(err)
	s.Equal([]int{10, 60}, score.Raw.Shape())
	s.InDelta(1.0, score.Center(), 1e-6)

	euclidean, err := New(LinearEuclidean, DefaultOptions())
	s.Require().NoError(err)
	distance, err := euclidean.Score(context.Background(), wide, wide)
	s.Require().NoError(err)
	s.Less(distance.Center(), 1e-6)
}

func (s *CrossValidationTestSuite) TestRDMBelowCorrelationOnMixedTarget() {
	opts := DefaultOptions()
	opts.StratifyCoord = ""

	rdm, err := New(RDMName, opts)
	s.Require().NoError(err)
	rdmScore, err := rdm.Score(context.Background(), s.source, s.mixed)
	s.Require().NoError(err)

	pearson, err := New(LinearPearson, opts)
	s.Require().NoError(err)
	pearsonScore, err := pearson.Score(context.Background(), s.source, s.mixed)
	s.Require().NoError(err)

	s.Equal([]string{assembly.DimSplit}, rdmScore.Raw.Dims())
	s.Less(rdmScore.Center(), 1.0)
	s.Less(rdmScore.Center(), pearsonScore.Center())
	s.InDelta(1.0, pearsonScore.Center(), 1e-6)
}

func (s *CrossValidationTestSuite) TestAggregationIsRecomputable() {
	score, err := s.linear(compare.Pearson).Score(context.Background(), s.source, s.mixed)
	s.Require().NoError(err)

	expected, err := score.Aggregator()(score.Raw)
	s.Require().NoError(err)
	s.Equal(expected.Values(), score.Aggregation.Values())

	before := score.Aggregation.Values()
	s.Require().NoError(score.Recompute())
	s.Equal(before, score.Aggregation.Values())
	s.Equal([]string{assembly.LabelCenter, assembly.LabelError}, score.Aggregation.Labels(assembly.CoordAggregation))
}

func (s *CrossValidationTestSuite) TestWorkersDoNotChangeTheResult() {
	sequential, err := s.linear(compare.Pearson, WithWorkers(1)).Score(context.Background(), s.source, s.mixed)
	s.Require().NoError(err)
	parallel, err := s.linear(compare.Pearson, WithWorkers(4)).Score(context.Background(), s.source, s.mixed)
	s.Require().NoError(err)

	s.Equal(sequential.Raw.Values(), parallel.Raw.Values())
	s.Equal(sequential.Raw.Labels(assembly.CoordSplit), parallel.Raw.Labels(assembly.CoordSplit))
}

func (s *CrossValidationTestSuite) TestPerPresentationComparisonIsAveraged() {
	score, err := s.linear(compare.AbsoluteDifference).Score(context.Background(), s.source, s.source)
	s.Require().NoError(err)
	s.Equal([]string{assembly.DimSplit, assembly.DimNeuroid}, score.Raw.Dims())
	s.Less(score.Center(), 1e-10)
}

func (s *CrossValidationTestSuite) TestSplitFailureAborts() {
	failing := compare.Func(func(_, _ *assembly.Assembly) (*assembly.Assembly, error) {
		return nil, errs.Numericf("degenerate split")
	})
	_, err := s.linear(failing, WithWorkers(3)).Score(context.Background(), s.source, s.source)
	s.Require().Error(err)

	var splitErr *SplitError
	s.True(errors.As(err, &splitErr))
	s.ErrorIs(err, errs.ErrNumeric)
}

func (s *CrossValidationTestSuite) TestNoOverlap() {
	ids := make([]string, s.source.Len(assembly.DimPresentation))
	for i := range ids {
		ids[i] = "other" + s.source.Labels(assembly.CoordImageID)[i]
	}
	renamed, err := assembly.New(s.source.Values(), s.source.Dims(), s.source.Shape(),
		assembly.Coord{Name: assembly.CoordImageID, Dim: assembly.DimPresentation, Labels: ids},
		assembly.Coord{Name: assembly.CoordObjectName, Dim: assembly.DimPresentation, Labels: s.source.Labels(assembly.CoordObjectName)},
	)
	s.Require().NoError(err)

	_, err = s.linear(compare.Pearson).Score(context.Background(), s.source, renamed)
	s.ErrorIs(err, errs.ErrAlignment)
	s.Contains(err.Error(), "no overlapping samples")
}

func (s *CrossValidationTestSuite) TestScoresOnlySharedPresentations() {
	subset, err := s.source.Isel(assembly.DimPresentation, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19})
	s.Require().NoError(err)

	cv := NewCrossValidation(
		WithRegression(func() regression.Regressor { return regression.NewRidgeRegression(regression.DefaultRidgeAlpha) }),
		WithSplitter(split.Splitter{NSplits: 3, TestFraction: 0.25}),
	)
	score, err := cv.Score(context.Background(), s.source, subset)
	s.Require().NoError(err)
	s.Equal([]int{3, 25}, score.Raw.Shape())
}

func (s *CrossValidationTestSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.linear(compare.Pearson).Score(ctx, s.source, s.source)
	s.ErrorIs(err, context.Canceled)
}

func (s *CrossValidationTestSuite) TestMissingStratificationCoord() {
	cv := s.linear(compare.Pearson, WithSplitter(split.Splitter{NSplits: 2, TestFraction: 0.1, StratifyCoord: "category"}))
	_, err := cv.Score(context.Background(), s.source, s.source)
	s.ErrorIs(err, errs.ErrConfiguration)
}

func (s *CrossValidationTestSuite) TestCharacterizedAveragesRepetitions() {
	cfg := testkit.DefaultAssemblyConfig()
	cfg.Repetitions = 3
	repeated, err := testkit.RandomAssembly(cfg)
	s.Require().NoError(err)

	// repeated image ids cannot be aligned until averaged
	_, err = s.linear(compare.Pearson).Score(context.Background(), repeated, repeated)
	s.ErrorIs(err, errs.ErrAlignment)

	metric := Characterized{
		Metric:           s.linear(compare.Pearson),
		Characterization: AverageRepetitions(assembly.CoordImageID),
	}
	score, err := metric.Score(context.Background(), repeated, repeated)
	s.Require().NoError(err)
	s.InDelta(1.0, score.Center(), 1e-6)
}

func TestCrossValidationTestSuite(t *testing.T) {
	suite.Run(t, new(CrossValidationTestSuite))
}

func BenchmarkCrossValidationPLS(b *testing.B) {
	cfg := testkit.DefaultAssemblyConfig()
	cfg.Presentations, cfg.Neuroids = 100, 40
	source, err := testkit.RandomAssembly(cfg)
	if err != nil {
		b.Fatal(err)
	}
	target, err := testkit.LinearMix(source, 20, 0.5, 3, "target", "IT")
	if err != nil {
		b.Fatal(err)
	}
	cv := NewCrossValidation(WithWorkers(4))

	b.ResetTimer()
	for b.Loop() {
		if _, err := cv.Score(context.Background(), source, target); err != nil {
			b.Fatal(err)
		}
	}
}
