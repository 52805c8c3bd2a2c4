package metrics

import (
	"slices"

	"github.com/tensorplex-labs/brainscore/internal/compare"
	"github.com/tensorplex-labs/brainscore/internal/errs"
	"github.com/tensorplex-labs/brainscore/internal/regression"
	"github.com/tensorplex-labs/brainscore/internal/split"
)

const (
	PLSPearson      = "pls-pearson"
	LinearPearson   = "linear-pearson"
	RidgePearson    = "ridge-pearson"
	LinearEuclidean = "linear-euclidean"
	RDMName         = "rdm"
)

// Options parameterize the registered metrics.
type Options struct {
	Splits          int     `json:"splits"`
	TestFraction    float64 `json:"test_fraction"`
	RDMTestFraction float64 `json:"rdm_test_fraction"`
	StratifyCoord   string  `json:"stratify_coord"`
	Seed            uint64  `json:"seed"`
	Workers         int     `json:"workers"`
	PLSComponents   int     `json:"pls_components"`
	RidgeAlpha      float64 `json:"ridge_alpha"`
}

func DefaultOptions() Options {
	return Options{
		Splits:          split.DefaultSplits,
		TestFraction:    split.DefaultTestFraction,
		RDMTestFraction: DefaultRDMTestFraction,
		StratifyCoord:   split.DefaultSplitter().StratifyCoord,
		Workers:         1,
		PLSComponents:   regression.DefaultPLSComponents,
		RidgeAlpha:      regression.DefaultRidgeAlpha,
	}
}

// WithDefaults fills the fields whose zero value no metric accepts from d.
func (o Options) WithDefaults(d Options) Options {
	if o.Splits == 0 {
		o.Splits = d.Splits
	}
	if o.TestFraction == 0 {
		o.TestFraction = d.TestFraction
	}
	if o.RDMTestFraction == 0 {
		o.RDMTestFraction = d.RDMTestFraction
	}
	if o.Workers == 0 {
		o.Workers = d.Workers
	}
	if o.PLSComponents == 0 {
		o.PLSComponents = d.PLSComponents
	}
	return o
}

func (o Options) splitter(testFraction float64) split.Splitter {
	return split.Splitter{
		NSplits:       o.Splits,
		TestFraction:  testFraction,
		StratifyCoord: o.StratifyCoord,
		Seed:          o.Seed,
	}
}

type constructor func(Options) Metric

var registry = map[string]constructor{
	PLSPearson: func(o Options) Metric {
		return NewCrossValidation(
			WithRegression(func() regression.Regressor { return regression.NewPLSRegression(o.PLSComponents) }),
			WithComparator(compare.Pearson),
			WithSplitter(o.splitter(o.TestFraction)),
			WithAggregator(MedianUnitsSEM),
			WithWorkers(o.Workers),
		)
	},
	LinearPearson: func(o Options) Metric {
		return NewCrossValidation(
			WithRegression(func() regression.Regressor { return regression.NewLinearRegression() }),
			WithComparator(compare.Pearson),
			WithSplitter(o.splitter(o.TestFraction)),
			WithAggregator(MedianUnitsSEM),
			WithWorkers(o.Workers),
		)
	},
	RidgePearson: func(o Options) Metric {
		return NewCrossValidation(
			WithRegression(func() regression.Regressor { return regression.NewRidgeRegression(o.RidgeAlpha) }),
			WithComparator(compare.Pearson),
			WithSplitter(o.splitter(o.TestFraction)),
			WithAggregator(MedianUnitsSEM),
			WithWorkers(o.Workers),
		)
	},
	LinearEuclidean: func(o Options) Metric {
		return NewCrossValidation(
			WithRegression(func() regression.Regressor { return regression.NewLinearRegression() }),
			WithComparator(compare.Euclidean),
			WithSplitter(o.splitter(o.TestFraction)),
			WithAggregator(MeanSEM),
			WithWorkers(o.Workers),
		)
	},
	RDMName: func(o Options) Metric {
		return NewRDMCrossValidated(
			WithSplitter(o.splitter(o.RDMTestFraction)),
			WithWorkers(o.Workers),
		)
	},
}

// New builds the registered metric called name.
func New(name string, opts Options) (Metric, error) {
	build, ok := registry[name]
	if !ok {
		return nil, errs.Configurationf("unknown metric %q, known metrics are %v", name, Names())
	}
	return build(opts), nil
}

// Names lists the registered metrics in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
