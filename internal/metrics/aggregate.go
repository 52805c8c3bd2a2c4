package metrics

import (
	"math"
	"strconv"

	"github.com/montanaflynn/stats"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/errs"
)

// Aggregator reduces a raw score to an assembly over the aggregation dim
// labeled center and error.
type Aggregator func(raw *assembly.Assembly) (*assembly.Assembly, error)

// MeanSEM averages every split over its units, then reports the mean over
// splits as center and the standard error of that mean as error.
func MeanSEM(raw *assembly.Assembly) (*assembly.Assembly, error) {
	return splitAggregate(raw, stats.Mean)
}

// MedianUnitsSEM is MeanSEM with the median across units inside every split.
func MedianUnitsSEM(raw *assembly.Assembly) (*assembly.Assembly, error) {
	return splitAggregate(raw, stats.Median)
}

func splitAggregate(raw *assembly.Assembly, unitReduce func(stats.Float64Data) (float64, error)) (*assembly.Assembly, error) {
	perSplit, err := SplitValues(raw, unitReduce)
	if err != nil {
		return nil, err
	}
	center, err := stats.Mean(perSplit)
	if err != nil {
		return nil, errs.Numericf("mean over %d splits: %v", len(perSplit), err)
	}
	return CenterError(center, standardError(perSplit)), nil
}

// standardError is the sample standard deviation over sqrt(n), 0 below two values.
func standardError(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(values)
	if err != nil {
		return math.NaN()
	}
	return sd / math.Sqrt(float64(len(values)))
}

// CenterError builds an aggregation assembly.
func CenterError(center, err float64) *assembly.Assembly {
	agg, _ := assembly.New(
		[]float64{center, err},
		[]string{assembly.DimAggregation},
		[]int{2},
		assembly.Coord{Name: assembly.CoordAggregation, Dim: assembly.DimAggregation, Labels: []string{assembly.LabelCenter, assembly.LabelError}},
	)
	return agg
}

// SplitValues reduces every split of raw to one value with unitReduce. NaN
// entries are skipped. An assembly without a split dim counts as one split.
func SplitValues(raw *assembly.Assembly, unitReduce func(stats.Float64Data) (float64, error)) ([]float64, error) {
	if raw == nil || raw.Size() == 0 {
		return nil, errs.Numericf("empty raw score")
	}
	values := raw.Values()
	nSplits := 1
	if raw.HasDim(assembly.DimSplit) {
		rest := []string{assembly.DimSplit}
		for _, d := range raw.Dims() {
			if d != assembly.DimSplit {
				rest = append(rest, d)
			}
		}
		t, err := raw.Transpose(rest...)
		if err != nil {
			return nil, err
		}
		values = t.Values()
		nSplits = raw.Len(assembly.DimSplit)
	}

	chunk := len(values) / nSplits
	out := make([]float64, nSplits)
	for s := range nSplits {
		finite := make(stats.Float64Data, 0, chunk)
		for _, v := range values[s*chunk : (s+1)*chunk] {
			if !math.IsNaN(v) {
				finite = append(finite, v)
			}
		}
		if len(finite) == 0 {
			return nil, errs.Numericf("split %d has no finite values", s)
		}
		v, err := unitReduce(finite)
		if err != nil {
			return nil, errs.Numericf("reduce split %d: %v", s, err)
		}
		out[s] = v
	}
	return out, nil
}

// SplitLabels are the split coord labels of an n split score, "0" to "n-1".
func SplitLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = strconv.Itoa(i)
	}
	return labels
}
