// Package regression fits linear mappings from a source assembly's neuroids to
// a target assembly's neuroids and predicts held-out presentations.
package regression

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/errs"
)

// Regressor is a two-phase model: Fit, then Predict. Fit discards any state
// from an earlier fit.
type Regressor interface {
	Fit(source, target *assembly.Assembly) error
	Predict(source *assembly.Assembly) (*assembly.Assembly, error)
}

// Factory builds a fresh, unfitted Regressor. Cross-validation calls it once
// per split so fitted parameters never cross splits.
type Factory func() Regressor

// fitted keeps what Predict needs to label its output.
type fitted struct {
	sourceFeatures int
	targetCoords   []assembly.Coord
}

// trainingMatrices validates a fit pair and returns presentation x neuroid matrices.
func trainingMatrices(source, target *assembly.Assembly) (x, y *mat.Dense, info fitted, err error) {
	if err = assembly.AssertAligned(source, target, assembly.CoordImageID); err != nil {
		return nil, nil, fitted{}, fmt.Errorf("fit: %w", err)
	}
	if x, err = source.Matrix(assembly.DimPresentation, assembly.DimNeuroid); err != nil {
		return nil, nil, fitted{}, fmt.Errorf("fit source: %w", err)
	}
	if y, err = target.Matrix(assembly.DimPresentation, assembly.DimNeuroid); err != nil {
		return nil, nil, fitted{}, fmt.Errorf("fit target: %w", err)
	}
	_, p := x.Dims()
	return x, y, fitted{sourceFeatures: p, targetCoords: target.CoordsOn(assembly.DimNeuroid)}, nil
}

// predictionMatrix validates a predict input against the fitted state.
func predictionMatrix(info *fitted, source *assembly.Assembly) (*mat.Dense, error) {
	if info == nil {
		return nil, fmt.Errorf("predict: %w", errs.ErrUnfittedModel)
	}
	x, err := source.Matrix(assembly.DimPresentation, assembly.DimNeuroid)
	if err != nil {
		return nil, fmt.Errorf("predict source: %w", err)
	}
	if _, p := x.Dims(); p != info.sourceFeatures {
		return nil, errs.Alignmentf("predict: model fitted on %d source neuroids, got %d", info.sourceFeatures, p)
	}
	return x, nil
}

// labelPrediction wraps predicted values with the test presentations and the
// training target's neuroids.
func labelPrediction(info *fitted, source *assembly.Assembly, predicted *mat.Dense) (*assembly.Assembly, error) {
	coords := append(source.CoordsOn(assembly.DimPresentation), info.targetCoords...)
	return assembly.NewMatrix(predicted, assembly.DimPresentation, assembly.DimNeuroid, coords...)
}

func columnStats(m *mat.Dense) (means, stds []float64) {
	r, c := m.Dims()
	means, stds = make([]float64, c), make([]float64, c)
	col := make([]float64, r)
	for j := range c {
		mat.Col(col, j, m)
		means[j], stds[j] = stat.MeanStdDev(col, nil)
	}
	return means, stds
}

// standardize returns (m - means) / scales column-wise. A nil scales centers only.
func standardize(m *mat.Dense, means, scales []float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		v -= means[j]
		if scales != nil {
			v /= scales[j]
		}
		return v
	}, m)
	return out
}

func numeric(op string, err error) error {
	var cond mat.Condition
	if errors.As(err, &cond) {
		return fmt.Errorf("%w: %s: ill-conditioned system (condition number %.3g)", errs.ErrNumeric, op, float64(cond))
	}
	return fmt.Errorf("%w: %s: %w", errs.ErrNumeric, op, err)
}
