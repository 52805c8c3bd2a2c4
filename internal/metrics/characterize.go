package metrics

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/errs"
)

// Characterization transforms an assembly before it is scored.
type Characterization func(*assembly.Assembly) (*assembly.Assembly, error)

// Characterized applies Characterization to source and target, then scores
// them with Metric.
type Characterized struct {
	Metric           Metric
	Characterization Characterization
}

func (c Characterized) Score(ctx context.Context, source, target *assembly.Assembly) (*Score, error) {
	if c.Characterization != nil {
		var err error
		if source, err = c.Characterization(source); err != nil {
			return nil, fmt.Errorf("characterize source: %w", err)
		}
		if target, err = c.Characterization(target); err != nil {
			return nil, fmt.Errorf("characterize target: %w", err)
		}
	}
	return c.Metric.Score(ctx, source, target)
}

// Chain applies characterizations in order.
func Chain(steps ...Characterization) Characterization {
	return func(a *assembly.Assembly) (*assembly.Assembly, error) {
		var err error
		for _, step := range steps {
			if a, err = step(a); err != nil {
				return nil, err
			}
		}
		return a, nil
	}
}

// ZScore standardizes every unit of a 2D assembly across dim. Constant units
// are only centered.
func ZScore(dim string) Characterization {
	return columnwise(dim, func(col []float64) {
		mean, std := stat.MeanStdDev(col, nil)
		floats.AddConst(-mean, col)
		if std > 0 {
			floats.Scale(1/std, col)
		}
	})
}

// MinMaxScale maps every unit of a 2D assembly across dim onto [0, 1].
// Constant units become 0.
func MinMaxScale(dim string) Characterization {
	return columnwise(dim, func(col []float64) {
		lo := floats.Min(col)
		hi := floats.Max(col)

		if hi != lo {
			floats.AddConst(-lo, col)
			floats.Scale(1.0/(hi-lo), col)
		} else {
			floats.Scale(0, col)
		}
	})
}

// AverageRepetitions averages positions that share a coord label, e.g.
// repeated presentations of one image_id.
func AverageRepetitions(coord string) Characterization {
	return func(a *assembly.Assembly) (*assembly.Assembly, error) {
		return a.GroupMean(coord)
	}
}

// columnwise rewrites the columns of a's (dim x other) matrix in place and
// restores the original dim order.
func columnwise(dim string, fn func(col []float64)) Characterization {
	return func(a *assembly.Assembly) (*assembly.Assembly, error) {
		dims := a.Dims()
		if len(dims) != 2 || !a.HasDim(dim) {
			return nil, errs.Alignmentf("characterization needs a 2D assembly with dim %q, got dims %v", dim, dims)
		}
		other := dims[0]
		if other == dim {
			other = dims[1]
		}
		m, err := a.Matrix(dim, other)
		if err != nil {
			return nil, err
		}

		rows, cols := m.Dims()
		col := make([]float64, rows)
		out := mat.NewDense(rows, cols, nil)
		for j := range cols {
			mat.Col(col, j, m)
			fn(col)
			out.SetCol(j, col)
		}

		scaled, err := assembly.NewMatrix(out, dim, other, a.Coords()...)
		if err != nil {
			return nil, err
		}
		return scaled.Transpose(dims...)
	}
}
