// Package compare scores predicted responses against actual responses.
package compare

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
)

// Comparator compares a prediction with the actual responses over the same
// presentations and neuroids. Implementations realign both inputs first.
type Comparator interface {
	Compare(prediction, actual *assembly.Assembly) (*assembly.Assembly, error)
}

// Func adapts a plain function to Comparator.
type Func func(prediction, actual *assembly.Assembly) (*assembly.Assembly, error)

func (f Func) Compare(prediction, actual *assembly.Assembly) (*assembly.Assembly, error) {
	return f(prediction, actual)
}

var (
	// Pearson correlates prediction and actual per neuroid across presentations.
	Pearson Comparator = Func(pearson)
	// AbsoluteDifference is |prediction - actual| for every entry.
	AbsoluteDifference Comparator = Func(absoluteDifference)
	// Euclidean is the per neuroid distance across presentations.
	Euclidean Comparator = Func(euclidean)
	// Cosine is the per neuroid cosine similarity across presentations.
	Cosine Comparator = Func(cosine)
)

// aligned sorts both inputs by image and neuroid and returns presentation x
// neuroid matrices together with the neuroid coords of the prediction.
func aligned(prediction, actual *assembly.Assembly) (p, a *mat.Dense, units []assembly.Coord, presentations []assembly.Coord, err error) {
	prediction, actual, err = assembly.Realign(prediction, actual, assembly.CoordImageID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("compare presentations: %w", err)
	}
	prediction, actual, err = assembly.Realign(prediction, actual, assembly.CoordNeuroidID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("compare neuroids: %w", err)
	}
	if p, err = prediction.Matrix(assembly.DimPresentation, assembly.DimNeuroid); err != nil {
		return nil, nil, nil, nil, err
	}
	if a, err = actual.Matrix(assembly.DimPresentation, assembly.DimNeuroid); err != nil {
		return nil, nil, nil, nil, err
	}
	return p, a, prediction.CoordsOn(assembly.DimNeuroid), prediction.CoordsOn(assembly.DimPresentation), nil
}

// perUnit applies fn to every neuroid column pair and returns a [neuroid] assembly.
func perUnit(prediction, actual *assembly.Assembly, fn func(p, a []float64) float64) (*assembly.Assembly, error) {
	p, a, units, _, err := aligned(prediction, actual)
	if err != nil {
		return nil, err
	}
	r, c := p.Dims()
	values := make([]float64, c)
	pc, ac := make([]float64, r), make([]float64, r)
	for j := range c {
		mat.Col(pc, j, p)
		mat.Col(ac, j, a)
		values[j] = fn(pc, ac)
	}
	return assembly.New(values, []string{assembly.DimNeuroid}, []int{c}, units...)
}

func pearson(prediction, actual *assembly.Assembly) (*assembly.Assembly, error) {
	return perUnit(prediction, actual, PearsonVectors)
}

func euclidean(prediction, actual *assembly.Assembly) (*assembly.Assembly, error) {
	return perUnit(prediction, actual, func(p, a []float64) float64 { return floats.Distance(p, a, 2) })
}

func cosine(prediction, actual *assembly.Assembly) (*assembly.Assembly, error) {
	return perUnit(prediction, actual, CosineVectors)
}

func absoluteDifference(prediction, actual *assembly.Assembly) (*assembly.Assembly, error) {
	p, a, units, presentations, err := aligned(prediction, actual)
	if err != nil {
		return nil, err
	}
	var diff mat.Dense
	diff.Sub(p, a)
	diff.Apply(func(_, _ int, v float64) float64 { return math.Abs(v) }, &diff)
	return assembly.NewMatrix(&diff, assembly.DimPresentation, assembly.DimNeuroid, append(presentations, units...)...)
}

// PearsonVectors is the Pearson correlation of two equally long vectors. It is
// NaN when either vector has zero variance.
func PearsonVectors(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return math.NaN()
	}
	return stat.Correlation(a, b, nil)
}

// CosineVectors is the cosine similarity of a and b, 0 when either is all zeros.
func CosineVectors(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	dotProduct := floats.Dot(a, b)
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (normA * normB)
}
