package regression

import (
	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/errs"
)

// rankTolerance drops singular values below this fraction of the largest
// one when solving least squares.
const rankTolerance = 1e-10

// LinearRegression is ordinary least squares. The centered design is solved
// through a thin SVD truncated at its numerical rank, so designs with fewer
// training presentations than features get the minimum norm coefficients.
type LinearRegression struct {
	FitIntercept bool

	info      *fitted
	xMeans    []float64
	coef      *mat.Dense
	intercept []float64
}

func NewLinearRegression() *LinearRegression {
	return &LinearRegression{FitIntercept: true}
}

func (r *LinearRegression) Fit(source, target *assembly.Assembly) error {
	r.info, r.coef, r.xMeans, r.intercept = nil, nil, nil, nil

	x, y, info, err := trainingMatrices(source, target)
	if err != nil {
		return err
	}
	_, p := x.Dims()
	_, q := y.Dims()
	xMeans, yMeans := make([]float64, p), make([]float64, q)
	if r.FitIntercept {
		xMeans, _ = columnStats(x)
		yMeans, _ = columnStats(y)
	}

	coef, err := leastSquares(standardize(x, xMeans, nil), standardize(y, yMeans, nil))
	if err != nil {
		return err
	}

	// intercept = yMean - xMean . coef
	intercept := make([]float64, q)
	for j := range q {
		v := yMeans[j]
		for i := range p {
			v -= xMeans[i] * coef.At(i, j)
		}
		intercept[j] = v
	}

	r.info, r.coef, r.xMeans, r.intercept = &info, coef, xMeans, intercept
	return nil
}

func (r *LinearRegression) Predict(source *assembly.Assembly) (*assembly.Assembly, error) {
	x, err := predictionMatrix(r.info, source)
	if err != nil {
		return nil, err
	}
	var pred mat.Dense
	pred.Mul(x, r.coef)
	pred.Apply(func(_, j int, v float64) float64 { return v + r.intercept[j] }, &pred)
	return labelPrediction(r.info, source, &pred)
}

// leastSquares returns the minimum norm solution of x . coef = y.
func leastSquares(x, y *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, errs.Numericf("least squares: singular value decomposition failed")
	}
	rank := svd.Rank(rankTolerance)
	if rank == 0 {
		return nil, errs.Numericf("least squares: design matrix has rank 0")
	}
	var coef mat.Dense
	svd.SolveTo(&coef, y, rank)
	return &coef, nil
}
