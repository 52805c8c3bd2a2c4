package regression

import (
	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/errs"
)

const DefaultRidgeAlpha = 1.0

// RidgeRegression is L2 penalized least squares on centered data, solved
// through a Cholesky factorization of the regularized normal equations.
type RidgeRegression struct {
	Alpha float64

	info      *fitted
	coef      *mat.Dense
	intercept []float64
}

func NewRidgeRegression(alpha float64) *RidgeRegression {
	return &RidgeRegression{Alpha: alpha}
}

func (r *RidgeRegression) Fit(source, target *assembly.Assembly) error {
	r.info, r.coef, r.intercept = nil, nil, nil
	if r.Alpha < 0 {
		return errs.Configurationf("ridge alpha must be non-negative, got %v", r.Alpha)
	}

	x, y, info, err := trainingMatrices(source, target)
	if err != nil {
		return err
	}
	xMeans, _ := columnStats(x)
	yMeans, _ := columnStats(y)
	xc, yc := standardize(x, xMeans, nil), standardize(y, yMeans, nil)

	_, p := xc.Dims()
	var gram mat.SymDense
	gram.SymOuterK(1, xc.T())
	for i := range p {
		gram.SetSym(i, i, gram.At(i, i)+r.Alpha)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return errs.Numericf("ridge: normal equations not positive definite (alpha %v)", r.Alpha)
	}

	var xty, coef mat.Dense
	xty.Mul(xc.T(), yc)
	if err := chol.SolveTo(&coef, &xty); err != nil {
		return numeric("ridge", err)
	}

	_, q := yc.Dims()
	intercept := make([]float64, q)
	for j := range q {
		v := yMeans[j]
		for i := range p {
			v -= xMeans[i] * coef.At(i, j)
		}
		intercept[j] = v
	}

	r.info, r.coef, r.intercept = &info, &coef, intercept
	return nil
}

func (r *RidgeRegression) Predict(source *assembly.Assembly) (*assembly.Assembly, error) {
	x, err := predictionMatrix(r.info, source)
	if err != nil {
		return nil, err
	}
	var pred mat.Dense
	pred.Mul(x, r.coef)
	pred.Apply(func(_, j int, v float64) float64 { return v + r.intercept[j] }, &pred)
	return labelPrediction(r.info, source, &pred)
}
