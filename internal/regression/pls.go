package regression

import (
	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/errs"
)

const (
	DefaultPLSComponents = 25

	plsMaxIter   = 500
	plsTolerance = 1e-06
	plsEpsilon   = 1e-12
)

// PLSRegression is two-block partial least squares (NIPALS, regression mode)
// on standardized data with a fixed number of components. Fewer components
// are kept when the training data is exhausted earlier.
type PLSRegression struct {
	Components int

	info             *fitted
	xMeans, xStds    []float64
	yMeans, yStds    []float64
	coef             *mat.Dense
	fittedComponents int
}

func NewPLSRegression(components int) *PLSRegression {
	return &PLSRegression{Components: components}
}

// FittedComponents reports how many components the last fit extracted.
func (r *PLSRegression) FittedComponents() int { return r.fittedComponents }

func (r *PLSRegression) Fit(source, target *assembly.Assembly) error {
	r.info, r.coef, r.fittedComponents = nil, nil, 0
	if r.Components < 1 {
		return errs.Configurationf("pls needs at least 1 component, got %d", r.Components)
	}

	x, y, info, err := trainingMatrices(source, target)
	if err != nil {
		return err
	}
	n, p := x.Dims()
	_, q := y.Dims()
	if n < 2 {
		return errs.Configurationf("pls needs at least 2 training presentations, got %d", n)
	}

	xMeans, xStds := columnStats(x)
	yMeans, yStds := columnStats(y)
	replaceZero(xStds)
	replaceZero(yStds)
	xk := standardize(x, xMeans, xStds)
	yk := standardize(y, yMeans, yStds)

	components := min(r.Components, p, n-1)
	var weights, xLoadings, yLoadings []*mat.VecDense
	for range components {
		w, ok := plsInnerLoop(xk, yk)
		if !ok {
			break
		}
		t := mat.NewVecDense(n, nil)
		t.MulVec(xk, w)
		tt := mat.Dot(t, t)
		if tt < plsEpsilon {
			break
		}

		pl := mat.NewVecDense(p, nil)
		pl.MulVec(xk.T(), t)
		pl.ScaleVec(1/tt, pl)
		ql := mat.NewVecDense(q, nil)
		ql.MulVec(yk.T(), t)
		ql.ScaleVec(1/tt, ql)

		xk.RankOne(xk, -1, t, pl)
		yk.RankOne(yk, -1, t, ql)

		weights = append(weights, w)
		xLoadings = append(xLoadings, pl)
		yLoadings = append(yLoadings, ql)
	}
	k := len(weights)
	if k == 0 {
		return errs.Numericf("pls: no component could be extracted from %dx%d training data", n, p)
	}

	w, pm, qm := columns(weights), columns(xLoadings), columns(yLoadings)

	// rotations = W (P^T W)^-1, coef = rotations Q^T in standardized units
	var ptw, inv, rotations, coef mat.Dense
	ptw.Mul(pm.T(), w)
	if err := inv.Inverse(&ptw); err != nil {
		return numeric("pls rotations", err)
	}
	rotations.Mul(w, &inv)
	coef.Mul(&rotations, qm.T())

	r.info = &info
	r.xMeans, r.xStds, r.yMeans, r.yStds = xMeans, xStds, yMeans, yStds
	r.coef, r.fittedComponents = &coef, k
	return nil
}

func (r *PLSRegression) Predict(source *assembly.Assembly) (*assembly.Assembly, error) {
	x, err := predictionMatrix(r.info, source)
	if err != nil {
		return nil, err
	}
	var pred mat.Dense
	pred.Mul(standardize(x, r.xMeans, r.xStds), r.coef)
	pred.Apply(func(_, j int, v float64) float64 { return v*r.yStds[j] + r.yMeans[j] }, &pred)
	return labelPrediction(r.info, source, &pred)
}

// plsInnerLoop finds the x weights of the next component by power iteration
// between the x and y blocks.
func plsInnerLoop(xk, yk *mat.Dense) (*mat.VecDense, bool) {
	n, p := xk.Dims()
	_, q := yk.Dims()

	u := mat.NewVecDense(n, nil)
	best := 0.0
	for j := range q {
		col := mat.NewVecDense(n, mat.Col(nil, j, yk))
		if norm := mat.Norm(col, 2); norm > best {
			best = norm
			u.CopyVec(col)
		}
	}
	if best < plsEpsilon {
		return nil, false
	}

	w := mat.NewVecDense(p, nil)
	wOld := mat.NewVecDense(p, nil)
	t := mat.NewVecDense(n, nil)
	c := mat.NewVecDense(q, nil)
	var diff mat.VecDense
	for iter := range plsMaxIter {
		w.MulVec(xk.T(), u)
		norm := mat.Norm(w, 2)
		if norm < plsEpsilon {
			return nil, false
		}
		w.ScaleVec(1/norm, w)

		t.MulVec(xk, w)
		tt := mat.Dot(t, t)
		if tt < plsEpsilon {
			return nil, false
		}
		c.MulVec(yk.T(), t)
		c.ScaleVec(1/tt, c)
		cc := mat.Dot(c, c)
		if cc < plsEpsilon {
			return nil, false
		}
		u.MulVec(yk, c)
		u.ScaleVec(1/cc, u)

		diff.SubVec(w, wOld)
		if q == 1 || (iter > 0 && mat.Norm(&diff, 2) < plsTolerance) {
			break
		}
		wOld.CopyVec(w)
	}
	return w, true
}

func columns(vs []*mat.VecDense) *mat.Dense {
	m := mat.NewDense(vs[0].Len(), len(vs), nil)
	for j, v := range vs {
		m.SetCol(j, v.RawVector().Data)
	}
	return m
}

func replaceZero(stds []float64) {
	for i, s := range stds {
		if s == 0 {
			stds[i] = 1
		}
	}
}
