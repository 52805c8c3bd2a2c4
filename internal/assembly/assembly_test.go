package assembly

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/brainscore/internal/errs"
)

// 3 presentations x 2 neuroids
func newTestAssembly(t *testing.T) *Assembly {
	t.Helper()
	a, err := New(
		[]float64{
			1, 2,
			3, 4,
			5, 6,
		},
		[]string{DimPresentation, DimNeuroid},
		[]int{3, 2},
		Coord{Name: CoordImageID, Dim: DimPresentation, Labels: []string{"c", "a", "b"}},
		Coord{Name: CoordObjectName, Dim: DimPresentation, Labels: []string{"car", "dog", "car"}},
		Coord{Name: CoordNeuroidID, Dim: DimNeuroid, Labels: []string{"n1", "n0"}},
	)
	require.NoError(t, err)
	return a
}

func TestNew_RejectsInconsistentInput(t *testing.T) {
	cases := map[string]func() error{
		"shape mismatch": func() error {
			_, err := New([]float64{1, 2, 3}, []string{DimPresentation}, []int{2})
			return err
		},
		"coord length": func() error {
			_, err := New([]float64{1, 2}, []string{DimPresentation}, []int{2},
				Coord{Name: CoordImageID, Dim: DimPresentation, Labels: []string{"a"}})
			return err
		},
		"unknown dim": func() error {
			_, err := New([]float64{1, 2}, []string{DimPresentation}, []int{2},
				Coord{Name: CoordNeuroidID, Dim: DimNeuroid, Labels: []string{"a", "b"}})
			return err
		},
		"duplicate dim": func() error {
			_, err := New([]float64{1}, []string{DimSplit, DimSplit}, []int{1, 1})
			return err
		},
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			err := build()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrAlignment))
		})
	}
}

func TestAtAndValuesAreRowMajor(t *testing.T) {
	a := newTestAssembly(t)
	assert.Equal(t, 4.0, a.At(1, 1))
	assert.Equal(t, 5.0, a.At(2, 0))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, a.Values())

	values := a.Values()
	values[0] = 100
	assert.Equal(t, 1.0, a.At(0, 0), "Values must return a copy")
}

func TestIsel(t *testing.T) {
	a := newTestAssembly(t)
	sub, err := a.Isel(DimPresentation, []int{2, 0})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2}, sub.Shape())
	assert.Equal(t, []float64{5, 6, 1, 2}, sub.Values())
	assert.Equal(t, []string{"b", "c"}, sub.Labels(CoordImageID))
	assert.Equal(t, []string{"n1", "n0"}, sub.Labels(CoordNeuroidID))

	cols, err := a.Isel(DimNeuroid, []int{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 6}, cols.Values())

	_, err = a.Isel(DimPresentation, []int{3})
	assert.ErrorIs(t, err, errs.ErrAlignment)
}

func TestSelKeepsAssemblyOrder(t *testing.T) {
	a := newTestAssembly(t)
	sub, err := a.Sel(CoordImageID, "b", "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, sub.Labels(CoordImageID))
	assert.Equal(t, []float64{1, 2, 5, 6}, sub.Values())
}

func TestSortBy(t *testing.T) {
	a := newTestAssembly(t)
	sorted, err := a.SortBy(CoordImageID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, sorted.Labels(CoordImageID))
	assert.Equal(t, []string{"dog", "car", "car"}, sorted.Labels(CoordObjectName))
	assert.Equal(t, []float64{3, 4, 5, 6, 1, 2}, sorted.Values())

	byNeuroid, err := a.SortBy(CoordNeuroidID)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 4, 3, 6, 5}, byNeuroid.Values())
}

func TestTransposeAndMatrix(t *testing.T) {
	a := newTestAssembly(t)
	tr, err := a.Transpose(DimNeuroid, DimPresentation)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, tr.Shape())
	assert.Equal(t, []float64{1, 3, 5, 2, 4, 6}, tr.Values())

	m, err := tr.Matrix(DimPresentation, DimNeuroid)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})))

	back, err := NewMatrix(m, DimPresentation, DimNeuroid)
	require.NoError(t, err)
	assert.Equal(t, a.Values(), back.Values())
}

func TestTransposeThreeDims(t *testing.T) {
	values := make([]float64, 24)
	for i := range values {
		values[i] = float64(i)
	}
	a, err := New(values, []string{"x", "y", "z"}, []int{2, 3, 4})
	require.NoError(t, err)

	tr, err := a.Transpose("z", "x", "y")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 3}, tr.Shape())
	for x := range 2 {
		for y := range 3 {
			for z := range 4 {
				assert.Equal(t, a.At(x, y, z), tr.At(z, x, y))
			}
		}
	}
}

func TestReduce(t *testing.T) {
	a := newTestAssembly(t)
	sum := func(v []float64) float64 {
		s := 0.0
		for _, x := range v {
			s += x
		}
		return s
	}

	perNeuroid, err := a.Reduce(DimPresentation, sum)
	require.NoError(t, err)
	assert.Equal(t, []string{DimNeuroid}, perNeuroid.Dims())
	assert.Equal(t, []float64{9, 12}, perNeuroid.Values())
	assert.Equal(t, []string{"n1", "n0"}, perNeuroid.Labels(CoordNeuroidID))
	assert.Nil(t, perNeuroid.Labels(CoordImageID))

	perImage, err := a.Reduce(DimNeuroid, sum)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 7, 11}, perImage.Values())
}

func TestGroupMean(t *testing.T) {
	a, err := New(
		[]float64{1, 3, 10, 20},
		[]string{DimPresentation},
		[]int{4},
		Coord{Name: CoordImageID, Dim: DimPresentation, Labels: []string{"a", "a", "b", "b"}},
		Coord{Name: CoordRepetition, Dim: DimPresentation, Labels: []string{"0", "1", "0", "1"}},
		Coord{Name: CoordObjectName, Dim: DimPresentation, Labels: []string{"dog", "dog", "car", "car"}},
	)
	require.NoError(t, err)

	g, err := a.GroupMean(CoordImageID)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 15}, g.Values())
	assert.Equal(t, []string{"a", "b"}, g.Labels(CoordImageID))
	assert.Equal(t, []string{"dog", "car"}, g.Labels(CoordObjectName))
	assert.Nil(t, g.Labels(CoordRepetition))
}

func TestStack(t *testing.T) {
	a := newTestAssembly(t)
	b := a.Map(func(v float64) float64 { return -v })

	s, err := Stack(DimSplit, CoordSplit, []string{"0", "1"}, a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{DimSplit, DimPresentation, DimNeuroid}, s.Dims())
	assert.Equal(t, -6.0, s.At(1, 2, 1))
	assert.Equal(t, []string{"0", "1"}, s.Labels(CoordSplit))

	other, err := a.SortBy(CoordImageID)
	require.NoError(t, err)
	_, err = Stack(DimSplit, CoordSplit, []string{"0", "1"}, a, other)
	assert.ErrorIs(t, err, errs.ErrAlignment)
}

func TestIntersect(t *testing.T) {
	a := newTestAssembly(t)
	b, err := New(
		[]float64{7, 8, 9},
		[]string{DimPresentation},
		[]int{3},
		Coord{Name: CoordImageID, Dim: DimPresentation, Labels: []string{"d", "c", "a"}},
	)
	require.NoError(t, err)

	ia, ib, err := Intersect(a, b, CoordImageID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ia.Labels(CoordImageID))
	assert.Equal(t, []string{"a", "c"}, ib.Labels(CoordImageID))
	assert.Equal(t, []float64{9, 8}, ib.Values())
	assert.Equal(t, []float64{3, 4, 1, 2}, ia.Values())
}

func TestIntersect_NoOverlap(t *testing.T) {
	a := newTestAssembly(t)
	b, err := New([]float64{1}, []string{DimPresentation}, []int{1},
		Coord{Name: CoordImageID, Dim: DimPresentation, Labels: []string{"zzz"}})
	require.NoError(t, err)

	_, _, err = Intersect(a, b, CoordImageID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrAlignment)
	assert.Contains(t, err.Error(), "no overlapping samples")
}

func TestIntersect_DuplicateLabels(t *testing.T) {
	a := newTestAssembly(t)
	dup, err := New([]float64{1, 2}, []string{DimPresentation}, []int{2},
		Coord{Name: CoordImageID, Dim: DimPresentation, Labels: []string{"a", "a"}})
	require.NoError(t, err)

	_, _, err = Intersect(a, dup, CoordImageID)
	assert.ErrorIs(t, err, errs.ErrAlignment)
}

func TestSubset(t *testing.T) {
	a := newTestAssembly(t)
	target, err := New([]float64{0, 0}, []string{DimPresentation}, []int{2},
		Coord{Name: CoordImageID, Dim: DimPresentation, Labels: []string{"b", "a"}})
	require.NoError(t, err)

	sub, err := Subset(a, target, CoordImageID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, sub.Labels(CoordImageID))
	assert.Equal(t, []float64{5, 6, 3, 4}, sub.Values())

	missing, err := New([]float64{0}, []string{DimPresentation}, []int{1},
		Coord{Name: CoordImageID, Dim: DimPresentation, Labels: []string{"q"}})
	require.NoError(t, err)
	_, err = Subset(a, missing, CoordImageID)
	assert.ErrorIs(t, err, errs.ErrAlignment)
}

func TestRealign(t *testing.T) {
	a := newTestAssembly(t)
	shuffled, err := a.Isel(DimPresentation, []int{1, 2, 0})
	require.NoError(t, err)

	ra, rb, err := Realign(a, shuffled, CoordImageID)
	require.NoError(t, err)
	assert.Equal(t, ra.Values(), rb.Values())

	fewer, err := a.Isel(DimPresentation, []int{0, 1})
	require.NoError(t, err)
	_, _, err = Realign(a, fewer, CoordImageID)
	assert.ErrorIs(t, err, errs.ErrAlignment)
}
