// Package assembly implements labeled N-dimensional arrays of neural or model
// responses. Every dim can carry any number of coords, ordered label tables
// whose length equals the dim size, so two assemblies can be aligned by label
// rather than by position.
package assembly

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/brainscore/internal/errs"
)

const (
	DimPresentation = "presentation"
	DimNeuroid      = "neuroid"
	DimSplit        = "split"
	DimAggregation  = "aggregation"

	CoordImageID     = "image_id"
	CoordObjectName  = "object_name"
	CoordNeuroidID   = "neuroid_id"
	CoordRegion      = "region"
	CoordRepetition  = "repetition"
	CoordSplit       = "split"
	CoordAggregation = "aggregation"

	LabelCenter = "center"
	LabelError  = "error"
)

// Coord is an ordered label table attached to one dim.
type Coord struct {
	Name   string   `json:"name"`
	Dim    string   `json:"dim"`
	Labels []string `json:"values"`
}

// Assembly is an immutable labeled array stored in row-major order.
type Assembly struct {
	dims   []string
	shape  []int
	values []float64
	coords []Coord
}

// New validates and copies its inputs into a new Assembly.
func New(values []float64, dims []string, shape []int, coords ...Coord) (*Assembly, error) {
	if len(dims) != len(shape) {
		return nil, errs.Alignmentf("%d dims but shape has %d entries", len(dims), len(shape))
	}
	size := 1
	for i, dim := range dims {
		if slices.Contains(dims[:i], dim) {
			return nil, errs.Alignmentf("duplicate dim %q", dim)
		}
		if shape[i] < 0 {
			return nil, errs.Alignmentf("negative size %d for dim %q", shape[i], dim)
		}
		size *= shape[i]
	}
	if size != len(values) {
		return nil, errs.Alignmentf("shape %v holds %d values, got %d", shape, size, len(values))
	}

	a := &Assembly{
		dims:   slices.Clone(dims),
		shape:  slices.Clone(shape),
		values: slices.Clone(values),
		coords: make([]Coord, 0, len(coords)),
	}
	for _, c := range coords {
		d := a.dimIndex(c.Dim)
		if d < 0 {
			return nil, errs.Alignmentf("coord %q refers to unknown dim %q", c.Name, c.Dim)
		}
		if len(c.Labels) != shape[d] {
			return nil, errs.Alignmentf("coord %q has %d labels but dim %q has size %d", c.Name, len(c.Labels), c.Dim, shape[d])
		}
		if _, exists := a.Coord(c.Name); exists {
			return nil, errs.Alignmentf("duplicate coord %q", c.Name)
		}
		a.coords = append(a.coords, Coord{Name: c.Name, Dim: c.Dim, Labels: slices.Clone(c.Labels)})
	}
	return a, nil
}

// NewMatrix wraps a 2D gonum matrix with rows along rowDim and columns along colDim.
func NewMatrix(m mat.Matrix, rowDim, colDim string, coords ...Coord) (*Assembly, error) {
	r, c := m.Dims()
	values := make([]float64, 0, r*c)
	for i := range r {
		for j := range c {
			values = append(values, m.At(i, j))
		}
	}
	return New(values, []string{rowDim, colDim}, []int{r, c}, coords...)
}

func (a *Assembly) Dims() []string { return slices.Clone(a.dims) }

func (a *Assembly) Shape() []int { return slices.Clone(a.shape) }

// Size is the total number of values.
func (a *Assembly) Size() int { return len(a.values) }

// Values returns a copy of the row-major values.
func (a *Assembly) Values() []float64 { return slices.Clone(a.values) }

// HasDim reports whether dim is one of the assembly's dims.
func (a *Assembly) HasDim(dim string) bool { return a.dimIndex(dim) >= 0 }

// Len returns the size of dim, or 0 if the assembly has no such dim.
func (a *Assembly) Len(dim string) int {
	d := a.dimIndex(dim)
	if d < 0 {
		return 0
	}
	return a.shape[d]
}

// At returns the value at the given position, one index per dim.
func (a *Assembly) At(idx ...int) float64 {
	if len(idx) != len(a.dims) {
		panic(fmt.Sprintf("assembly: %d indices for %d dims", len(idx), len(a.dims)))
	}
	offset := 0
	for d, i := range idx {
		if i < 0 || i >= a.shape[d] {
			panic(fmt.Sprintf("assembly: index %d out of range for dim %q", i, a.dims[d]))
		}
		offset = offset*a.shape[d] + i
	}
	return a.values[offset]
}

// Coord looks up a coord by name.
func (a *Assembly) Coord(name string) (Coord, bool) {
	for _, c := range a.coords {
		if c.Name == name {
			return Coord{Name: c.Name, Dim: c.Dim, Labels: slices.Clone(c.Labels)}, true
		}
	}
	return Coord{}, false
}

// Labels returns the labels of coord name, or nil when it does not exist.
func (a *Assembly) Labels(name string) []string {
	c, ok := a.Coord(name)
	if !ok {
		return nil
	}
	return c.Labels
}

// Coords returns copies of all coords in declaration order.
func (a *Assembly) Coords() []Coord {
	out := make([]Coord, len(a.coords))
	for i, c := range a.coords {
		out[i] = Coord{Name: c.Name, Dim: c.Dim, Labels: slices.Clone(c.Labels)}
	}
	return out
}

// CoordsOn returns the coords attached to dim.
func (a *Assembly) CoordsOn(dim string) []Coord {
	var out []Coord
	for _, c := range a.Coords() {
		if c.Dim == dim {
			out = append(out, c)
		}
	}
	return out
}

// Matrix copies a 2D assembly into a dense matrix with rowDim as rows,
// transposing when the stored order differs.
func (a *Assembly) Matrix(rowDim, colDim string) (*mat.Dense, error) {
	if len(a.dims) != 2 {
		return nil, errs.Alignmentf("matrix view needs 2 dims, assembly has %v", a.dims)
	}
	t, err := a.Transpose(rowDim, colDim)
	if err != nil {
		return nil, err
	}
	if t.shape[0] == 0 || t.shape[1] == 0 {
		return nil, errs.Alignmentf("matrix view of empty assembly with shape %v", t.shape)
	}
	return mat.NewDense(t.shape[0], t.shape[1], t.Values()), nil
}

// Map applies fn to every value.
func (a *Assembly) Map(fn func(float64) float64) *Assembly {
	out := a.clone()
	for i, v := range out.values {
		out.values[i] = fn(v)
	}
	return out
}

func (a *Assembly) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assembly(dims=%v, shape=%v)", a.dims, a.shape)
	for _, c := range a.coords {
		fmt.Fprintf(&b, "\n  %s (%s): %s", c.Name, c.Dim, previewLabels(c.Labels))
	}
	return b.String()
}

func previewLabels(labels []string) string {
	const limit = 6
	if len(labels) <= limit {
		return strings.Join(labels, " ")
	}
	return strings.Join(labels[:limit], " ") + " ..."
}

func (a *Assembly) dimIndex(dim string) int {
	return slices.Index(a.dims, dim)
}

func (a *Assembly) clone() *Assembly {
	return &Assembly{
		dims:   slices.Clone(a.dims),
		shape:  slices.Clone(a.shape),
		values: slices.Clone(a.values),
		coords: a.Coords(),
	}
}

// span splits the shape around dim d into outer * size * inner blocks.
func (a *Assembly) span(d int) (outer, size, inner int) {
	outer, inner = 1, 1
	for i := range d {
		outer *= a.shape[i]
	}
	for i := d + 1; i < len(a.shape); i++ {
		inner *= a.shape[i]
	}
	return outer, a.shape[d], inner
}
