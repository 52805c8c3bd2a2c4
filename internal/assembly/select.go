package assembly

import (
	"slices"
	"strings"

	"github.com/tensorplex-labs/brainscore/internal/errs"
)

// Isel selects positions along dim, in the given order, carrying coords along.
func (a *Assembly) Isel(dim string, positions []int) (*Assembly, error) {
	d := a.dimIndex(dim)
	if d < 0 {
		return nil, errs.Alignmentf("assembly has no dim %q", dim)
	}
	outer, size, inner := a.span(d)
	for _, p := range positions {
		if p < 0 || p >= size {
			return nil, errs.Alignmentf("position %d out of range for dim %q of size %d", p, dim, size)
		}
	}

	values := make([]float64, 0, outer*len(positions)*inner)
	for o := range outer {
		base := o * size * inner
		for _, p := range positions {
			start := base + p*inner
			values = append(values, a.values[start:start+inner]...)
		}
	}

	shape := slices.Clone(a.shape)
	shape[d] = len(positions)
	out := &Assembly{dims: slices.Clone(a.dims), shape: shape, values: values}
	for _, c := range a.coords {
		labels := c.Labels
		if c.Dim == dim {
			labels = make([]string, len(positions))
			for i, p := range positions {
				labels[i] = c.Labels[p]
			}
		}
		out.coords = append(out.coords, Coord{Name: c.Name, Dim: c.Dim, Labels: slices.Clone(labels)})
	}
	return out, nil
}

// Sel keeps the positions whose coord label is one of labels, preserving the
// assembly's own order.
func (a *Assembly) Sel(coord string, labels ...string) (*Assembly, error) {
	c, ok := a.Coord(coord)
	if !ok {
		return nil, errs.Alignmentf("assembly has no coord %q", coord)
	}
	wanted := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		wanted[l] = struct{}{}
	}
	var positions []int
	for i, l := range c.Labels {
		if _, ok := wanted[l]; ok {
			positions = append(positions, i)
		}
	}
	return a.Isel(c.Dim, positions)
}

// SortBy stably reorders the coord's dim by label.
func (a *Assembly) SortBy(coord string) (*Assembly, error) {
	c, ok := a.Coord(coord)
	if !ok {
		return nil, errs.Alignmentf("assembly has no coord %q", coord)
	}
	positions := make([]int, len(c.Labels))
	for i := range positions {
		positions[i] = i
	}
	slices.SortStableFunc(positions, func(i, j int) int {
		return strings.Compare(c.Labels[i], c.Labels[j])
	})
	return a.Isel(c.Dim, positions)
}

// Transpose reorders dims. The result holds the same values and coords.
func (a *Assembly) Transpose(dims ...string) (*Assembly, error) {
	if len(dims) != len(a.dims) {
		return nil, errs.Alignmentf("transpose to %v, assembly has dims %v", dims, a.dims)
	}
	perm := make([]int, len(dims))
	for i, dim := range dims {
		d := a.dimIndex(dim)
		if d < 0 || slices.Contains(perm[:i], d) {
			return nil, errs.Alignmentf("transpose to %v, assembly has dims %v", dims, a.dims)
		}
		perm[i] = d
	}
	if slices.Equal(dims, a.dims) {
		return a.clone(), nil
	}

	strides := make([]int, len(a.shape))
	stride := 1
	for d := len(a.shape) - 1; d >= 0; d-- {
		strides[d] = stride
		stride *= a.shape[d]
	}
	shape := make([]int, len(perm))
	for i, d := range perm {
		shape[i] = a.shape[d]
	}

	values := make([]float64, len(a.values))
	idx := make([]int, len(shape))
	for n := range values {
		offset := 0
		for i, d := range perm {
			offset += idx[i] * strides[d]
		}
		values[n] = a.values[offset]
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return &Assembly{dims: slices.Clone(dims), shape: shape, values: values, coords: a.Coords()}, nil
}

// Reduce collapses dim with fn. Coords on dim are dropped.
func (a *Assembly) Reduce(dim string, fn func([]float64) float64) (*Assembly, error) {
	d := a.dimIndex(dim)
	if d < 0 {
		return nil, errs.Alignmentf("assembly has no dim %q", dim)
	}
	outer, size, inner := a.span(d)
	values := make([]float64, 0, outer*inner)
	column := make([]float64, size)
	for o := range outer {
		for i := range inner {
			for s := range size {
				column[s] = a.values[(o*size+s)*inner+i]
			}
			values = append(values, fn(slices.Clone(column)))
		}
	}

	out := &Assembly{
		dims:   slices.Delete(slices.Clone(a.dims), d, d+1),
		shape:  slices.Delete(slices.Clone(a.shape), d, d+1),
		values: values,
	}
	for _, c := range a.Coords() {
		if c.Dim != dim {
			out.coords = append(out.coords, c)
		}
	}
	return out, nil
}

// GroupMean averages the positions of coord's dim that share a label, e.g.
// repeated presentations of one image. Groups keep first-appearance order;
// other coords on the dim survive when constant within every group.
func (a *Assembly) GroupMean(coord string) (*Assembly, error) {
	c, ok := a.Coord(coord)
	if !ok {
		return nil, errs.Alignmentf("assembly has no coord %q", coord)
	}
	d := a.dimIndex(c.Dim)

	var groups []string
	members := make(map[string][]int)
	for i, l := range c.Labels {
		if _, seen := members[l]; !seen {
			groups = append(groups, l)
		}
		members[l] = append(members[l], i)
	}

	outer, size, inner := a.span(d)
	values := make([]float64, outer*len(groups)*inner)
	for o := range outer {
		for g, label := range groups {
			positions := members[label]
			for i := range inner {
				sum := 0.0
				for _, p := range positions {
					sum += a.values[(o*size+p)*inner+i]
				}
				values[(o*len(groups)+g)*inner+i] = sum / float64(len(positions))
			}
		}
	}

	shape := slices.Clone(a.shape)
	shape[d] = len(groups)
	out := &Assembly{dims: slices.Clone(a.dims), shape: shape, values: values}
	for _, other := range a.Coords() {
		if other.Dim != c.Dim {
			out.coords = append(out.coords, other)
			continue
		}
		labels, constant := groupLabels(other.Labels, groups, members)
		if constant {
			out.coords = append(out.coords, Coord{Name: other.Name, Dim: other.Dim, Labels: labels})
		}
	}
	return out, nil
}

func groupLabels(labels, groups []string, members map[string][]int) ([]string, bool) {
	out := make([]string, len(groups))
	for g, label := range groups {
		positions := members[label]
		first := labels[positions[0]]
		for _, p := range positions[1:] {
			if labels[p] != first {
				return nil, false
			}
		}
		out[g] = first
	}
	return out, true
}

// Stack joins equally shaped parts along a new leading dim labeled by coord.
func Stack(dim, coord string, labels []string, parts ...*Assembly) (*Assembly, error) {
	if len(parts) == 0 {
		return nil, errs.Alignmentf("nothing to stack along %q", dim)
	}
	if len(labels) != len(parts) {
		return nil, errs.Alignmentf("%d labels for %d parts", len(labels), len(parts))
	}
	first := parts[0]
	if first.HasDim(dim) {
		return nil, errs.Alignmentf("parts already have dim %q", dim)
	}
	for i, p := range parts[1:] {
		if !slices.Equal(p.dims, first.dims) || !slices.Equal(p.shape, first.shape) {
			return nil, errs.Alignmentf("part %d has dims %v shape %v, expected %v %v", i+1, p.dims, p.shape, first.dims, first.shape)
		}
		for _, c := range first.coords {
			if !slices.Equal(p.Labels(c.Name), c.Labels) {
				return nil, errs.Alignmentf("part %d disagrees on coord %q", i+1, c.Name)
			}
		}
	}

	values := make([]float64, 0, len(parts)*len(first.values))
	for _, p := range parts {
		values = append(values, p.values...)
	}
	coords := append([]Coord{{Name: coord, Dim: dim, Labels: labels}}, first.Coords()...)
	return New(values, append([]string{dim}, first.dims...), append([]int{len(parts)}, first.shape...), coords...)
}
