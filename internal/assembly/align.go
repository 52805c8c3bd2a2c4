package assembly

import (
	"slices"

	"github.com/tensorplex-labs/brainscore/internal/errs"
)

// Intersect restricts a and b to the labels of coord they share, then sorts
// both by coord so that equal positions refer to the same sample.
func Intersect(a, b *Assembly, coord string) (*Assembly, *Assembly, error) {
	la, err := uniqueLabels(a, coord)
	if err != nil {
		return nil, nil, err
	}
	lb, err := uniqueLabels(b, coord)
	if err != nil {
		return nil, nil, err
	}

	inB := make(map[string]struct{}, len(lb))
	for _, l := range lb {
		inB[l] = struct{}{}
	}
	var common []string
	for _, l := range la {
		if _, ok := inB[l]; ok {
			common = append(common, l)
		}
	}
	if len(common) == 0 {
		return nil, nil, errs.Alignmentf("no overlapping samples on %q", coord)
	}

	a, err = restrictSorted(a, coord, common)
	if err != nil {
		return nil, nil, err
	}
	b, err = restrictSorted(b, coord, common)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func restrictSorted(a *Assembly, coord string, labels []string) (*Assembly, error) {
	sub, err := a.Sel(coord, labels...)
	if err != nil {
		return nil, err
	}
	return sub.SortBy(coord)
}

// Subset restricts source to the coord labels of target, in target's order.
func Subset(source, target *Assembly, coord string) (*Assembly, error) {
	sc, ok := source.Coord(coord)
	if !ok {
		return nil, errs.Alignmentf("source has no coord %q", coord)
	}
	tl, err := uniqueLabels(target, coord)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(sc.Labels))
	for i, l := range sc.Labels {
		if _, dup := index[l]; dup {
			return nil, errs.Alignmentf("duplicate label %q in source coord %q", l, coord)
		}
		index[l] = i
	}
	positions := make([]int, len(tl))
	for i, l := range tl {
		p, ok := index[l]
		if !ok {
			return nil, errs.Alignmentf("label %q of coord %q missing from source", l, coord)
		}
		positions[i] = p
	}
	return source.Isel(sc.Dim, positions)
}

// AssertAligned fails unless a and b carry identical label sequences for coord.
func AssertAligned(a, b *Assembly, coord string) error {
	la, lb := a.Labels(coord), b.Labels(coord)
	if la == nil || lb == nil {
		return errs.Alignmentf("coord %q missing from one of the assemblies", coord)
	}
	if len(la) != len(lb) {
		return errs.Alignmentf("coord %q has %d labels on one side and %d on the other", coord, len(la), len(lb))
	}
	for i := range la {
		if la[i] != lb[i] {
			return errs.Alignmentf("coord %q differs at position %d: %q vs %q", coord, i, la[i], lb[i])
		}
	}
	return nil
}

// Realign sorts a and b by coord and asserts the sorted labels match.
func Realign(a, b *Assembly, coord string) (*Assembly, *Assembly, error) {
	if _, err := uniqueLabels(a, coord); err != nil {
		return nil, nil, err
	}
	if _, err := uniqueLabels(b, coord); err != nil {
		return nil, nil, err
	}
	sa, err := a.SortBy(coord)
	if err != nil {
		return nil, nil, err
	}
	sb, err := b.SortBy(coord)
	if err != nil {
		return nil, nil, err
	}
	if err := AssertAligned(sa, sb, coord); err != nil {
		return nil, nil, err
	}
	return sa, sb, nil
}

func uniqueLabels(a *Assembly, coord string) ([]string, error) {
	labels := a.Labels(coord)
	if labels == nil {
		return nil, errs.Alignmentf("assembly has no coord %q", coord)
	}
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			return nil, errs.Alignmentf("duplicate label %q in coord %q", l, coord)
		}
		seen[l] = struct{}{}
	}
	return slices.Clone(labels), nil
}
