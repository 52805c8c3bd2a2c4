// Package split produces repeated, seeded train/test partitions of the
// presentation dim, optionally stratified by a grouping coord.
package split

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/errs"
)

const (
	DefaultSplits       = 10
	DefaultTestFraction = 0.1
)

// Split is one train/test partition of positions along a dim.
type Split struct {
	Index int
	Train []int
	Test  []int
}

// Splitter draws NSplits partitions. With StratifyCoord set, every group of
// that coord is split on its own so each test set is balanced across groups.
type Splitter struct {
	NSplits       int
	TestFraction  float64
	StratifyCoord string
	Seed          uint64
}

// DefaultSplitter mirrors the usual neural predictivity setup: 10 splits,
// 90/10 train/test, balanced over objects.
func DefaultSplitter() Splitter {
	return Splitter{
		NSplits:       DefaultSplits,
		TestFraction:  DefaultTestFraction,
		StratifyCoord: assembly.CoordObjectName,
	}
}

func (s Splitter) validate() error {
	if s.NSplits < 1 {
		return errs.Configurationf("number of splits must be at least 1, got %d", s.NSplits)
	}
	if !(s.TestFraction > 0 && s.TestFraction < 1) {
		return errs.Configurationf("test fraction must be in (0, 1), got %v", s.TestFraction)
	}
	return nil
}

// Split partitions n positions. groups, when non-nil, holds one group label per
// position and enables stratification. Identical seed and inputs give an
// identical sequence of splits.
func (s Splitter) Split(n int, groups []string) ([]Split, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if groups != nil && len(groups) != n {
		return nil, errs.Configurationf("%d group labels for %d samples", len(groups), n)
	}

	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	if groups == nil {
		return s.uniform(n, rng)
	}
	return s.stratified(groups, rng)
}

// SplitAssembly splits dim of a, reading groups from StratifyCoord when set.
func (s Splitter) SplitAssembly(a *assembly.Assembly, dim string) ([]Split, error) {
	if !a.HasDim(dim) {
		return nil, errs.Configurationf("assembly has no dim %q to split", dim)
	}
	var groups []string
	if s.StratifyCoord != "" {
		c, ok := a.Coord(s.StratifyCoord)
		if !ok {
			return nil, errs.Configurationf("stratification coord %q not found", s.StratifyCoord)
		}
		if c.Dim != dim {
			return nil, errs.Configurationf("stratification coord %q is on dim %q, not %q", c.Name, c.Dim, dim)
		}
		groups = c.Labels
	}
	return s.Split(a.Len(dim), groups)
}

func (s Splitter) uniform(n int, rng *rand.Rand) ([]Split, error) {
	nTest := int(math.Round(s.TestFraction * float64(n)))
	if nTest < 1 || nTest >= n {
		return nil, errs.Configurationf("test fraction %v of %d samples leaves an empty train or test set", s.TestFraction, n)
	}

	splits := make([]Split, s.NSplits)
	for i := range splits {
		perm := rng.Perm(n)
		splits[i] = newSplit(i, perm[nTest:], perm[:nTest])
	}
	log.Debug().Int("splits", s.NSplits).Int("samples", n).Int("test_size", nTest).Msg("uniform splits drawn")
	return splits, nil
}

func (s Splitter) stratified(groups []string, rng *rand.Rand) ([]Split, error) {
	members := make(map[string][]int)
	for i, g := range groups {
		members[g] = append(members[g], i)
	}
	names := make([]string, 0, len(members))
	for g, idx := range members {
		if len(idx) < 2 {
			return nil, errs.Configurationf("group %q of coord %q has %d sample(s), need at least 2", g, s.StratifyCoord, len(idx))
		}
		names = append(names, g)
	}
	slices.Sort(names)

	testSizes := make(map[string]int, len(names))
	for _, g := range names {
		size := len(members[g])
		testSizes[g] = min(max(int(math.Round(s.TestFraction*float64(size))), 1), size-1)
	}

	splits := make([]Split, s.NSplits)
	for i := range splits {
		var train, test []int
		for _, g := range names {
			idx := slices.Clone(members[g])
			rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
			test = append(test, idx[:testSizes[g]]...)
			train = append(train, idx[testSizes[g]:]...)
		}
		splits[i] = newSplit(i, train, test)
	}
	log.Debug().Int("splits", s.NSplits).Int("groups", len(names)).Str("coord", s.StratifyCoord).Msg("stratified splits drawn")
	return splits, nil
}

func newSplit(index int, train, test []int) Split {
	train, test = slices.Clone(train), slices.Clone(test)
	slices.Sort(train)
	slices.Sort(test)
	return Split{Index: index, Train: train, Test: test}
}
