package split

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/errs"
)

func objectGroups(objects, perObject int) []string {
	groups := make([]string, 0, objects*perObject)
	for o := range objects {
		for range perObject {
			groups = append(groups, fmt.Sprintf("object%d", o))
		}
	}
	return groups
}

func TestSplit_Deterministic(t *testing.T) {
	s := Splitter{NSplits: 5, TestFraction: 0.2, Seed: 42}

	first, err := s.Split(50, nil)
	require.NoError(t, err)
	second, err := s.Split(50, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	s.StratifyCoord = assembly.CoordObjectName
	groups := objectGroups(5, 10)
	first, err = s.Split(50, groups)
	require.NoError(t, err)
	second, err = s.Split(50, groups)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplit_SeedChangesPartition(t *testing.T) {
	a, err := Splitter{NSplits: 3, TestFraction: 0.3, Seed: 1}.Split(40, nil)
	require.NoError(t, err)
	b, err := Splitter{NSplits: 3, TestFraction: 0.3, Seed: 2}.Split(40, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSplit_DisjointAndCovered(t *testing.T) {
	for _, groups := range [][]string{nil, objectGroups(4, 8)} {
		splits, err := Splitter{NSplits: 10, TestFraction: 0.25, Seed: 7}.Split(32, groups)
		require.NoError(t, err)
		require.Len(t, splits, 10)

		for i, sp := range splits {
			assert.Equal(t, i, sp.Index)
			seen := make(map[int]bool)
			for _, idx := range sp.Train {
				assert.True(t, idx >= 0 && idx < 32)
				seen[idx] = true
			}
			for _, idx := range sp.Test {
				assert.True(t, idx >= 0 && idx < 32)
				assert.False(t, seen[idx], "position %d in both train and test", idx)
			}
			assert.Len(t, sp.Test, 8)
			assert.Len(t, sp.Train, 24)
		}
	}
}

func TestSplit_StratifiedBalancesGroups(t *testing.T) {
	groups := objectGroups(5, 6)
	splits, err := Splitter{NSplits: 10, TestFraction: 0.1, Seed: 3, StratifyCoord: assembly.CoordObjectName}.Split(30, groups)
	require.NoError(t, err)

	for _, sp := range splits {
		perGroup := make(map[string]int)
		for _, idx := range sp.Test {
			perGroup[groups[idx]]++
		}
		assert.Len(t, perGroup, 5)
		for g, n := range perGroup {
			assert.Equal(t, 1, n, "group %s", g)
		}
	}
}

func TestSplit_Varies(t *testing.T) {
	splits, err := Splitter{NSplits: 10, TestFraction: 0.1, Seed: 11}.Split(100, nil)
	require.NoError(t, err)
	distinct := make(map[string]bool)
	for _, sp := range splits {
		distinct[fmt.Sprint(sp.Test)] = true
	}
	assert.Greater(t, len(distinct), 1)
}

func TestSplit_ConfigurationErrors(t *testing.T) {
	cases := []struct {
		name     string
		splitter Splitter
		n        int
		groups   []string
	}{
		{"zero splits", Splitter{NSplits: 0, TestFraction: 0.1}, 10, nil},
		{"zero fraction", Splitter{NSplits: 1, TestFraction: 0}, 10, nil},
		{"unit fraction", Splitter{NSplits: 1, TestFraction: 1}, 10, nil},
		{"empty test", Splitter{NSplits: 1, TestFraction: 0.01}, 10, nil},
		{"empty train", Splitter{NSplits: 1, TestFraction: 0.99}, 10, nil},
		{"singleton group", Splitter{NSplits: 1, TestFraction: 0.5}, 3, []string{"a", "a", "b"}},
		{"group length", Splitter{NSplits: 1, TestFraction: 0.5}, 3, []string{"a", "a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.splitter.Split(tc.n, tc.groups)
			assert.ErrorIs(t, err, errs.ErrConfiguration)
		})
	}
}

func TestSplitAssembly(t *testing.T) {
	groups := objectGroups(3, 4)
	ids := make([]string, len(groups))
	for i := range ids {
		ids[i] = fmt.Sprintf("img%02d", i)
	}
	a, err := assembly.New(make([]float64, len(groups)), []string{assembly.DimPresentation}, []int{len(groups)},
		assembly.Coord{Name: assembly.CoordImageID, Dim: assembly.DimPresentation, Labels: ids},
		assembly.Coord{Name: assembly.CoordObjectName, Dim: assembly.DimPresentation, Labels: groups},
	)
	require.NoError(t, err)

	s := DefaultSplitter()
	s.TestFraction = 0.25
	splits, err := s.SplitAssembly(a, assembly.DimPresentation)
	require.NoError(t, err)
	require.Len(t, splits, DefaultSplits)
	for _, sp := range splits {
		assert.Len(t, sp.Test, 3)
	}

	s.StratifyCoord = "category"
	_, err = s.SplitAssembly(a, assembly.DimPresentation)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}
