package usage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourceror/compiler/internal/varloc"
)

var x = varloc.Id{Depth: 1, Index: 0}
var y = varloc.Id{Depth: 1, Index: 1}

func TestMergeSeriesDoesNotDemote(t *testing.T) {
	modified := FromModified(x)
	used := FromUsed(x)

	// Modified then Used must stay UsedAndModified, not demote to Used.
	got := MergeSeries(modified, used)
	lvl, ok := got.Get(x)
	require.True(t, ok)
	require.Equal(t, UsedAndModified, lvl)
}

func TestMergeSeriesJoinsDistinctVars(t *testing.T) {
	a := FromUsed(x)
	b := FromModified(y)
	got := MergeSeries(a, b)
	require.Equal(t, 2, got.Len())

	lx, _ := got.Get(x)
	ly, _ := got.Get(y)
	require.Equal(t, Used, lx)
	require.Equal(t, UsedAndModified, ly)
}

func TestMergeParallelMatchesSeriesOnThisLattice(t *testing.T) {
	a := FromModified(x)
	b := FromUsed(x)
	require.Equal(t, MergeSeries(a, b).entries, MergeParallel(a, b).entries)
}

func TestWrapClosurePromotesEverythingToAddressTaken(t *testing.T) {
	m := MergeSeries(FromUsed(x), FromModified(y))
	wrapped := WrapClosure(m)
	for _, k := range wrapped.Keys() {
		lvl, _ := wrapped.Get(k)
		require.Equal(t, AddressTaken, lvl)
	}
}

func TestSplitOffAddressTakenPartitions(t *testing.T) {
	outer := varloc.Id{Depth: 0, Index: 0}
	m := New()
	m.entries[x] = AddressTaken
	m.entries[y] = UsedAndModified
	m.entries[outer] = AddressTaken

	removed := SplitOffAddressTaken(&m, 1)
	require.ElementsMatch(t, []varloc.Id{x}, removed)

	// Every entry at depth >= 1 is gone, whether or not it was
	// AddressTaken; only the shallower, unrelated entry survives.
	_, xPresent := m.Get(x)
	require.False(t, xPresent)
	_, yPresent := m.Get(y)
	require.False(t, yPresent)
	lvl, ok := m.Get(outer)
	require.True(t, ok)
	require.Equal(t, AddressTaken, lvl)
}

func TestSplitOffAddressTakenDiscardsDeeperEntries(t *testing.T) {
	deeper := varloc.Id{Depth: 2, Index: 0}
	m := New()
	m.entries[x] = AddressTaken
	m.entries[deeper] = AddressTaken

	removed := SplitOffAddressTaken(&m, 1)
	require.ElementsMatch(t, []varloc.Id{x}, removed)
	_, deeperPresent := m.Get(deeper)
	require.False(t, deeperPresent)
}
