package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

func TestParseDensity(t *testing.T) {
	d, err := ParseDensity("Compact")
	require.NoError(t, err)
	assert.Equal(t, DensityCompact, d)

	d, err = ParseDensity("")
	require.NoError(t, err)
	assert.Equal(t, DensityExpanded, d)

	_, err = ParseDensity("cozy")
	assert.Error(t, err)
}

func TestLaneMetrics_RowHeightTiers(t *testing.T) {
	m := DefaultLaneMetrics

	for _, d := range []Density{DensityExpanded, DensityCompact} {
		t.Run(string(d), func(t *testing.T) {
			plain := m.RowHeight(0, d)
			two := m.RowHeight(2, d)
			three := m.RowHeight(3, d)
			assert.Less(t, plain, two)
			assert.Less(t, two, three)
		})
	}

	assert.Equal(t, 52.0, m.RowHeight(0, DensityExpanded))
	assert.Equal(t, 124.0, m.RowHeight(2, DensityExpanded))
	assert.Equal(t, 160.0, m.RowHeight(3, DensityExpanded))

	for _, n := range []int{0, 2, 3} {
		assert.InDelta(t, m.RowHeight(n, DensityExpanded)*m.CompactScale, m.RowHeight(n, DensityCompact), 1e-9)
	}
}

func TestLaneMetrics_Offset(t *testing.T) {
	m := DefaultLaneMetrics
	assert.Equal(t, 0.0, m.Offset(0, DensityExpanded))
	assert.Equal(t, 72.0, m.Offset(2, DensityExpanded))
	assert.Equal(t, 54.0, m.Offset(2, DensityCompact))
}

func TestExpandedRows(t *testing.T) {
	var none *ExpandedRows
	assert.False(t, none.IsExpanded("f-1"))
	assert.Nil(t, none.IDs())
	assert.NotPanics(t, func() { assert.False(t, none.Toggle("f-1")) })
	assert.False(t, none.IsExpanded("f-1"))

	r := NewExpandedRows("f-2")
	assert.True(t, r.IsExpanded("f-2"))
	assert.True(t, r.Toggle("f-1"))
	assert.Equal(t, []string{"f-1", "f-2"}, r.IDs())
	assert.False(t, r.Toggle("f-2"))
	assert.False(t, r.IsExpanded("f-2"))

	var zero ExpandedRows
	assert.True(t, zero.Toggle("f-3"))
}

func groupsFor(features ...roadmap.Feature) []Group {
	var gs []Group
	for _, f := range features {
		gs = append(gs, Group{Feature: f, Bars: Decompose(f)})
	}
	return gs
}

func TestLayout_Expanded(t *testing.T) {
	plain := roadmap.Feature{ID: "p", Title: "Plain", StartDate: day("2025-01-01"), EndDate: day("2025-02-01")}
	exp := experiment("e1", roadmap.PriorityHigh, "2025-01-01", "2025-04-11")

	lanes := Layout(groupsFor(plain, exp), DensityExpanded, nil, DefaultLaneMetrics)
	require.Len(t, lanes, 2)

	assert.Equal(t, 0.0, lanes[0].Top)
	assert.Equal(t, 52.0, lanes[0].Height)
	require.Len(t, lanes[0].Bars, 1)
	assert.Equal(t, 0.0, lanes[0].Bars[0].Offset)

	assert.Equal(t, 52.0, lanes[1].Top)
	assert.Equal(t, 160.0, lanes[1].Height)
	require.Len(t, lanes[1].Bars, 4)
	offsets := []float64{}
	for _, b := range lanes[1].Bars {
		offsets = append(offsets, b.Offset)
		assert.Equal(t, 28.0, b.Height)
	}
	assert.Equal(t, []float64{0, 36, 72, 108}, offsets)
	assert.Equal(t, BarLaunch, lanes[1].Bars[3].Kind)
}

func TestLayout_CompactCollapsesExperiments(t *testing.T) {
	plain := roadmap.Feature{ID: "p", Title: "Plain", StartDate: day("2025-01-01"), EndDate: day("2025-02-01")}
	exp := experiment("e1", roadmap.PriorityMedium, "2025-01-01", "2025-04-11")
	exp.Experiment = &roadmap.ExperimentMeta{PrimaryMetric: "Signup rate"}
	open := experiment("e2", roadmap.PriorityMedium, "2025-01-01", "2025-04-11")

	lanes := Layout(groupsFor(plain, exp, open), DensityCompact, NewExpandedRows("e2"), DefaultLaneMetrics)
	require.Len(t, lanes, 3)

	assert.False(t, lanes[0].Collapsed)
	require.Len(t, lanes[0].Bars, 1)

	assert.True(t, lanes[1].Collapsed)
	assert.Empty(t, lanes[1].Bars)
	require.NotNil(t, lanes[1].Summary)
	assert.Equal(t, Summary{
		Title:         "Checkout redesign",
		VariantCount:  2,
		EndDate:       day("2025-04-11"),
		PrimaryMetric: "Signup rate",
	}, *lanes[1].Summary)
	assert.Equal(t, DefaultLaneMetrics.RowHeight(0, DensityCompact), lanes[1].Height)

	assert.False(t, lanes[2].Collapsed)
	require.Len(t, lanes[2].Bars, 3)
	assert.Equal(t, DefaultLaneMetrics.RowHeight(2, DensityCompact), lanes[2].Height)
	assert.Equal(t, lanes[1].Top+lanes[1].Height, lanes[2].Top)
}
