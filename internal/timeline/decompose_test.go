package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

func experiment(id string, p roadmap.Priority, start, end string) roadmap.Feature {
	return roadmap.Feature{
		ID:           id,
		Title:        "Checkout redesign",
		StartDate:    day(start),
		EndDate:      day(end),
		Stage:        roadmap.StageTesting,
		Priority:     p,
		IsExperiment: true,
	}
}

func TestDecompose_BarCount(t *testing.T) {
	tests := []struct {
		name     string
		feature  roadmap.Feature
		wantBars int
		wantArms []string
	}{
		{
			name:     "high priority runs three arms",
			feature:  experiment("f-1", roadmap.PriorityHigh, "2025-01-01", "2025-04-11"),
			wantBars: 4,
			wantArms: []string{"Control", "Variant B", "Variant C", "Launch"},
		},
		{
			name:     "critical priority runs three arms",
			feature:  experiment("f-2", roadmap.PriorityCritical, "2025-01-01", "2025-04-11"),
			wantBars: 4,
			wantArms: []string{"Control", "Variant B", "Variant C", "Launch"},
		},
		{
			name:     "medium priority runs two arms",
			feature:  experiment("f-3", roadmap.PriorityMedium, "2025-01-01", "2025-04-11"),
			wantBars: 3,
			wantArms: []string{"Control", "Variant B", "Launch"},
		},
		{
			name:     "low priority runs two arms",
			feature:  experiment("f-4", roadmap.PriorityLow, "2025-01-01", "2025-04-11"),
			wantBars: 3,
			wantArms: []string{"Control", "Variant B", "Launch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := Decompose(tt.feature)
			require.Len(t, bars, tt.wantBars)
			var names []string
			for _, b := range bars {
				names = append(names, b.VariantName)
				assert.Equal(t, tt.feature.ID, b.ParentFeatureID)
			}
			assert.Equal(t, tt.wantArms, names)
		})
	}
}

func TestDecompose_PlainFeature(t *testing.T) {
	f := roadmap.Feature{
		ID:        "plain-7",
		Title:     "Dark mode",
		StartDate: day("2025-02-01"),
		EndDate:   day("2025-03-01"),
		Stage:     roadmap.StageDevelopment,
		Priority:  roadmap.PriorityHigh,
	}

	bars := Decompose(f)
	require.Len(t, bars, 1)
	assert.Equal(t, Bar{
		ID:              "plain-7",
		ParentFeatureID: "plain-7",
		Title:           "Dark mode",
		Kind:            BarFeature,
		StartDate:       day("2025-02-01"),
		EndDate:         day("2025-03-01"),
		Status:          roadmap.StageDevelopment,
		Priority:        roadmap.PriorityHigh,
	}, bars[0])
}

func TestDecompose_PhaseDates(t *testing.T) {
	// 100 days: variants run 60, launch takes the remaining 40.
	bars := Decompose(experiment("f-0", roadmap.PriorityMedium, "2025-01-01", "2025-04-11"))
	require.Len(t, bars, 3)

	for _, b := range bars[:2] {
		assert.Equal(t, day("2025-01-01"), b.StartDate)
		assert.Equal(t, day("2025-03-02"), b.EndDate)
	}
	launch := bars[2]
	assert.Equal(t, BarLaunch, launch.Kind)
	assert.Equal(t, day("2025-03-02"), launch.StartDate)
	assert.Equal(t, day("2025-04-11"), launch.EndDate)
}

func TestDecompose_TrafficAndWinner(t *testing.T) {
	t.Run("two arms", func(t *testing.T) {
		bars := Decompose(experiment("abc0", roadmap.PriorityMedium, "2025-01-01", "2025-02-01"))
		require.Len(t, bars, 3)

		assert.True(t, bars[0].IsControl)
		assert.Equal(t, "50%", bars[0].TrafficSplit)
		assert.Equal(t, "baseline", bars[0].ComparisonLabel)
		assert.False(t, bars[0].IsWinner)

		assert.Equal(t, "50%", bars[1].TrafficSplit)
		assert.True(t, bars[1].IsWinner)
		// id ends in "0" -> conversion rate, +12%.
		assert.Equal(t, "Conversion rate", bars[1].MetricLabel)
		assert.Equal(t, "+12.0% vs. control", bars[1].ComparisonLabel)

		assert.Equal(t, bars[1].ID, bars[2].DependsOn)
		assert.Equal(t, bars[1].MetricLabel, bars[2].MetricLabel)
		assert.Equal(t, bars[1].ComparisonLabel, bars[2].ComparisonLabel)
	})

	t.Run("three arms", func(t *testing.T) {
		bars := Decompose(experiment("abc0", roadmap.PriorityHigh, "2025-01-01", "2025-02-01"))
		require.Len(t, bars, 4)

		assert.Equal(t, []string{"34%", "33%", "33%"},
			[]string{bars[0].TrafficSplit, bars[1].TrafficSplit, bars[2].TrafficSplit})
		assert.False(t, bars[1].IsWinner)
		assert.Equal(t, "+12.0% vs. control", bars[1].ComparisonLabel)
		assert.True(t, bars[2].IsWinner)
		assert.Equal(t, "+20.0% vs. control", bars[2].ComparisonLabel)
		assert.Equal(t, "abc0-variant-c", bars[3].DependsOn)
	})
}

func TestDecompose_IsIdempotent(t *testing.T) {
	f := experiment(roadmap.NewID(), roadmap.PriorityCritical, "2025-05-05", "2025-09-30")
	assert.Equal(t, Decompose(f), Decompose(f))
}

func TestDecompose_DegenerateRanges(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantStart  string
		wantEnd    string
	}{
		{name: "zero duration", start: "2025-06-01", end: "2025-06-01", wantStart: "2025-06-01", wantEnd: "2025-06-01"},
		{name: "end before start", start: "2025-06-10", end: "2025-06-01", wantStart: "2025-06-10", wantEnd: "2025-06-10"},
		{name: "one day", start: "2025-06-01", end: "2025-06-02", wantStart: "2025-06-01", wantEnd: "2025-06-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bars []Bar
			require.NotPanics(t, func() {
				bars = Decompose(experiment("deadbeef", roadmap.PriorityMedium, tt.start, tt.end))
			})
			require.Len(t, bars, 3)
			launch := bars[len(bars)-1]
			assert.Equal(t, day(tt.wantStart), launch.StartDate)
			assert.Equal(t, day(tt.wantEnd), launch.EndDate)
			for _, b := range bars[:2] {
				assert.Equal(t, day(tt.wantStart), b.StartDate)
				assert.Equal(t, b.StartDate, b.EndDate)
			}
		})
	}
}

func TestMetricIndex(t *testing.T) {
	assert.Equal(t, 0, metricIndex("x0"))
	assert.Equal(t, 1, metricIndex("x1"))
	assert.Equal(t, 4, metricIndex("x9"))
	assert.Equal(t, 0, metricIndex("xa")) // 10 % 5
	assert.Equal(t, 0, metricIndex("xA"))
	assert.Equal(t, 1, metricIndex("xb"))
	assert.Equal(t, metricIndex("not-hex-z"), metricIndex("not-hex-z"))
	assert.Less(t, metricIndex(""), len(metricTable))
}

func TestVariantCount(t *testing.T) {
	assert.Equal(t, 0, VariantCount(roadmap.Feature{Priority: roadmap.PriorityHigh}))
	assert.Equal(t, 2, VariantCount(roadmap.Feature{IsExperiment: true, Priority: roadmap.PriorityLow}))
	assert.Equal(t, 3, VariantCount(roadmap.Feature{IsExperiment: true, Priority: roadmap.PriorityCritical}))
}
