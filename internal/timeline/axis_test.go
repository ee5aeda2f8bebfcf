package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseZoom(t *testing.T) {
	tests := []struct {
		in   string
		want ZoomLevel
	}{
		{"fine", ZoomFine},
		{"Day", ZoomFine},
		{"week", ZoomMedium},
		{"", ZoomMedium},
		{"MONTH", ZoomCoarse},
		{"coarse", ZoomCoarse},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseZoom(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseZoom("quarter")
	assert.Error(t, err)
}

func TestScale_PixelsPerDay(t *testing.T) {
	s := DefaultScale
	assert.Greater(t, s.PixelsPerDay(ZoomFine), s.PixelsPerDay(ZoomMedium))
	assert.Greater(t, s.PixelsPerDay(ZoomMedium), s.PixelsPerDay(ZoomCoarse))
	assert.Equal(t, s.Medium, s.PixelsPerDay("bogus"))
}

func TestPositionFor(t *testing.T) {
	w := YearWindow(2025)
	const ppd = 10.0

	tests := []struct {
		name       string
		start, end string
		want       Placement
	}{
		{
			name:  "inside",
			start: "2025-03-01", end: "2025-03-10",
			want: Placement{Left: 59 * ppd, Width: 10 * ppd, Visible: true},
		},
		{
			name:  "crosses window start",
			start: "2024-12-15", end: "2025-01-15",
			want: Placement{Left: 0, Width: 15 * ppd, Visible: true, TruncatedStart: true},
		},
		{
			name:  "crosses window end",
			start: "2025-12-25", end: "2026-01-10",
			want: Placement{Left: 358 * ppd, Width: 7 * ppd, Visible: true, TruncatedEnd: true},
		},
		{
			name:  "spans whole window",
			start: "2024-06-01", end: "2026-06-01",
			want: Placement{Left: 0, Width: 365 * ppd, Visible: true, TruncatedStart: true, TruncatedEnd: true},
		},
		{
			name:  "entirely before",
			start: "2024-01-01", end: "2024-12-31",
			want: Placement{},
		},
		{
			name:  "entirely after",
			start: "2026-01-01", end: "2026-02-01",
			want: Placement{},
		},
		{
			name:  "single day",
			start: "2025-01-01", end: "2025-01-01",
			want: Placement{Left: 0, Width: ppd, Visible: true},
		},
		{
			name:  "reversed range collapses to start day",
			start: "2025-02-10", end: "2025-02-01",
			want: Placement{Left: 40 * ppd, Width: ppd, Visible: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PositionFor(day(tt.start), day(tt.end), w, ppd)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.Width, 0.0)
		})
	}
}

func TestPositionFor_IsDeterministic(t *testing.T) {
	w := YearWindow(2025)
	start := time.Date(2025, 5, 3, 17, 45, 0, 0, time.UTC)
	end := time.Date(2025, 8, 19, 2, 0, 0, 0, time.UTC)

	first := PositionFor(start, end, w, DefaultScale.Fine)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, PositionFor(start, end, w, DefaultScale.Fine))
	}
}

func TestResolveYear(t *testing.T) {
	now := day("2026-10-16")
	features := []roadmap.Feature{
		{Title: "undated"},
		{Title: "first dated", StartDate: day("2024-11-01")},
		{Title: "second dated", StartDate: day("2025-01-01")},
	}

	assert.Equal(t, 2023, ResolveYear(2023, features, now))
	assert.Equal(t, 2024, ResolveYear(0, features, now))
	assert.Equal(t, 2026, ResolveYear(0, nil, now))
}

func TestTodayOffset(t *testing.T) {
	w := YearWindow(2025)

	x, ok := TodayOffset(day("2025-01-11"), w, 3)
	require.True(t, ok)
	assert.Equal(t, 30.0, x)

	_, ok = TodayOffset(day("2026-10-16"), w, 3)
	assert.False(t, ok)
}

func TestMonthTicks(t *testing.T) {
	ticks := MonthTicks(YearWindow(2025), 1)
	require.Len(t, ticks, 12)
	assert.Equal(t, Tick{Label: "Jan", X: 0}, ticks[0])
	assert.Equal(t, Tick{Label: "Feb", X: 31}, ticks[1])
	assert.Equal(t, "Dec", ticks[11].Label)
}

func TestWindow_Days(t *testing.T) {
	assert.Equal(t, 365, YearWindow(2025).Days())
	assert.Equal(t, 366, YearWindow(2024).Days())
}
