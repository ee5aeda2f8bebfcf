package timeline

import (
	"time"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

// Options controls Build.
type Options struct {
	// Year selects the calendar year shown. Zero derives it from the first
	// feature's start date, then from Today.
	Year int

	Zoom     ZoomLevel
	Density  Density
	Scale    Scale
	Lanes    LaneMetrics
	Expanded *ExpandedRows

	// Today positions the today marker. Zero hides the marker.
	Today time.Time
}

// View is a fully positioned timeline.
type View struct {
	Year         int       `json:"year"`
	Window       Window    `json:"window"`
	Zoom         ZoomLevel `json:"zoom"`
	Density      Density   `json:"density"`
	PixelsPerDay float64   `json:"pixels_per_day"`
	Width        float64   `json:"width"`
	Height       float64   `json:"height"`
	Today        *float64  `json:"today,omitempty"`
	Months       []Tick    `json:"months"`
	Lanes        []Lane    `json:"lanes"`
}

// Build decomposes, lays out and places features in their given order.
// Features entirely outside the selected year are dropped.
func Build(features []roadmap.Feature, opts Options) View {
	if opts.Scale == (Scale{}) {
		opts.Scale = DefaultScale
	}
	if opts.Lanes == (LaneMetrics{}) {
		opts.Lanes = DefaultLaneMetrics
	}
	if opts.Zoom == "" {
		opts.Zoom = ZoomMedium
	}
	if opts.Density == "" {
		opts.Density = DensityExpanded
	}

	now := opts.Today
	if now.IsZero() {
		now = time.Now()
	}
	year := ResolveYear(opts.Year, features, now)
	w := YearWindow(year)
	ppd := opts.Scale.PixelsPerDay(opts.Zoom)

	groups := make([]Group, 0, len(features))
	for _, f := range features {
		if !PositionFor(f.StartDate, f.EndDate, w, ppd).Visible {
			continue
		}
		groups = append(groups, Group{Feature: f, Bars: Decompose(f)})
	}

	lanes := Layout(groups, opts.Density, opts.Expanded, opts.Lanes)
	height := 0.0
	for i := range lanes {
		for j := range lanes[i].Bars {
			b := &lanes[i].Bars[j]
			b.Placement = PositionFor(b.StartDate, b.EndDate, w, ppd)
		}
		if sum := lanes[i].Summary; sum != nil {
			f := groups[i].Feature
			sum.Placement = PositionFor(f.StartDate, f.EndDate, w, ppd)
		}
		height += lanes[i].Height
	}

	v := View{
		Year:         year,
		Window:       w,
		Zoom:         opts.Zoom,
		Density:      opts.Density,
		PixelsPerDay: ppd,
		Width:        float64(w.Days()) * ppd,
		Height:       height,
		Months:       MonthTicks(w, ppd),
		Lanes:        lanes,
	}
	if !opts.Today.IsZero() {
		if x, ok := TodayOffset(opts.Today, w, ppd); ok {
			v.Today = &x
		}
	}
	return v
}
