// Package timeline turns features into positioned bars on a calendar axis.
//
// The pipeline has three stages, each a pure function of its inputs:
//
//   - Decompose splits an experiment feature into variant and launch bars.
//   - Layout groups bars into swimlanes and assigns vertical offsets.
//   - PositionFor maps a date range onto pixels for a zoom level and window.
//
// Build runs all three and returns a View that the HTTP layer serializes
// and the CLI renders to SVG.
package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

// ZoomLevel selects a fixed pixels-per-day constant. The date axis has no
// continuous zoom.
type ZoomLevel string

const (
	// ZoomFine shows individual days.
	ZoomFine ZoomLevel = "fine"

	// ZoomMedium shows weeks.
	ZoomMedium ZoomLevel = "medium"

	// ZoomCoarse fits a full year on one screen.
	ZoomCoarse ZoomLevel = "coarse"
)

// ParseZoom parses a zoom level name. Day/week/month are accepted as
// aliases for fine/medium/coarse.
func ParseZoom(s string) (ZoomLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fine", "day", "days":
		return ZoomFine, nil
	case "medium", "week", "weeks", "":
		return ZoomMedium, nil
	case "coarse", "month", "months":
		return ZoomCoarse, nil
	}
	return "", fmt.Errorf("unknown zoom level %q", s)
}

// Scale holds the pixels-per-day constant of each zoom level.
type Scale struct {
	Fine   float64 `yaml:"fine" json:"fine"`
	Medium float64 `yaml:"medium" json:"medium"`
	Coarse float64 `yaml:"coarse" json:"coarse"`
}

// DefaultScale is the built-in scale: a year is ~8760px fine, ~2920px
// medium and ~1095px coarse.
var DefaultScale = Scale{Fine: 24, Medium: 8, Coarse: 3}

// PixelsPerDay returns the constant for z. Unknown levels fall back to
// medium.
func (s Scale) PixelsPerDay(z ZoomLevel) float64 {
	switch z {
	case ZoomFine:
		return s.Fine
	case ZoomCoarse:
		return s.Coarse
	default:
		return s.Medium
	}
}

// Window is the visible date range. Both endpoints are inclusive calendar
// days.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// YearWindow returns January 1st through December 31st of year.
func YearWindow(year int) Window {
	return Window{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Days returns the number of calendar days in the window.
func (w Window) Days() int {
	return roadmap.DaysBetween(w.Start, w.End) + 1
}

// Contains reports whether t falls on a day inside the window.
func (w Window) Contains(t time.Time) bool {
	d := roadmap.Day(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// ResolveYear picks the year to display. An explicit selection wins;
// otherwise the start year of the first feature with a start date is used,
// falling back to the year of now.
func ResolveYear(selected int, features []roadmap.Feature, now time.Time) int {
	if selected > 0 {
		return selected
	}
	for _, f := range features {
		if !f.StartDate.IsZero() {
			return f.StartDate.Year()
		}
	}
	return now.Year()
}

// Placement is the horizontal geometry of one bar.
type Placement struct {
	// Left is the pixel offset of the visible left edge from the window start.
	Left float64 `json:"left"`

	// Width is the pixel width of the visible part of the bar.
	Width float64 `json:"width"`

	// Visible is false when the range lies entirely outside the window. No
	// other field is meaningful then.
	Visible bool `json:"visible"`

	// TruncatedStart marks a bar that starts before the window.
	TruncatedStart bool `json:"truncated_start,omitempty"`

	// TruncatedEnd marks a bar that ends after the window.
	TruncatedEnd bool `json:"truncated_end,omitempty"`
}

// PositionFor maps the inclusive day range [start, end] onto the window.
// A reversed range is treated as the single day start. Portions outside the
// window are clipped and flagged; a range entirely outside yields a
// placement with Visible false rather than a negative width.
func PositionFor(start, end time.Time, w Window, pixelsPerDay float64) Placement {
	s, e := roadmap.Day(start), roadmap.Day(end)
	if e.Before(s) {
		e = s
	}
	if e.Before(w.Start) || s.After(w.End) {
		return Placement{}
	}

	p := Placement{Visible: true}
	if s.Before(w.Start) {
		s = w.Start
		p.TruncatedStart = true
	}
	if e.After(w.End) {
		e = w.End
		p.TruncatedEnd = true
	}
	p.Left = float64(roadmap.DaysBetween(w.Start, s)) * pixelsPerDay
	p.Width = float64(roadmap.DaysBetween(s, e)+1) * pixelsPerDay
	return p
}

// TodayOffset returns the pixel offset of the today marker and whether it
// should be drawn at all.
func TodayOffset(today time.Time, w Window, pixelsPerDay float64) (float64, bool) {
	if !w.Contains(today) {
		return 0, false
	}
	return PositionFor(today, today, w, pixelsPerDay).Left, true
}

// Tick is a labelled axis position.
type Tick struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
}

// MonthTicks returns one tick per month boundary inside the window.
func MonthTicks(w Window, pixelsPerDay float64) []Tick {
	var ticks []Tick
	m := time.Date(w.Start.Year(), w.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	if m.Before(w.Start) {
		m = m.AddDate(0, 1, 0)
	}
	for ; !m.After(w.End); m = m.AddDate(0, 1, 0) {
		ticks = append(ticks, Tick{
			Label: m.Format("Jan"),
			X:     float64(roadmap.DaysBetween(w.Start, m)) * pixelsPerDay,
		})
	}
	return ticks
}
