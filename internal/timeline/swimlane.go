package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

// Density is the vertical sizing mode of swimlanes.
type Density string

const (
	DensityExpanded Density = "expanded"
	DensityCompact  Density = "compact"
)

// ParseDensity parses a density name. The empty string means expanded.
func ParseDensity(s string) (Density, error) {
	switch Density(strings.ToLower(strings.TrimSpace(s))) {
	case DensityExpanded, "":
		return DensityExpanded, nil
	case DensityCompact:
		return DensityCompact, nil
	}
	return "", fmt.Errorf("unknown density %q", s)
}

// LaneMetrics are the vertical constants of a swimlane in expanded density.
// Compact density multiplies every value by CompactScale.
type LaneMetrics struct {
	// BarHeight is the height of one bar in pixels.
	BarHeight float64 `yaml:"bar_height" json:"bar_height"`

	// BarGap is the vertical gap between stacked bars.
	BarGap float64 `yaml:"bar_gap" json:"bar_gap"`

	// RowPadding is the space above the first and below the last bar.
	RowPadding float64 `yaml:"row_padding" json:"row_padding"`

	// CompactScale is the factor applied to every tier in compact density.
	CompactScale float64 `yaml:"compact_scale" json:"compact_scale"`
}

// DefaultLaneMetrics gives 52px plain rows, 124px two-arm rows and 160px
// three-arm rows in expanded density.
var DefaultLaneMetrics = LaneMetrics{BarHeight: 28, BarGap: 8, RowPadding: 12, CompactScale: 0.75}

func (m LaneMetrics) forDensity(d Density) LaneMetrics {
	if d != DensityCompact {
		return m
	}
	return LaneMetrics{
		BarHeight:    m.BarHeight * m.CompactScale,
		BarGap:       m.BarGap * m.CompactScale,
		RowPadding:   m.RowPadding * m.CompactScale,
		CompactScale: m.CompactScale,
	}
}

// RowHeight is the minimum height of a row holding variantCount arms. A
// plain feature (zero arms) holds one bar; an experiment holds its arms
// plus the launch bar.
func (m LaneMetrics) RowHeight(variantCount int, d Density) float64 {
	s := m.forDensity(d)
	n := 1
	if variantCount > 0 {
		n = variantCount + 1
	}
	return 2*s.RowPadding + float64(n)*s.BarHeight + float64(n-1)*s.BarGap
}

// Offset is the vertical offset of the nth stacked bar measured from the
// top of the row content (below the padding).
func (m LaneMetrics) Offset(n int, d Density) float64 {
	s := m.forDensity(d)
	return float64(n) * (s.BarHeight + s.BarGap)
}

// ExpandedRows is the set of experiment rows the user opened while in
// compact density. It belongs to one view and is never persisted.
type ExpandedRows struct {
	ids map[string]struct{}
}

// NewExpandedRows returns a set holding ids.
func NewExpandedRows(ids ...string) *ExpandedRows {
	r := &ExpandedRows{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
	return r
}

// IsExpanded reports whether the row for featureID is open. A nil set has
// every row closed.
func (r *ExpandedRows) IsExpanded(featureID string) bool {
	if r == nil {
		return false
	}
	_, ok := r.ids[featureID]
	return ok
}

// Toggle flips the row and returns its new state. A nil set cannot hold
// state, so it ignores the call and reports the row closed.
func (r *ExpandedRows) Toggle(featureID string) bool {
	if r == nil {
		return false
	}
	if r.ids == nil {
		r.ids = make(map[string]struct{})
	}
	if _, ok := r.ids[featureID]; ok {
		delete(r.ids, featureID)
		return false
	}
	r.ids[featureID] = struct{}{}
	return true
}

// IDs returns the open rows in sorted order.
func (r *ExpandedRows) IDs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Group is a feature with its decomposed bars.
type Group struct {
	Feature roadmap.Feature
	Bars    []Bar
}

// Summary is the pill shown in place of a collapsed experiment row.
type Summary struct {
	Title         string    `json:"title"`
	VariantCount  int       `json:"variant_count"`
	EndDate       time.Time `json:"end_date"`
	PrimaryMetric string    `json:"primary_metric"`
	Placement     Placement `json:"placement"`
}

// LaneBar is a bar with its vertical geometry inside the lane.
type LaneBar struct {
	Bar
	Offset    float64   `json:"offset"`
	Height    float64   `json:"height"`
	Placement Placement `json:"placement"`
}

// Lane is one swimlane.
type Lane struct {
	FeatureID string    `json:"feature_id"`
	Title     string    `json:"title"`
	Top       float64   `json:"top"`
	Height    float64   `json:"height"`
	Padding   float64   `json:"padding"`
	Collapsed bool      `json:"collapsed"`
	Summary   *Summary  `json:"summary,omitempty"`
	Bars      []LaneBar `json:"bars,omitempty"`
}

// Layout stacks one lane per group. In compact density an experiment lane
// collapses to a summary pill unless its feature id is in expanded. Variant
// bars are stacked in order; the launch bar sits after every variant.
func Layout(groups []Group, d Density, expanded *ExpandedRows, m LaneMetrics) []Lane {
	s := m.forDensity(d)
	lanes := make([]Lane, 0, len(groups))
	top := 0.0

	for _, g := range groups {
		variants := 0
		for _, b := range g.Bars {
			if b.IsVariant {
				variants++
			}
		}

		lane := Lane{
			FeatureID: g.Feature.ID,
			Title:     g.Feature.Title,
			Top:       top,
			Padding:   s.RowPadding,
		}

		if d == DensityCompact && variants > 0 && !expanded.IsExpanded(g.Feature.ID) {
			lane.Collapsed = true
			lane.Height = m.RowHeight(0, d)
			lane.Summary = summarize(g, variants)
		} else {
			lane.Height = m.RowHeight(variants, d)
			n := 0
			for _, b := range g.Bars {
				idx := n
				if b.Kind == BarLaunch {
					idx = variants
				} else {
					n++
				}
				lane.Bars = append(lane.Bars, LaneBar{
					Bar:    b,
					Offset: m.Offset(idx, d),
					Height: s.BarHeight,
				})
			}
		}

		lanes = append(lanes, lane)
		top += lane.Height
	}
	return lanes
}

func summarize(g Group, variants int) *Summary {
	sum := &Summary{
		Title:        g.Feature.Title,
		VariantCount: variants,
		EndDate:      roadmap.Day(g.Feature.EndDate),
	}
	if g.Feature.Experiment != nil && g.Feature.Experiment.PrimaryMetric != "" {
		sum.PrimaryMetric = g.Feature.Experiment.PrimaryMetric
	} else if len(g.Bars) > 0 {
		sum.PrimaryMetric = g.Bars[len(g.Bars)-1].MetricLabel
	}
	return sum
}
