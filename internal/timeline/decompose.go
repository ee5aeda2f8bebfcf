package timeline

import (
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

// BarKind distinguishes the bars produced by Decompose.
type BarKind string

const (
	// BarFeature is the single bar of a non-experiment feature.
	BarFeature BarKind = "feature"

	// BarVariant is one arm of an experiment.
	BarVariant BarKind = "variant"

	// BarLaunch is the rollout that follows the variant phase.
	BarLaunch BarKind = "launch"
)

// Bar is one visual bar derived from a feature. Bars are recomputed on every
// render and never persisted.
type Bar struct {
	ID              string           `json:"id"`
	ParentFeatureID string           `json:"parent_feature_id"`
	Title           string           `json:"title"`
	Kind            BarKind          `json:"kind"`
	StartDate       time.Time        `json:"start_date"`
	EndDate         time.Time        `json:"end_date"`
	Status          roadmap.Stage    `json:"status"`
	Priority        roadmap.Priority `json:"priority"`
	IsVariant       bool             `json:"is_variant"`
	VariantName     string           `json:"variant_name,omitempty"`
	IsControl       bool             `json:"is_control,omitempty"`
	TrafficSplit    string           `json:"traffic_split,omitempty"`
	IsWinner        bool             `json:"is_winner,omitempty"`
	MetricLabel     string           `json:"metric_label,omitempty"`
	ComparisonLabel string           `json:"comparison_label,omitempty"`

	// DependsOn references the bar this one follows. Launch bars point at
	// the winning variant.
	DependsOn string `json:"depends_on,omitempty"`
}

// variantPhaseShare is the fraction of an experiment spent running variants.
const variantPhaseShare = 0.6

// winnerBonus is the extra lift shown for the third arm when it wins.
const winnerBonus = 0.08

// syntheticMetric is one row of the presentation lookup table. The values
// are placeholders and carry no statistical meaning.
type syntheticMetric struct {
	Name       string
	Delta      float64
	Comparison string
}

var metricTable = []syntheticMetric{
	{Name: "Conversion rate", Delta: 0.12, Comparison: "vs. control"},
	{Name: "Activation rate", Delta: 0.08, Comparison: "vs. control"},
	{Name: "7-day retention", Delta: 0.05, Comparison: "vs. baseline"},
	{Name: "Revenue per user", Delta: 0.15, Comparison: "vs. control"},
	{Name: "Click-through rate", Delta: 0.18, Comparison: "vs. baseline"},
}

// metricIndex maps an identifier to a stable index into metricTable. The
// last character is used when it is a hex digit; other identifiers fall
// back to an FNV-1a checksum of the whole string.
func metricIndex(id string) int {
	if id != "" {
		if v, ok := hexValue(id[len(id)-1]); ok {
			return v % len(metricTable)
		}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(len(metricTable)))
}

func hexValue(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

type arm struct {
	suffix string
	name   string
	split  string
}

var (
	twoArms = []arm{
		{suffix: "control", name: "Control", split: "50%"},
		{suffix: "variant-b", name: "Variant B", split: "50%"},
	}
	threeArms = []arm{
		{suffix: "control", name: "Control", split: "34%"},
		{suffix: "variant-b", name: "Variant B", split: "33%"},
		{suffix: "variant-c", name: "Variant C", split: "33%"},
	}
)

// VariantCount returns how many arms Decompose produces for f: zero for a
// plain feature, three for high or critical experiments, two otherwise.
func VariantCount(f roadmap.Feature) int {
	switch {
	case !f.IsExperiment:
		return 0
	case f.Priority.Elevated():
		return 3
	default:
		return 2
	}
}

// Decompose returns the bars for f. A plain feature yields one bar spanning
// its own dates. An experiment yields its variant bars followed by a launch
// bar.
//
// The variant phase is floor(60%) of the experiment's days and every arm
// runs for the whole phase. The last arm is always the declared winner and
// the metric comes from a lookup keyed on the feature id, so repeated calls
// on the same feature return identical bars. A reversed or empty date
// range never fails: the variant phase collapses to zero days and the
// launch bar spans the whole (clamped) range.
func Decompose(f roadmap.Feature) []Bar {
	start, end := roadmap.Day(f.StartDate), roadmap.Day(f.EndDate)
	if end.Before(start) {
		end = start
	}

	if !f.IsExperiment {
		return []Bar{{
			ID:              f.ID,
			ParentFeatureID: f.ID,
			Title:           f.Title,
			Kind:            BarFeature,
			StartDate:       start,
			EndDate:         end,
			Status:          f.Stage,
			Priority:        f.Priority,
		}}
	}

	duration := roadmap.DaysBetween(start, end)
	variantDays := int(math.Floor(float64(duration) * variantPhaseShare))
	if variantDays < 0 {
		variantDays = 0
	}
	variantEnd := start.AddDate(0, 0, variantDays)

	metric := metricTable[metricIndex(f.ID)]
	arms := twoArms
	if VariantCount(f) == 3 {
		arms = threeArms
	}

	bars := make([]Bar, 0, len(arms)+1)
	for i, a := range arms {
		b := Bar{
			ID:              f.ID + "-" + a.suffix,
			ParentFeatureID: f.ID,
			Title:           f.Title,
			Kind:            BarVariant,
			StartDate:       start,
			EndDate:         variantEnd,
			Status:          f.Stage,
			Priority:        f.Priority,
			IsVariant:       true,
			VariantName:     a.name,
			TrafficSplit:    a.split,
			MetricLabel:     metric.Name,
		}
		switch {
		case i == 0:
			b.IsControl = true
			b.ComparisonLabel = "baseline"
		case i == len(arms)-1:
			b.IsWinner = true
			delta := metric.Delta
			if len(arms) == 3 {
				delta += winnerBonus
			}
			b.ComparisonLabel = comparison(delta, metric.Comparison)
		default:
			b.ComparisonLabel = comparison(metric.Delta, metric.Comparison)
		}
		bars = append(bars, b)
	}

	winner := bars[len(bars)-1]
	bars = append(bars, Bar{
		ID:              f.ID + "-launch",
		ParentFeatureID: f.ID,
		Title:           f.Title,
		Kind:            BarLaunch,
		StartDate:       variantEnd,
		EndDate:         end,
		Status:          f.Stage,
		Priority:        f.Priority,
		VariantName:     "Launch",
		MetricLabel:     winner.MetricLabel,
		ComparisonLabel: winner.ComparisonLabel,
		DependsOn:       winner.ID,
	})
	return bars
}

func comparison(delta float64, suffix string) string {
	return fmt.Sprintf("%+.1f%% %s", delta*100, suffix)
}
