// Package roadmap defines the features and ideas placed on the timeline and
// the canvas.
//
// Types carry json, yaml and db tags so the same structs travel through the
// HTTP API, the file snapshot and the SQL backend. Optional values are
// pointers: a nil CanvasX means the item was never placed.
package roadmap

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Feature is a committed, dated roadmap item, optionally an experiment.
type Feature struct {
	// ID is the unique identifier (UUID, lower-case hex).
	ID string `json:"id" yaml:"id" db:"id"`

	// Title is the short name shown on bars and cards.
	Title string `json:"title" yaml:"title" db:"title"`

	// Description is free-form text.
	Description string `json:"description,omitempty" yaml:"description,omitempty" db:"description"`

	// StartDate is the first day of work, truncated to a calendar day.
	StartDate time.Time `json:"start_date" yaml:"start_date" db:"start_date"`

	// EndDate is the last day of work, inclusive.
	EndDate time.Time `json:"end_date" yaml:"end_date" db:"end_date"`

	// Stage is the lifecycle stage.
	Stage Stage `json:"stage" yaml:"stage" db:"stage"`

	// Priority ranks the feature.
	Priority Priority `json:"priority" yaml:"priority" db:"priority"`

	// Team optionally names the owning team.
	Team string `json:"team,omitempty" yaml:"team,omitempty" db:"team"`

	// CanvasX is the persisted logical x coordinate. Nil if never placed.
	CanvasX *float64 `json:"canvas_x,omitempty" yaml:"canvas_x,omitempty" db:"canvas_x"`

	// CanvasY is the persisted logical y coordinate. Nil if never placed.
	CanvasY *float64 `json:"canvas_y,omitempty" yaml:"canvas_y,omitempty" db:"canvas_y"`

	// IsExperiment marks the feature as an A/B experiment.
	IsExperiment bool `json:"is_experiment" yaml:"is_experiment" db:"is_experiment"`

	// Experiment holds experiment metadata. Nil for plain features.
	Experiment *ExperimentMeta `json:"experiment,omitempty" yaml:"experiment,omitempty" db:"-"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at" db:"created_at"`

	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// ExperimentMeta holds the experiment fields of a feature. Outcome values
// are recorded by users and never derived by the engine.
type ExperimentMeta struct {
	Hypothesis     string   `json:"hypothesis,omitempty" yaml:"hypothesis,omitempty"`
	PrimaryMetric  string   `json:"primary_metric,omitempty" yaml:"primary_metric,omitempty"`
	Lift           *float64 `json:"lift,omitempty" yaml:"lift,omitempty"`
	PValue         *float64 `json:"p_value,omitempty" yaml:"p_value,omitempty"`
	WinningVariant string   `json:"winning_variant,omitempty" yaml:"winning_variant,omitempty"`
}

// Idea is an unscheduled concept awaiting promotion to a Feature.
type Idea struct {
	// ID is the unique identifier (UUID, lower-case hex).
	ID string `json:"id" yaml:"id" db:"id"`

	// Title is the text written on the sticky note.
	Title string `json:"title" yaml:"title" db:"title"`

	// Description is optional free-form text.
	Description string `json:"description,omitempty" yaml:"description,omitempty" db:"description"`

	// Theme is the optional growth area.
	Theme Theme `json:"theme,omitempty" yaml:"theme,omitempty" db:"theme"`

	// Impact is the optional expected impact.
	Impact Impact `json:"impact,omitempty" yaml:"impact,omitempty" db:"impact"`

	// Color is the optional sticky-note color (hex code).
	Color string `json:"color,omitempty" yaml:"color,omitempty" db:"color"`

	// CanvasX is the persisted logical x coordinate. Nil if never placed.
	CanvasX *float64 `json:"canvas_x,omitempty" yaml:"canvas_x,omitempty" db:"canvas_x"`

	// CanvasY is the persisted logical y coordinate. Nil if never placed.
	CanvasY *float64 `json:"canvas_y,omitempty" yaml:"canvas_y,omitempty" db:"canvas_y"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at" db:"created_at"`

	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// NewID returns a fresh identifier.
func NewID() string {
	return uuid.New().String()
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b. The
// result is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Position returns the persisted canvas coordinates and whether both are set.
func (f Feature) Position() (x, y float64, ok bool) {
	return position(f.CanvasX, f.CanvasY)
}

// Position returns the persisted canvas coordinates and whether both are set.
func (i Idea) Position() (x, y float64, ok bool) {
	return position(i.CanvasX, i.CanvasY)
}

func position(x, y *float64) (float64, float64, bool) {
	if x == nil || y == nil {
		return 0, 0, false
	}
	return *x, *y, true
}

// Normalize trims text fields and truncates dates to calendar days.
func (f *Feature) Normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Team = strings.TrimSpace(f.Team)
	if !f.StartDate.IsZero() {
		f.StartDate = Day(f.StartDate)
	}
	if !f.EndDate.IsZero() {
		f.EndDate = Day(f.EndDate)
	}
	if f.Stage == "" {
		f.Stage = StagePlanning
	}
	if f.Priority == "" {
		f.Priority = PriorityMedium
	}
}

// Normalize trims text fields.
func (i *Idea) Normalize() {
	i.Title = strings.TrimSpace(i.Title)
	i.Description = strings.TrimSpace(i.Description)
	i.Color = strings.TrimSpace(i.Color)
}
