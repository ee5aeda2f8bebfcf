package roadmap

import (
	"time"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
)

// FeaturePatch is a partial update. Nil fields are left untouched, so a
// position write and a date write never clobber each other.
type FeaturePatch struct {
	Title        *string         `json:"title,omitempty"`
	Description  *string         `json:"description,omitempty"`
	StartDate    *time.Time      `json:"start_date,omitempty"`
	EndDate      *time.Time      `json:"end_date,omitempty"`
	Stage        *Stage          `json:"stage,omitempty"`
	Priority     *Priority       `json:"priority,omitempty"`
	Team         *string         `json:"team,omitempty"`
	CanvasX      *float64        `json:"canvas_x,omitempty"`
	CanvasY      *float64        `json:"canvas_y,omitempty"`
	IsExperiment *bool           `json:"is_experiment,omitempty"`
	Experiment   *ExperimentMeta `json:"experiment,omitempty"`
}

// IdeaPatch is a partial update of an Idea.
type IdeaPatch struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Theme       *Theme   `json:"theme,omitempty"`
	Impact      *Impact  `json:"impact,omitempty"`
	Color       *string  `json:"color,omitempty"`
	CanvasX     *float64 `json:"canvas_x,omitempty"`
	CanvasY     *float64 `json:"canvas_y,omitempty"`
}

// FeaturePosition returns a patch that only moves a feature on the canvas.
func FeaturePosition(x, y float64) FeaturePatch {
	return FeaturePatch{CanvasX: Float(x), CanvasY: Float(y)}
}

// FeatureDates returns a patch that only reschedules a feature.
func FeatureDates(start, end time.Time) FeaturePatch {
	s, e := Day(start), Day(end)
	return FeaturePatch{StartDate: &s, EndDate: &e}
}

// IdeaPosition returns a patch that only moves an idea on the canvas.
func IdeaPosition(x, y float64) IdeaPatch {
	return IdeaPatch{CanvasX: Float(x), CanvasY: Float(y)}
}

// Empty reports whether the patch changes nothing.
func (p FeaturePatch) Empty() bool {
	return p == FeaturePatch{}
}

// Empty reports whether the patch changes nothing.
func (p IdeaPatch) Empty() bool {
	return p == IdeaPatch{}
}

// Apply copies every set field of p onto f.
func (p FeaturePatch) Apply(f *Feature) {
	if p.Title != nil {
		f.Title = *p.Title
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.StartDate != nil {
		f.StartDate = Day(*p.StartDate)
	}
	if p.EndDate != nil {
		f.EndDate = Day(*p.EndDate)
	}
	if p.Stage != nil {
		f.Stage = *p.Stage
	}
	if p.Priority != nil {
		f.Priority = *p.Priority
	}
	if p.Team != nil {
		f.Team = *p.Team
	}
	if p.CanvasX != nil {
		f.CanvasX = Float(*p.CanvasX)
	}
	if p.CanvasY != nil {
		f.CanvasY = Float(*p.CanvasY)
	}
	if p.IsExperiment != nil {
		f.IsExperiment = *p.IsExperiment
	}
	if p.Experiment != nil {
		meta := *p.Experiment
		f.Experiment = &meta
	}
}

// Apply copies every set field of p onto i.
func (p IdeaPatch) Apply(i *Idea) {
	if p.Title != nil {
		i.Title = *p.Title
	}
	if p.Description != nil {
		i.Description = *p.Description
	}
	if p.Theme != nil {
		i.Theme = *p.Theme
	}
	if p.Impact != nil {
		i.Impact = *p.Impact
	}
	if p.Color != nil {
		i.Color = *p.Color
	}
	if p.CanvasX != nil {
		i.CanvasX = Float(*p.CanvasX)
	}
	if p.CanvasY != nil {
		i.CanvasY = Float(*p.CanvasY)
	}
}

// Validate checks the fields a patch may set.
func (p FeaturePatch) Validate() error {
	if p.Title != nil && *p.Title == "" {
		return apperr.New(apperr.CodeValidationGap, "roadmap.FeaturePatch", "title cannot be empty")
	}
	if p.Stage != nil && !p.Stage.Valid() {
		return apperr.New(apperr.CodeInvalidInput, "roadmap.FeaturePatch", "unknown stage %q", *p.Stage)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return apperr.New(apperr.CodeInvalidInput, "roadmap.FeaturePatch", "unknown priority %q", *p.Priority)
	}
	return nil
}

// Validate checks the fields a patch may set.
func (p IdeaPatch) Validate() error {
	if p.Title != nil && *p.Title == "" {
		return apperr.New(apperr.CodeValidationGap, "roadmap.IdeaPatch", "title cannot be empty")
	}
	if p.Theme != nil && !p.Theme.Valid() {
		return apperr.New(apperr.CodeInvalidInput, "roadmap.IdeaPatch", "unknown theme %q", *p.Theme)
	}
	if p.Impact != nil && !p.Impact.Valid() {
		return apperr.New(apperr.CodeInvalidInput, "roadmap.IdeaPatch", "unknown impact %q", *p.Impact)
	}
	return nil
}

// Validate reports a ValidationGap for missing required fields and
// InvalidInput for unknown enum values. Date order is not checked: a
// reversed range is rendered as a clamped bar rather than rejected.
func (f Feature) Validate() error {
	const op = "roadmap.Feature"
	if f.Title == "" {
		return apperr.New(apperr.CodeValidationGap, op, "title is required")
	}
	if f.StartDate.IsZero() || f.EndDate.IsZero() {
		return apperr.New(apperr.CodeValidationGap, op, "start and end dates are required")
	}
	if !f.Stage.Valid() {
		return apperr.New(apperr.CodeInvalidInput, op, "unknown stage %q", f.Stage)
	}
	if !f.Priority.Valid() {
		return apperr.New(apperr.CodeInvalidInput, op, "unknown priority %q", f.Priority)
	}
	return nil
}

// Validate reports a ValidationGap when the title is missing.
func (i Idea) Validate() error {
	const op = "roadmap.Idea"
	if i.Title == "" {
		return apperr.New(apperr.CodeValidationGap, op, "title is required")
	}
	if !i.Theme.Valid() {
		return apperr.New(apperr.CodeInvalidInput, op, "unknown theme %q", i.Theme)
	}
	if !i.Impact.Valid() {
		return apperr.New(apperr.CodeInvalidInput, op, "unknown impact %q", i.Impact)
	}
	return nil
}
