package board

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/metrics"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/timeline"
)

// ConvertRequest schedules an idea as a feature.
type ConvertRequest struct {
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Team         string    `json:"team,omitempty"`
	IsExperiment bool      `json:"is_experiment,omitempty"`
}

// ConversionError reports a conversion whose feature was created but whose
// idea could not be deleted. Both records now exist; Compensate removes the
// feature again.
type ConversionError struct {
	IdeaID    string
	FeatureID string
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("idea %s converted to feature %s but not deleted: %v", e.IdeaID, e.FeatureID, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ConvertIdea promotes an idea to a feature in two steps: create the
// feature, then delete the idea. Missing dates fail before anything is
// written. When the delete fails the returned error wraps a
// *ConversionError and carries CodeConflict; the created feature is kept
// until the caller invokes Compensate.
func (b *Board) ConvertIdea(ctx context.Context, ideaID string, req ConvertRequest) (roadmap.Feature, error) {
	const op = "board.ConvertIdea"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("idea_id", ideaID)))
	defer span.End()

	fail := func(outcome string, err error) (roadmap.Feature, error) {
		metrics.Conversions.WithLabelValues(outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return roadmap.Feature{}, err
	}

	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return fail("invalid", apperr.New(apperr.CodeValidationGap, op, "start and end dates are required to convert an idea"))
	}

	idea, err := b.store.GetIdea(ctx, ideaID)
	if err != nil {
		return fail("invalid", err)
	}

	// The feature takes the idea's place on the canvas, seeded or not.
	x, y := idea.CanvasX, idea.CanvasY
	if it, ok := b.canvas.Item(ideaID); ok && (x == nil || y == nil) {
		x, y = roadmap.Float(it.Geometry.X), roadmap.Float(it.Geometry.Y)
	}

	feature, err := b.store.CreateFeature(ctx, roadmap.Feature{
		Title:        idea.Title,
		Description:  idea.Description,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Stage:        roadmap.StagePlanning,
		Priority:     idea.Impact.Priority(),
		Team:         req.Team,
		CanvasX:      x,
		CanvasY:      y,
		IsExperiment: req.IsExperiment,
	})
	if err != nil {
		return fail("create_failed", err)
	}
	span.SetAttributes(attribute.String("feature_id", feature.ID))

	if err := b.store.DeleteIdea(ctx, ideaID); err != nil {
		b.logger.Warn("conversion left idea behind",
			slog.String("idea", ideaID), slog.String("feature", feature.ID), slog.String("error", err.Error()))
		b.placeFeature(feature)
		cerr := &ConversionError{IdeaID: ideaID, FeatureID: feature.ID, Err: err}
		return fail("delete_failed", &apperr.Error{Code: apperr.CodeConflict, Op: op, Message: "conversion half applied", Err: cerr})
	}

	metrics.Conversions.WithLabelValues("converted").Inc()
	b.logger.Info("idea converted", slog.String("idea", ideaID), slog.String("feature", feature.ID))
	b.unplace(ideaID)
	b.placeFeature(feature)
	return feature, nil
}

// Compensate undoes the first step of a half-applied conversion by
// deleting the created feature. A feature already gone counts as undone.
func (b *Board) Compensate(ctx context.Context, cerr *ConversionError) error {
	err := b.store.DeleteFeature(ctx, cerr.FeatureID)
	if apperr.HasCode(err, apperr.CodeNotFound) {
		err = nil
	}
	if err == nil {
		b.logger.Info("conversion compensated", slog.String("idea", cerr.IdeaID), slog.String("feature", cerr.FeatureID))
		b.unplace(cerr.FeatureID)
	}
	return err
}

// Outcome is a user-recorded experiment result. Nil fields are left as
// they are.
type Outcome struct {
	Lift           *float64 `json:"lift,omitempty"`
	PValue         *float64 `json:"p_value,omitempty"`
	WinningVariant *string  `json:"winning_variant,omitempty"`
}

// RecordOutcome stores an experiment result on a feature. The values are
// kept as given; the timeline keeps showing its own placeholder winner. A
// winning variant must name one of the feature's arms, by bar id or by
// variant name.
func (b *Board) RecordOutcome(ctx context.Context, featureID string, o Outcome) (roadmap.Feature, error) {
	const op = "board.RecordOutcome"
	f, err := b.store.GetFeature(ctx, featureID)
	if err != nil {
		return roadmap.Feature{}, err
	}
	if !f.IsExperiment {
		return roadmap.Feature{}, apperr.New(apperr.CodeInvalidInput, op, "feature %s is not an experiment", featureID)
	}
	if o.PValue != nil && (*o.PValue < 0 || *o.PValue > 1) {
		return roadmap.Feature{}, apperr.New(apperr.CodeInvalidInput, op, "p-value %v is outside [0, 1]", *o.PValue)
	}

	meta := roadmap.ExperimentMeta{}
	if f.Experiment != nil {
		meta = *f.Experiment
	}
	if o.Lift != nil {
		meta.Lift = roadmap.Float(*o.Lift)
	}
	if o.PValue != nil {
		meta.PValue = roadmap.Float(*o.PValue)
	}
	if o.WinningVariant != nil {
		id, ok := variantID(f, *o.WinningVariant)
		if !ok {
			return roadmap.Feature{}, apperr.New(apperr.CodeInvalidInput, op, "feature %s has no variant %q", featureID, *o.WinningVariant)
		}
		meta.WinningVariant = id
	}

	return b.UpdateFeature(ctx, featureID, roadmap.FeaturePatch{Experiment: &meta})
}

// variantID resolves a bar id or variant name to the bar id. The empty
// string clears the winner.
func variantID(f roadmap.Feature, ref string) (string, bool) {
	if ref == "" {
		return "", true
	}
	for _, bar := range timeline.Decompose(f) {
		if !bar.IsVariant {
			continue
		}
		if bar.ID == ref || strings.EqualFold(bar.VariantName, ref) {
			return bar.ID, true
		}
	}
	return "", false
}
