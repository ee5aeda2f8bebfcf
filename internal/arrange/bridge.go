package arrange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/canvas"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/metrics"
)

// Board is the geometry the bridge reads and rewrites. *canvas.Controller
// satisfies it.
type Board interface {
	Items() []canvas.Item
	Move(id string, x, y float64, cluster string) (canvas.Geometry, bool)
	Restore(id string, g canvas.Geometry) bool
}

// Result reports what an arrangement did.
type Result struct {
	Criterion Criterion `json:"criterion"`
	Requested int       `json:"requested"`
	Returned  int       `json:"returned"`
	Applied   []string  `json:"applied"`
	Failed    []string  `json:"failed,omitempty"`
	Unknown   []string  `json:"unknown,omitempty"`
}

// Bridge runs one arrangement at a time against a board.
type Bridge struct {
	arranger  Arranger
	board     Board
	persister canvas.Persister
	timeout   time.Duration
	logger    *slog.Logger
	inFlight  atomic.Bool
}

// NewBridge wires an arranger to a board and the persister used for the
// resulting position writes. A zero timeout leaves the call unbounded.
func NewBridge(a Arranger, b Board, p canvas.Persister, timeout time.Duration, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		arranger:  a,
		board:     b,
		persister: p,
		timeout:   timeout,
		logger:    logger.With(slog.String("component", "arrange")),
	}
}

// InFlight reports whether an arrangement is running.
func (b *Bridge) InFlight() bool {
	return b.inFlight.Load()
}

// Summaries projects items onto the fields the services accept.
func Summaries(items []canvas.Item) []ItemSummary {
	out := make([]ItemSummary, 0, len(items))
	for _, it := range items {
		s := ItemSummary{ID: it.ID, Title: it.Title, Type: string(it.Kind)}
		switch {
		case it.Feature != nil:
			s.Stage = string(it.Feature.Stage)
			s.Priority = string(it.Feature.Priority)
			if !it.Feature.StartDate.IsZero() {
				s.StartDate = it.Feature.StartDate.Format("2006-01-02")
			}
		case it.Idea != nil:
			s.Theme = string(it.Idea.Theme)
			s.Impact = string(it.Idea.Impact)
		}
		out = append(out, s)
	}
	return out
}

// Arrange sends every board item to the arranger and applies the returned
// positions.
//
// A transport failure leaves the board untouched. Otherwise each returned
// item is moved and then persisted on its own; an item whose write fails
// goes back to its previous geometry while items already written keep
// theirs. Failed writes are reported together as one PartialApply error.
// Ids the board does not know are ignored. A call made while another is
// running returns ErrArrangementInFlight.
func (b *Bridge) Arrange(ctx context.Context, by Criterion) (Result, error) {
	const op = "arrange.Bridge.Arrange"
	if !b.inFlight.CompareAndSwap(false, true) {
		metrics.Arrangements.WithLabelValues("busy").Inc()
		return Result{}, apperr.ErrArrangementInFlight
	}
	defer b.inFlight.Store(false)

	items := b.board.Items()
	res := Result{Criterion: by, Requested: len(items)}

	ctx, span := otel.Tracer("growthlab/arrange").Start(ctx, op,
		trace.WithAttributes(
			attribute.String("criterion", string(by)),
			attribute.Int("items", len(items)),
		),
	)
	defer span.End()

	positions, err := b.request(ctx, Summaries(items), by)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "arrangement request failed")
		metrics.Arrangements.WithLabelValues("transport").Inc()
		b.logger.Warn("arrangement request failed", slog.String("error", err.Error()))
		if apperr.CodeOf(err) == apperr.CodeInternal {
			err = apperr.Wrap(err, apperr.CodeTransportFailure, op, "arrangement request failed")
		}
		return res, err
	}
	res.Returned = len(positions)

	kinds := make(map[string]canvas.Kind, len(items))
	for _, it := range items {
		kinds[it.ID] = it.Kind
	}

	var errs []error
	for _, p := range positions {
		kind, known := kinds[p.ID]
		if !known {
			res.Unknown = append(res.Unknown, p.ID)
			continue
		}
		prev, ok := b.board.Move(p.ID, p.X, p.Y, p.Cluster)
		if !ok {
			res.Unknown = append(res.Unknown, p.ID)
			continue
		}
		b.logger.Debug("moved", slog.String("item", p.ID), slog.Float64("x", p.X), slog.Float64("y", p.Y), slog.String("cluster", p.Cluster))

		if err := b.persister.PersistPosition(ctx, kind, p.ID, p.X, p.Y); err != nil {
			b.board.Restore(p.ID, prev)
			res.Failed = append(res.Failed, p.ID)
			errs = append(errs, fmt.Errorf("%s: %w", p.ID, err))
			continue
		}
		res.Applied = append(res.Applied, p.ID)
	}

	span.SetAttributes(
		attribute.Int("applied", len(res.Applied)),
		attribute.Int("failed", len(res.Failed)),
	)
	if len(errs) > 0 {
		err := apperr.Wrap(errors.Join(errs...), apperr.CodePartialApply, op,
			fmt.Sprintf("%d of %d position writes failed", len(res.Failed), len(res.Failed)+len(res.Applied)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "partial apply")
		metrics.Arrangements.WithLabelValues("partial").Inc()
		b.logger.Warn("arrangement partially applied", slog.Int("applied", len(res.Applied)), slog.Int("failed", len(res.Failed)))
		return res, err
	}

	metrics.Arrangements.WithLabelValues("applied").Inc()
	b.logger.Info("arrangement applied", slog.String("criterion", string(by)), slog.Int("applied", len(res.Applied)))
	return res, nil
}

func (b *Bridge) request(ctx context.Context, items []ItemSummary, by Criterion) ([]Position, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	timer := prometheus.NewTimer(metrics.ArrangementDuration)
	defer timer.ObserveDuration()
	return b.arranger.Arrange(ctx, items, by)
}
