// Package board is the application service tying the store to the
// timeline and the canvas. It owns the canvas controller, keeps its items in
// step with record changes and routes drag and arrangement writes back to the store.
package board

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/arrange"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/canvas"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/metrics"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/store"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/timeline"
)

var tracer = otel.Tracer("growthlab/board")

// Settings are the geometry and timing knobs of a board.
type Settings struct {
	Scale          timeline.Scale
	Lanes          timeline.LaneMetrics
	DefaultZoom    timeline.ZoomLevel
	DefaultDensity timeline.Density
	Layout         canvas.Layout
	ZoomBounds     canvas.ZoomBounds
	PersistTimeout time.Duration
	ArrangeTimeout time.Duration
}

// DefaultSettings mirrors the package defaults of timeline and canvas.
func DefaultSettings() Settings {
	return Settings{
		Scale:          timeline.DefaultScale,
		Lanes:          timeline.DefaultLaneMetrics,
		DefaultZoom:    timeline.ZoomMedium,
		DefaultDensity: timeline.DensityExpanded,
		Layout:         canvas.DefaultLayout,
		ZoomBounds:     canvas.DefaultZoomBounds,
		PersistTimeout: 10 * time.Second,
		ArrangeTimeout: 60 * time.Second,
	}
}

// Insighter returns an opaque insights document for a set of items.
type Insighter interface {
	Insights(ctx context.Context, items []arrange.ItemSummary) (json.RawMessage, error)
}

// Board is safe for concurrent use.
type Board struct {
	store     store.Store
	settings  Settings
	canvas    *canvas.Controller
	bridge    *arrange.Bridge
	insighter Insighter
	now       func() time.Time
	logger    *slog.Logger
}

type options struct {
	arranger  arrange.Arranger
	insighter Insighter
	dispatch  func(func())
	onError   func(error)
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Board.
type Option func(*options)

// WithArranger sets the arrangement service.
func WithArranger(a arrange.Arranger) Option {
	return func(o *options) { o.arranger = a }
}

// WithInsighter sets the insights service.
func WithInsighter(i Insighter) Option {
	return func(o *options) { o.insighter = i }
}

// WithDispatch sets how drag writes are run. See canvas.WithDispatch.
func WithDispatch(d func(func())) Option {
	return func(o *options) { o.dispatch = d }
}

// WithWriteErrorHandler is called once per failed drag write.
func WithWriteErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

// WithClock sets the clock used for the today marker.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a board over s. Call Load before serving canvas requests.
func New(s store.Store, settings Settings, opts ...Option) *Board {
	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	b := &Board{
		store:     s,
		settings:  settings,
		insighter: o.insighter,
		now:       o.now,
		logger:    o.logger.With(slog.String("component", "board")),
	}

	copts := []canvas.Option{
		canvas.WithLogger(o.logger),
		canvas.WithLayout(settings.Layout),
		canvas.WithZoomBounds(settings.ZoomBounds),
		canvas.WithPersistTimeout(settings.PersistTimeout),
	}
	if o.dispatch != nil {
		copts = append(copts, canvas.WithDispatch(o.dispatch))
	}
	if o.onError != nil {
		copts = append(copts, canvas.WithErrorHandler(o.onError))
	}
	b.canvas = canvas.NewController(nil, b, copts...)

	if o.arranger != nil {
		b.bridge = arrange.NewBridge(o.arranger, b.canvas, b, settings.ArrangeTimeout, o.logger)
	}
	return b
}

// Canvas returns the canvas controller.
func (b *Board) Canvas() *canvas.Controller {
	return b.canvas
}

// Load reads every record and seeds the canvas. Later record changes update
// single items and never move the others.
func (b *Board) Load(ctx context.Context) error {
	features, err := b.store.ListFeatures(ctx)
	if err != nil {
		return err
	}
	ideas, err := b.store.ListIdeas(ctx)
	if err != nil {
		return err
	}
	items := canvas.Seed(features, ideas, b.settings.Layout)
	b.canvas.Load(items)
	metrics.CanvasItems.Set(float64(len(items)))
	b.logger.Debug("board loaded", slog.Int("features", len(features)), slog.Int("ideas", len(ideas)))
	return nil
}

// placeFeature adds f to the canvas or refreshes the card it already has.
// Other items are left where they are.
func (b *Board) placeFeature(f roadmap.Feature) {
	b.canvas.Upsert(canvas.FeatureItem(f, b.settings.Layout))
	metrics.CanvasItems.Set(float64(b.canvas.Len()))
}

func (b *Board) placeIdea(i roadmap.Idea) {
	b.canvas.Upsert(canvas.IdeaItem(i, b.settings.Layout))
	metrics.CanvasItems.Set(float64(b.canvas.Len()))
}

func (b *Board) unplace(id string) {
	b.canvas.Remove(id)
	metrics.CanvasItems.Set(float64(b.canvas.Len()))
}

// PersistPosition implements canvas.Persister by writing only the canvas
// coordinates of the item.
func (b *Board) PersistPosition(ctx context.Context, kind canvas.Kind, id string, x, y float64) error {
	ctx, span := tracer.Start(ctx, "board.PersistPosition",
		trace.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.String("id", id),
		),
	)
	defer span.End()

	timer := prometheus.NewTimer(metrics.StoreOps.WithLabelValues("persist_position"))
	defer timer.ObserveDuration()

	var err error
	switch kind {
	case canvas.KindFeature:
		_, err = b.store.UpdateFeature(ctx, id, roadmap.FeaturePosition(x, y))
	case canvas.KindIdea:
		_, err = b.store.UpdateIdea(ctx, id, roadmap.IdeaPosition(x, y))
	default:
		err = apperr.New(apperr.CodeInvalidInput, "board.PersistPosition", "unknown item kind %q", kind)
	}
	metrics.PositionWrites.WithLabelValues(string(kind), metrics.Result(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// TimelineQuery selects the timeline to build. Zero values fall back to the
// board settings.
type TimelineQuery struct {
	Year     int
	Zoom     timeline.ZoomLevel
	Density  timeline.Density
	Expanded []string
}

// Timeline builds the timeline view of every feature.
func (b *Board) Timeline(ctx context.Context, q TimelineQuery) (timeline.View, error) {
	features, err := b.store.ListFeatures(ctx)
	if err != nil {
		return timeline.View{}, err
	}
	return b.BuildTimeline(features, q), nil
}

// BuildTimeline lays out features with the board settings.
func (b *Board) BuildTimeline(features []roadmap.Feature, q TimelineQuery) timeline.View {
	zoom, density := q.Zoom, q.Density
	if zoom == "" {
		zoom = b.settings.DefaultZoom
	}
	if density == "" {
		density = b.settings.DefaultDensity
	}
	return timeline.Build(features, timeline.Options{
		Year:     q.Year,
		Zoom:     zoom,
		Density:  density,
		Scale:    b.settings.Scale,
		Lanes:    b.settings.Lanes,
		Expanded: timeline.NewExpandedRows(q.Expanded...),
		Today:    b.now(),
	})
}

// Arrange runs the arrangement service over the canvas.
func (b *Board) Arrange(ctx context.Context, by arrange.Criterion) (arrange.Result, error) {
	if b.bridge == nil {
		return arrange.Result{}, apperr.New(apperr.CodeInvalidConfig, "board.Arrange", "arrangement service is not configured")
	}
	return b.bridge.Arrange(ctx, by)
}

// Insights asks the insights service about the visible canvas items.
func (b *Board) Insights(ctx context.Context) (json.RawMessage, error) {
	if b.insighter == nil {
		return nil, apperr.New(apperr.CodeInvalidConfig, "board.Insights", "insights service is not configured")
	}
	return b.insighter.Insights(ctx, arrange.Summaries(b.canvas.Visible()))
}

// Close discards in-flight drag results and closes the store.
func (b *Board) Close() error {
	b.canvas.Close()
	return b.store.Close()
}
