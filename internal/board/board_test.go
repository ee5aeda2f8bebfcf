package board

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/arrange"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/canvas"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/store"
)

// flakyStore fails selected operations of an underlying store.
type flakyStore struct {
	store.Store
	failDeleteIdea bool
	failUpdateIDs  map[string]bool
}

func (s *flakyStore) DeleteIdea(ctx context.Context, id string) error {
	if s.failDeleteIdea {
		return apperr.New(apperr.CodeTransportFailure, "flaky.DeleteIdea", "connection reset")
	}
	return s.Store.DeleteIdea(ctx, id)
}

func (s *flakyStore) UpdateIdea(ctx context.Context, id string, p roadmap.IdeaPatch) (roadmap.Idea, error) {
	if s.failUpdateIDs[id] {
		return roadmap.Idea{}, errors.New("disk full")
	}
	return s.Store.UpdateIdea(ctx, id, p)
}

func inline(f func()) { f() }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newBoard(t *testing.T, s store.Store, opts ...Option) *Board {
	t.Helper()
	opts = append([]Option{
		WithDispatch(inline),
		WithClock(func() time.Time { return day("2025-06-01") }),
	}, opts...)
	b := New(s, DefaultSettings(), opts...)
	require.NoError(t, b.Load(context.Background()))
	return b
}

func TestBoard_DragPersistsPosition(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	f, err := mem.CreateFeature(ctx, roadmap.Feature{
		Title: "Pricing page", StartDate: day("2025-02-01"), EndDate: day("2025-03-01"),
		CanvasX: roadmap.Float(100), CanvasY: roadmap.Float(100),
	})
	require.NoError(t, err)
	b := newBoard(t, mem)

	c := b.Canvas()
	_, err = c.PointerDown(canvas.Point{X: 100, Y: 100})
	require.NoError(t, err)
	c.PointerMove(canvas.Point{X: 150, Y: 100})
	c.PointerUp(canvas.Point{X: 150, Y: 100})

	got, err := mem.GetFeature(ctx, f.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CanvasX)
	assert.Equal(t, 150.0, *got.CanvasX)
	assert.Equal(t, 100.0, *got.CanvasY)
	assert.Equal(t, f.StartDate, got.StartDate)
}

func TestBoard_CreatePlacesItem(t *testing.T) {
	ctx := context.Background()
	b := newBoard(t, store.NewMemory())
	assert.Empty(t, b.Canvas().Items())

	_, err := b.CreateIdea(ctx, roadmap.Idea{Title: "Referral credits"})
	require.NoError(t, err)
	items := b.Canvas().Items()
	require.Len(t, items, 1)
	assert.Equal(t, canvas.KindIdea, items[0].Kind)
	assert.Equal(t, canvas.DefaultLayout.OriginX, items[0].Geometry.X)
}

func TestBoard_RecordChangesKeepOtherGeometry(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	arranger := arrange.ArrangerFunc(func(_ context.Context, items []arrange.ItemSummary, _ arrange.Criterion) ([]arrange.Position, error) {
		out := make([]arrange.Position, 0, len(items))
		for _, it := range items {
			out = append(out, arrange.Position{ID: it.ID, X: 900, Y: 40, Cluster: "growth"})
		}
		return out, nil
	})
	b := newBoard(t, mem, WithArranger(arranger))

	idea, err := b.CreateIdea(ctx, roadmap.Idea{Title: "Referral credits"})
	require.NoError(t, err)
	seeded, ok := b.Canvas().Item(idea.ID)
	require.True(t, ok)

	f, err := b.CreateFeature(ctx, roadmap.Feature{Title: "Pricing page", StartDate: day("2025-02-01"), EndDate: day("2025-03-01")})
	require.NoError(t, err)
	got, _ := b.Canvas().Item(idea.ID)
	assert.Equal(t, seeded.Geometry, got.Geometry, "unrelated create does not move the idea")
	placed, _ := b.Canvas().Item(f.ID)
	assert.NotEqual(t, seeded.Geometry.X, placed.Geometry.X, "the feature takes a free cell")

	require.NoError(t, b.DeleteFeature(ctx, f.ID))
	_, ok = b.Canvas().Item(f.ID)
	assert.False(t, ok)

	_, err = b.Arrange(ctx, arrange.ByTheme)
	require.NoError(t, err)
	arranged, _ := b.Canvas().Item(idea.ID)
	require.Equal(t, "growth", arranged.Geometry.Cluster)

	_, err = b.CreateIdea(ctx, roadmap.Idea{Title: "Win-back email"})
	require.NoError(t, err)
	title := "Referral credits v2"
	_, err = b.UpdateIdea(ctx, idea.ID, roadmap.IdeaPatch{Title: &title})
	require.NoError(t, err)

	got, _ = b.Canvas().Item(idea.ID)
	assert.Equal(t, arranged.Geometry, got.Geometry, "geometry and cluster survive record changes")
	assert.Equal(t, title, got.Title)
}

func TestBoard_UpdateWithCoordinatesMovesItem(t *testing.T) {
	ctx := context.Background()
	b := newBoard(t, store.NewMemory())
	idea, err := b.CreateIdea(ctx, roadmap.Idea{Title: "Referral credits"})
	require.NoError(t, err)

	_, err = b.UpdateIdea(ctx, idea.ID, roadmap.IdeaPatch{CanvasX: roadmap.Float(12), CanvasY: roadmap.Float(34)})
	require.NoError(t, err)
	it, _ := b.Canvas().Item(idea.ID)
	assert.Equal(t, 12.0, it.Geometry.X)
	assert.Equal(t, 34.0, it.Geometry.Y)
}

func TestBoard_ConvertIdea(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	idea, err := mem.CreateIdea(ctx, roadmap.Idea{
		Title: "Annual plan discount", Impact: roadmap.ImpactHigh,
		CanvasX: roadmap.Float(40), CanvasY: roadmap.Float(60),
	})
	require.NoError(t, err)
	b := newBoard(t, mem)

	f, err := b.ConvertIdea(ctx, idea.ID, ConvertRequest{StartDate: day("2025-07-01"), EndDate: day("2025-09-30"), IsExperiment: true})
	require.NoError(t, err)
	assert.Equal(t, "Annual plan discount", f.Title)
	assert.Equal(t, roadmap.PriorityHigh, f.Priority)
	assert.Equal(t, roadmap.StagePlanning, f.Stage)
	assert.True(t, f.IsExperiment)
	require.NotNil(t, f.CanvasX)
	assert.Equal(t, 40.0, *f.CanvasX)

	_, err = mem.GetIdea(ctx, idea.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	items := b.Canvas().Items()
	require.Len(t, items, 1)
	assert.Equal(t, canvas.KindFeature, items[0].Kind)
}

func TestBoard_ConvertKeepsSeededPosition(t *testing.T) {
	ctx := context.Background()
	b := newBoard(t, store.NewMemory())
	_, err := b.CreateFeature(ctx, roadmap.Feature{Title: "Pricing page", StartDate: day("2025-02-01"), EndDate: day("2025-03-01")})
	require.NoError(t, err)
	idea, err := b.CreateIdea(ctx, roadmap.Idea{Title: "Loyalty tiers"})
	require.NoError(t, err)
	seeded, ok := b.Canvas().Item(idea.ID)
	require.True(t, ok)

	f, err := b.ConvertIdea(ctx, idea.ID, ConvertRequest{StartDate: day("2025-07-01"), EndDate: day("2025-08-01")})
	require.NoError(t, err)
	it, ok := b.Canvas().Item(f.ID)
	require.True(t, ok)
	assert.Equal(t, seeded.Geometry.X, it.Geometry.X)
	assert.Equal(t, seeded.Geometry.Y, it.Geometry.Y)
	assert.Equal(t, 2, b.Canvas().Len())
}

func TestBoard_ConvertIdeaRequiresDates(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	idea, err := mem.CreateIdea(ctx, roadmap.Idea{Title: "Loyalty tiers"})
	require.NoError(t, err)
	b := newBoard(t, mem)

	_, err = b.ConvertIdea(ctx, idea.ID, ConvertRequest{StartDate: day("2025-07-01")})
	assert.Equal(t, apperr.CodeValidationGap, apperr.CodeOf(err))

	features, err := mem.ListFeatures(ctx)
	require.NoError(t, err)
	assert.Empty(t, features, "no partial record")
	_, err = mem.GetIdea(ctx, idea.ID)
	assert.NoError(t, err)
}

func TestBoard_ConvertIdeaHalfAppliedAndCompensate(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	idea, err := mem.CreateIdea(ctx, roadmap.Idea{Title: "Loyalty tiers"})
	require.NoError(t, err)
	flaky := &flakyStore{Store: mem, failDeleteIdea: true}
	b := newBoard(t, flaky)

	_, err = b.ConvertIdea(ctx, idea.ID, ConvertRequest{StartDate: day("2025-07-01"), EndDate: day("2025-08-01")})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
	assert.True(t, apperr.HasCode(err, apperr.CodeTransportFailure))

	var cerr *ConversionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, idea.ID, cerr.IdeaID)

	features, err := mem.ListFeatures(ctx)
	require.NoError(t, err)
	require.Len(t, features, 1, "step one is not rolled back automatically")
	assert.Equal(t, cerr.FeatureID, features[0].ID)

	require.NoError(t, b.Compensate(ctx, cerr))
	features, err = mem.ListFeatures(ctx)
	require.NoError(t, err)
	assert.Empty(t, features)
	_, err = mem.GetIdea(ctx, idea.ID)
	assert.NoError(t, err, "the idea survives")

	assert.NoError(t, b.Compensate(ctx, cerr), "compensating twice is harmless")
}

func TestBoard_RecordOutcome(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	exp, err := mem.CreateFeature(ctx, roadmap.Feature{
		ID: "exp-1", Title: "Paywall copy", StartDate: day("2025-01-01"), EndDate: day("2025-03-01"),
		Priority: roadmap.PriorityMedium, IsExperiment: true,
		Experiment: &roadmap.ExperimentMeta{Hypothesis: "Shorter copy converts"},
	})
	require.NoError(t, err)
	plain, err := mem.CreateFeature(ctx, roadmap.Feature{Title: "Docs", StartDate: day("2025-01-01"), EndDate: day("2025-02-01")})
	require.NoError(t, err)
	b := newBoard(t, mem)

	lift, p, winner := 0.042, 0.03, "variant b"
	got, err := b.RecordOutcome(ctx, exp.ID, Outcome{Lift: &lift, PValue: &p, WinningVariant: &winner})
	require.NoError(t, err)
	require.NotNil(t, got.Experiment)
	assert.Equal(t, "Shorter copy converts", got.Experiment.Hypothesis)
	assert.Equal(t, 0.042, *got.Experiment.Lift)
	assert.Equal(t, "exp-1-variant-b", got.Experiment.WinningVariant)

	tests := []struct {
		name string
		id   string
		o    Outcome
	}{
		{"not an experiment", plain.ID, Outcome{Lift: &lift}},
		{"unknown variant", exp.ID, Outcome{WinningVariant: strPtr("Variant C")}},
		{"p-value out of range", exp.ID, Outcome{PValue: roadmap.Float(1.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.RecordOutcome(ctx, tt.id, tt.o)
			assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
		})
	}
}

func strPtr(s string) *string { return &s }

func TestBoard_Timeline(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := mem.CreateFeature(ctx, roadmap.Feature{
		Title: "Checkout test", StartDate: day("2025-03-01"), EndDate: day("2025-05-01"),
		Priority: roadmap.PriorityCritical, IsExperiment: true,
	})
	require.NoError(t, err)
	b := newBoard(t, mem)

	v, err := b.Timeline(ctx, TimelineQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2025, v.Year)
	require.Len(t, v.Lanes, 1)
	assert.Len(t, v.Lanes[0].Bars, 4)
	require.NotNil(t, v.Today)
}

func TestBoard_ArrangeEndToEnd(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	var ids []string
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		i, err := mem.CreateIdea(ctx, roadmap.Idea{Title: title, CanvasX: roadmap.Float(0), CanvasY: roadmap.Float(0)})
		require.NoError(t, err)
		ids = append(ids, i.ID)
	}
	flaky := &flakyStore{Store: mem, failUpdateIDs: map[string]bool{ids[1]: true}}
	arranger := arrange.ArrangerFunc(func(_ context.Context, items []arrange.ItemSummary, _ arrange.Criterion) ([]arrange.Position, error) {
		return []arrange.Position{
			{ID: ids[0], X: 10, Y: 10, Cluster: "x"},
			{ID: ids[1], X: 20, Y: 20, Cluster: "x"},
			{ID: ids[2], X: 30, Y: 30, Cluster: "x"},
		}, nil
	})
	b := newBoard(t, flaky, WithArranger(arranger))

	res, err := b.Arrange(ctx, arrange.ByTheme)
	assert.Equal(t, apperr.CodePartialApply, apperr.CodeOf(err))
	assert.Equal(t, []string{ids[0], ids[2]}, res.Applied)

	for i, want := range []float64{10, 0, 30, 0, 0} {
		got, err := mem.GetIdea(ctx, ids[i])
		require.NoError(t, err)
		assert.Equal(t, want, *got.CanvasX, "idea %d", i)

		it, ok := b.Canvas().Item(ids[i])
		require.True(t, ok)
		assert.Equal(t, want, it.Geometry.X, "canvas item %d", i)
	}
}

type staticInsights json.RawMessage

func (s staticInsights) Insights(_ context.Context, items []arrange.ItemSummary) (json.RawMessage, error) {
	return json.RawMessage(s), nil
}

func TestBoard_UnconfiguredServices(t *testing.T) {
	b := newBoard(t, store.NewMemory())
	_, err := b.Arrange(context.Background(), arrange.ByTheme)
	assert.Equal(t, apperr.CodeInvalidConfig, apperr.CodeOf(err))
	_, err = b.Insights(context.Background())
	assert.Equal(t, apperr.CodeInvalidConfig, apperr.CodeOf(err))

	b = newBoard(t, store.NewMemory(), WithInsighter(staticInsights(`{"ok":true}`)))
	raw, err := b.Insights(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
}
