package canvas

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

type write struct {
	Kind Kind
	ID   string
	X, Y float64
}

type recorder struct {
	mu     sync.Mutex
	writes []write
	err    error
}

func (r *recorder) PersistPosition(_ context.Context, kind Kind, id string, x, y float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, write{kind, id, x, y})
	return r.err
}

func (r *recorder) calls() []write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]write(nil), r.writes...)
}

func inline(f func()) { f() }

func board() []Item {
	return []Item{
		{Kind: KindFeature, ID: "f1", Geometry: Geometry{X: 100, Y: 100, Width: 200, Height: 100}},
		{Kind: KindIdea, ID: "i1", Idea: &roadmap.Idea{ID: "i1", Theme: roadmap.ThemeGrowth}, Geometry: Geometry{X: 500, Y: 500, Width: 100, Height: 100}},
	}
}

func TestController_DragRoundTrip(t *testing.T) {
	rec := &recorder{}
	c := NewController(board(), rec, WithDispatch(inline))

	state, err := c.PointerDown(Point{X: 100, Y: 100})
	require.NoError(t, err)
	assert.Equal(t, StateDragging, state)

	c.PointerMove(Point{X: 120, Y: 100})
	c.PointerMove(Point{X: 150, Y: 100})
	assert.Empty(t, rec.calls(), "moves never persist")

	c.PointerUp(Point{X: 150, Y: 100})
	assert.Equal(t, []write{{KindFeature, "f1", 150, 100}}, rec.calls())
	assert.Equal(t, StateIdle, c.State())

	it, ok := c.Item("f1")
	require.True(t, ok)
	assert.Equal(t, 150.0, it.Geometry.X)
	assert.Equal(t, 100.0, it.Geometry.Y)
}

func TestController_DragKeepsGrabOffset(t *testing.T) {
	rec := &recorder{}
	c := NewController(board(), rec, WithDispatch(inline))

	_, err := c.PointerDown(Point{X: 180, Y: 140})
	require.NoError(t, err)
	c.PointerUp(Point{X: 230, Y: 140})

	assert.Equal(t, []write{{KindFeature, "f1", 150, 100}}, rec.calls())
}

func TestController_DragUnderZoomAndPan(t *testing.T) {
	rec := &recorder{}
	c := NewController(board(), rec, WithDispatch(inline))

	for i := 0; i < 10; i++ {
		c.ZoomIn()
	}
	require.Equal(t, 2.0, c.Viewport().Zoom)

	// pan by (10, 20) first
	_, err := c.PointerDown(Point{X: 0, Y: 0})
	require.NoError(t, err)
	c.PointerUp(Point{X: 10, Y: 20})
	assert.Equal(t, Point{X: 10, Y: 20}, c.Viewport().Pan)
	assert.Empty(t, rec.calls(), "pans never persist")

	// item origin (100,100) is at pixel (210,220)
	assert.Equal(t, Point{X: 210, Y: 220}, c.ToScreen(Point{X: 100, Y: 100}))
	state, err := c.PointerDown(Point{X: 210, Y: 220})
	require.NoError(t, err)
	require.Equal(t, StateDragging, state)
	c.PointerUp(Point{X: 310, Y: 220})

	assert.Equal(t, []write{{KindFeature, "f1", 150, 100}}, rec.calls())
}

func TestController_PointerDownDuringSession(t *testing.T) {
	rec := &recorder{}
	c := NewController(board(), rec, WithDispatch(inline))

	_, err := c.PointerDown(Point{X: 0, Y: 0})
	require.NoError(t, err)

	state, err := c.PointerDown(Point{X: 120, Y: 120})
	assert.ErrorIs(t, err, apperr.ErrSessionActive)
	assert.Equal(t, StatePanning, state)
	assert.Equal(t, StatePanning, c.State())

	c.PointerUp(Point{X: 5, Y: 5})
	assert.Empty(t, rec.calls())
}

func TestController_ZoomBounds(t *testing.T) {
	c := NewController(nil, nil)

	for i := 0; i < 100; i++ {
		z := c.ZoomIn()
		assert.LessOrEqual(t, z, DefaultZoomBounds.Max)
	}
	assert.Equal(t, DefaultZoomBounds.Max, c.Viewport().Zoom)

	for i := 0; i < 100; i++ {
		z := c.ZoomOut()
		assert.GreaterOrEqual(t, z, DefaultZoomBounds.Min)
	}
	assert.Equal(t, DefaultZoomBounds.Min, c.Viewport().Zoom)

	c.Reset()
	assert.Equal(t, Viewport{Zoom: 1}, c.Viewport())
}

func TestController_ZoomSteps(t *testing.T) {
	c := NewController(nil, nil, WithZoomBounds(ZoomBounds{Min: 0.5, Max: 1.5, Step: 0.1}))
	assert.Equal(t, 1.1, c.ZoomIn())
	assert.Equal(t, 1.2, c.ZoomIn())
	assert.Equal(t, 1.1, c.ZoomOut())
}

func TestController_FilteredItemsCannotBeGrabbed(t *testing.T) {
	rec := &recorder{}
	c := NewController(board(), rec, WithDispatch(inline))
	c.SetFilter(NewThemeFilter(roadmap.ThemeRetention))

	state, err := c.PointerDown(Point{X: 550, Y: 550})
	require.NoError(t, err)
	assert.Equal(t, StatePanning, state)
	c.Cancel()

	assert.Len(t, c.Visible(), 1)
	assert.Len(t, c.Items(), 2)
}

func TestController_PersistFailureReported(t *testing.T) {
	rec := &recorder{err: errors.New("boom")}
	var got []error
	c := NewController(board(), rec, WithDispatch(inline), WithErrorHandler(func(err error) { got = append(got, err) }))

	_, err := c.PointerDown(Point{X: 550, Y: 550})
	require.NoError(t, err)
	c.PointerUp(Point{X: 560, Y: 560})

	require.Len(t, got, 1)
	assert.EqualError(t, got[0], "boom")
	assert.Equal(t, []write{{KindIdea, "i1", 510, 510}}, rec.calls())
}

func TestController_CloseDropsLateResults(t *testing.T) {
	rec := &recorder{err: errors.New("late")}
	var pending []func()
	var reported int
	c := NewController(board(), rec,
		WithDispatch(func(f func()) { pending = append(pending, f) }),
		WithErrorHandler(func(error) { reported++ }),
	)

	_, err := c.PointerDown(Point{X: 100, Y: 100})
	require.NoError(t, err)
	c.PointerUp(Point{X: 110, Y: 100})
	require.Len(t, pending, 1)

	c.Close()
	pending[0]()

	assert.Len(t, rec.calls(), 1)
	assert.Zero(t, reported)
}

func TestController_CloseLetsWritesFinish(t *testing.T) {
	var pending []func()
	var ctxErr error
	var stored []write
	p := PersisterFunc(func(ctx context.Context, kind Kind, id string, x, y float64) error {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		stored = append(stored, write{kind, id, x, y})
		return nil
	})
	c := NewController(board(), p, WithDispatch(func(f func()) { pending = append(pending, f) }))

	_, err := c.PointerDown(Point{X: 100, Y: 100})
	require.NoError(t, err)
	c.PointerUp(Point{X: 130, Y: 100})
	require.Len(t, pending, 1)

	c.Close()
	pending[0]()

	assert.NoError(t, ctxErr)
	assert.Equal(t, []write{{KindFeature, "f1", 130, 100}}, stored)
}

func TestController_Upsert(t *testing.T) {
	c := NewController(board(), nil, WithLayout(Layout{Columns: 2, Spacing: 100}))
	c.Move("i1", 500, 500, "growth")

	// Refreshing an existing item keeps its geometry and cluster.
	c.Upsert(Item{Kind: KindIdea, ID: "i1", Title: "Renamed", Idea: &roadmap.Idea{ID: "i1"}}, false)
	it, ok := c.Item("i1")
	require.True(t, ok)
	assert.Equal(t, "Renamed", it.Title)
	assert.Equal(t, Geometry{X: 500, Y: 500, Width: 100, Height: 100, Cluster: "growth"}, it.Geometry)

	c.Upsert(Item{Kind: KindIdea, ID: "i2", Geometry: Geometry{X: 7, Y: 8}}, true)
	it, _ = c.Item("i2")
	assert.Equal(t, 7.0, it.Geometry.X)

	c.Upsert(Item{Kind: KindIdea, ID: "i3"}, false)
	it, _ = c.Item("i3")
	assert.Equal(t, 0.0, it.Geometry.X)
	assert.Equal(t, 0.0, it.Geometry.Y)

	c.Upsert(Item{Kind: KindIdea, ID: "i4"}, false)
	it, _ = c.Item("i4")
	assert.Equal(t, 100.0, it.Geometry.X, "next free cell")

	f1, _ := c.Item("f1")
	assert.Equal(t, 100.0, f1.Geometry.X, "others stay put")
	assert.Equal(t, 5, c.Len())
}

func TestController_Remove(t *testing.T) {
	c := NewController(board(), nil)
	_, err := c.PointerDown(Point{X: 100, Y: 100})
	require.NoError(t, err)

	assert.True(t, c.Remove("f1"))
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Remove("f1"))

	it, ok := c.Item("i1")
	require.True(t, ok)
	assert.Equal(t, 500.0, it.Geometry.X)
}

func TestController_MoveAndRestore(t *testing.T) {
	c := NewController(board(), nil)

	prev, ok := c.Move("f1", 10, 20, "growth")
	require.True(t, ok)
	assert.Equal(t, 100.0, prev.X)

	it, _ := c.Item("f1")
	assert.Equal(t, Geometry{X: 10, Y: 20, Width: 200, Height: 100, Cluster: "growth"}, it.Geometry)

	assert.True(t, c.Restore("f1", prev))
	it, _ = c.Item("f1")
	assert.Equal(t, prev, it.Geometry)

	_, ok = c.Move("missing", 0, 0, "")
	assert.False(t, ok)
}

func TestController_LoadDropsStaleDrag(t *testing.T) {
	c := NewController(board(), nil)
	_, err := c.PointerDown(Point{X: 100, Y: 100})
	require.NoError(t, err)

	c.Load(board()[1:])
	assert.Equal(t, StateIdle, c.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "panning", StatePanning.String())
	assert.Equal(t, "dragging", StateDragging.String())
}
