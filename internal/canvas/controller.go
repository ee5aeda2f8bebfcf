package canvas

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
)

// State is the interaction state of a Controller.
type State int

const (
	StateIdle State = iota
	StatePanning
	StateDragging
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePanning:
		return "panning"
	case StateDragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Point is a pixel position (pointer events) or a logical position (item
// geometry) depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the current zoom factor and pan offset in pixels.
type Viewport struct {
	Zoom float64 `json:"zoom"`
	Pan  Point   `json:"pan"`
}

// ZoomBounds limits the zoom factor. Each zoom action moves by Step.
type ZoomBounds struct {
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Step float64 `yaml:"step" json:"step"`
}

// DefaultZoomBounds allows 25% to 200% in 10% steps.
var DefaultZoomBounds = ZoomBounds{Min: 0.25, Max: 2.0, Step: 0.1}

// Persister writes an item's final position. It is called once per
// finished drag.
type Persister interface {
	PersistPosition(ctx context.Context, kind Kind, id string, x, y float64) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, kind Kind, id string, x, y float64) error

// PersistPosition calls f.
func (f PersisterFunc) PersistPosition(ctx context.Context, kind Kind, id string, x, y float64) error {
	return f(ctx, kind, id, x, y)
}

// session is the active drag or pan. At most one exists at a time.
type session struct {
	state     State
	itemID    string
	grab      Point // pointer minus item origin, logical units
	origin    Point // pointer at pointer-down, pixels
	originPan Point
}

// Controller owns the canvas items and the viewport and turns pointer
// events into pan, zoom and drag updates. All methods are safe for
// concurrent use.
type Controller struct {
	mu        sync.Mutex
	items     []Item
	view      Viewport
	bounds    ZoomBounds
	filter    ThemeFilter
	sess      *session
	persister Persister
	layout    Layout
	closed    bool

	dispatch func(func())
	onError  func(error)
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithLayout sets the card sizes and grid used by Upsert. The default is
// DefaultLayout.
func WithLayout(l Layout) Option {
	return func(c *Controller) { c.layout = l }
}

// WithZoomBounds overrides DefaultZoomBounds.
func WithZoomBounds(b ZoomBounds) Option {
	return func(c *Controller) { c.bounds = b }
}

// WithDispatch sets how persistence calls are run. The default starts a
// goroutine so pointer handling never waits on storage.
func WithDispatch(d func(func())) Option {
	return func(c *Controller) { c.dispatch = d }
}

// WithErrorHandler registers a callback for failed position writes. It is
// called once per failure and never after Close.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Controller) { c.onError = fn }
}

// WithPersistTimeout bounds each position write.
func WithPersistTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// NewController returns an idle controller at zoom 1 holding items.
func NewController(items []Item, p Persister, opts ...Option) *Controller {
	c := &Controller{
		items:     append([]Item(nil), items...),
		view:      Viewport{Zoom: 1},
		bounds:    DefaultZoomBounds,
		persister: p,
		layout:    DefaultLayout,
		dispatch:  func(f func()) { go f() },
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "canvas"))
	return c
}

// ToLogical converts a pixel position to logical coordinates.
func (c *Controller) ToLogical(p Point) Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toLogical(p)
}

func (c *Controller) toLogical(p Point) Point {
	return Point{
		X: (p.X - c.view.Pan.X) / c.view.Zoom,
		Y: (p.Y - c.view.Pan.Y) / c.view.Zoom,
	}
}

// ToScreen converts a logical position to pixels.
func (c *Controller) ToScreen(p Point) Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Point{
		X: p.X*c.view.Zoom + c.view.Pan.X,
		Y: p.Y*c.view.Zoom + c.view.Pan.Y,
	}
}

// PointerDown starts a drag when p is over a visible item and a pan
// otherwise. The topmost item wins when items overlap. A pointer-down while
// a session is active changes nothing and returns ErrSessionActive.
func (c *Controller) PointerDown(p Point) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		return c.sess.state, apperr.ErrSessionActive
	}

	lp := c.toLogical(p)
	for i := len(c.items) - 1; i >= 0; i-- {
		it := c.items[i]
		if !c.filter.Allows(it) || !it.Geometry.Contains(lp.X, lp.Y) {
			continue
		}
		c.sess = &session{
			state:  StateDragging,
			itemID: it.ID,
			grab:   Point{X: lp.X - it.Geometry.X, Y: lp.Y - it.Geometry.Y},
		}
		c.logger.Debug("drag started", slog.String("item", it.ID), slog.Float64("grab_x", c.sess.grab.X), slog.Float64("grab_y", c.sess.grab.Y))
		return StateDragging, nil
	}

	c.sess = &session{state: StatePanning, origin: p, originPan: c.view.Pan}
	return StatePanning, nil
}

// PointerMove updates the pan offset or the dragged item. It never writes
// to the persister. Without an active session it does nothing.
func (c *Controller) PointerMove(p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.move(p)
}

func (c *Controller) move(p Point) {
	if c.sess == nil {
		return
	}
	switch c.sess.state {
	case StatePanning:
		c.view.Pan = Point{
			X: c.sess.originPan.X + p.X - c.sess.origin.X,
			Y: c.sess.originPan.Y + p.Y - c.sess.origin.Y,
		}
	case StateDragging:
		i := c.indexOf(c.sess.itemID)
		if i < 0 {
			return
		}
		lp := c.toLogical(p)
		c.items[i].Geometry.X = lp.X - c.sess.grab.X
		c.items[i].Geometry.Y = lp.Y - c.sess.grab.Y
	}
}

// PointerUp applies the final pointer position and ends the session. A
// finished drag issues exactly one position write; a pan issues none.
func (c *Controller) PointerUp(p Point) {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return
	}
	c.move(p)
	sess := c.sess
	c.sess = nil

	var it Item
	found := false
	if sess.state == StateDragging {
		if i := c.indexOf(sess.itemID); i >= 0 {
			it, found = c.items[i], true
		}
	}
	c.mu.Unlock()

	if found {
		c.persist(it)
	}
}

// Cancel drops the active session without persisting anything. A dragged
// item keeps its current local position.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess = nil
}

func (c *Controller) persist(it Item) {
	if c.persister == nil {
		return
	}
	x, y := it.Geometry.X, it.Geometry.Y
	c.logger.Debug("persisting position", slog.String("item", it.ID), slog.Float64("x", x), slog.Float64("y", y))

	c.dispatch(func() {
		ctx := context.Background()
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		err := c.persister.PersistPosition(ctx, it.Kind, it.ID, x, y)

		c.mu.Lock()
		closed, handler := c.closed, c.onError
		c.mu.Unlock()
		if closed {
			return
		}
		if err != nil {
			c.logger.Warn("position write failed", slog.String("item", it.ID), slog.String("error", err.Error()))
			if handler != nil {
				handler(err)
			}
		}
	})
}

// ZoomIn raises the zoom by one step up to the maximum and returns the new
// factor.
func (c *Controller) ZoomIn() float64 {
	return c.zoomBy(1)
}

// ZoomOut lowers the zoom by one step down to the minimum and returns the
// new factor.
func (c *Controller) ZoomOut() float64 {
	return c.zoomBy(-1)
}

func (c *Controller) zoomBy(dir float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	z := c.view.Zoom + dir*c.bounds.Step
	z = math.Round(z*1000) / 1000
	c.view.Zoom = math.Max(c.bounds.Min, math.Min(c.bounds.Max, z))
	return c.view.Zoom
}

// Reset returns to zoom 1 and the origin.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = Viewport{Zoom: 1}
}

// Viewport returns the current zoom and pan.
func (c *Controller) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// State returns the current interaction state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return StateIdle
	}
	return c.sess.state
}

// SetFilter replaces the theme filter. Filtered items cannot be grabbed.
func (c *Controller) SetFilter(f ThemeFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
}

// Filter returns the current theme filter.
func (c *Controller) Filter() ThemeFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Items returns a copy of every item.
func (c *Controller) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Item(nil), c.items...)
}

// Visible returns a copy of the items passing the theme filter.
func (c *Controller) Visible() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		if c.filter.Allows(it) {
			out = append(out, it)
		}
	}
	return out
}

// Item returns the item with id.
func (c *Controller) Item(id string) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		return c.items[i], true
	}
	return Item{}, false
}

// Move sets the position and cluster of id and returns the geometry it
// had before. It does not persist.
func (c *Controller) Move(id string, x, y float64, cluster string) (Geometry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return Geometry{}, false
	}
	prev := c.items[i].Geometry
	c.items[i].Geometry.X, c.items[i].Geometry.Y = x, y
	c.items[i].Geometry.Cluster = cluster
	return prev, true
}

// Restore puts back geometry saved by Move.
func (c *Controller) Restore(id string, g Geometry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.items[i].Geometry = g
	return true
}

// Load replaces every item. It is meant for the first load; later changes
// go through Upsert and Remove so placed items keep their geometry. An
// active drag on an item that no longer exists is dropped.
func (c *Controller) Load(items []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]Item(nil), items...)
	if c.sess != nil && c.sess.state == StateDragging && c.indexOf(c.sess.itemID) < 0 {
		c.sess = nil
	}
}

// Upsert adds it or, when an item with the same id exists, refreshes its
// entity and title while keeping its geometry and cluster. A new item
// without a persisted position takes the first free grid cell.
func (c *Controller) Upsert(it Item, placed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(it.ID); i >= 0 {
		it.Geometry = c.items[i].Geometry
		c.items[i] = it
		return
	}
	if !placed {
		it.Geometry.X, it.Geometry.Y = FreeCell(c.items, c.layout)
	}
	c.items = append(c.items, it)
}

// Remove drops the item with id and any drag on it. It reports whether the
// item existed.
func (c *Controller) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	if c.sess != nil && c.sess.state == StateDragging && c.sess.itemID == id {
		c.sess = nil
	}
	return true
}

// Len returns the number of items.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close ends the active session and discards the results of writes still
// in flight. The writes themselves run to completion, bounded only by the
// persist timeout. The controller remains usable for reads.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.sess = nil
}

func (c *Controller) indexOf(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}
