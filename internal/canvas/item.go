// Package canvas holds the freeform board: the items placed on it, their
// seeded geometry and the pointer state machine that pans, zooms and drags
// them.
package canvas

import (
	"sort"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

// Kind says which entity a canvas item wraps.
type Kind string

const (
	KindFeature Kind = "feature"
	KindIdea    Kind = "idea"
)

// Geometry is the logical rectangle of an item. Cluster is the group label
// assigned by the last arrangement, empty until one runs.
type Geometry struct {
	X       float64 `json:"x" yaml:"x"`
	Y       float64 `json:"y" yaml:"y"`
	Width   float64 `json:"width" yaml:"width"`
	Height  float64 `json:"height" yaml:"height"`
	Cluster string  `json:"cluster,omitempty" yaml:"cluster,omitempty"`
}

// Contains reports whether the logical point (x, y) lies inside g.
func (g Geometry) Contains(x, y float64) bool {
	return x >= g.X && x <= g.X+g.Width && y >= g.Y && y <= g.Y+g.Height
}

// Item is one feature or idea with its geometry. Exactly one of Feature and
// Idea is set.
type Item struct {
	Kind     Kind             `json:"kind"`
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Feature  *roadmap.Feature `json:"feature,omitempty"`
	Idea     *roadmap.Idea    `json:"idea,omitempty"`
	Geometry Geometry         `json:"geometry"`
}

// Theme returns the idea's theme. Features have no theme.
func (it Item) Theme() roadmap.Theme {
	if it.Idea != nil {
		return it.Idea.Theme
	}
	return ""
}

// Size is a card size in logical units.
type Size struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// Layout configures seeding of items that were never placed.
type Layout struct {
	// FeatureCard is the size of a feature card.
	FeatureCard Size `yaml:"feature_card" json:"feature_card"`

	// IdeaCard is the size of an idea sticky note.
	IdeaCard Size `yaml:"idea_card" json:"idea_card"`

	// Columns is the number of grid columns used for unplaced items.
	Columns int `yaml:"columns" json:"columns"`

	// Spacing is the distance between grid cell origins.
	Spacing float64 `yaml:"spacing" json:"spacing"`

	// OriginX and OriginY are the logical position of the first grid cell.
	OriginX float64 `yaml:"origin_x" json:"origin_x"`
	OriginY float64 `yaml:"origin_y" json:"origin_y"`
}

// DefaultLayout is used when no layout is configured.
var DefaultLayout = Layout{
	FeatureCard: Size{Width: 240, Height: 120},
	IdeaCard:    Size{Width: 180, Height: 180},
	Columns:     4,
	Spacing:     280,
	OriginX:     80,
	OriginY:     80,
}

// Seed builds one item per feature and idea. Persisted coordinates are used
// as is. Items without them take the next free cell of a grid, in input
// order (features first), so the same input always seeds the same board.
func Seed(features []roadmap.Feature, ideas []roadmap.Idea, l Layout) []Item {
	l = l.withDefaults()
	items := make([]Item, 0, len(features)+len(ideas))
	cell := 0
	place := func(it Item, placed bool) {
		if !placed {
			it.Geometry.X, it.Geometry.Y = l.cell(cell)
			cell++
		}
		items = append(items, it)
	}
	for _, f := range features {
		place(FeatureItem(f, l))
	}
	for _, idea := range ideas {
		place(IdeaItem(idea, l))
	}
	return items
}

// FeatureItem wraps f in a feature card. placed is false when f has no
// persisted coordinates; the item is then at the origin until placed.
func FeatureItem(f roadmap.Feature, l Layout) (it Item, placed bool) {
	x, y, ok := f.Position()
	return Item{
		Kind:     KindFeature,
		ID:       f.ID,
		Title:    f.Title,
		Feature:  &f,
		Geometry: Geometry{X: x, Y: y, Width: l.FeatureCard.Width, Height: l.FeatureCard.Height},
	}, ok
}

// IdeaItem wraps i in an idea note. See FeatureItem for placed.
func IdeaItem(i roadmap.Idea, l Layout) (it Item, placed bool) {
	x, y, ok := i.Position()
	return Item{
		Kind:     KindIdea,
		ID:       i.ID,
		Title:    i.Title,
		Idea:     &i,
		Geometry: Geometry{X: x, Y: y, Width: l.IdeaCard.Width, Height: l.IdeaCard.Height},
	}, ok
}

func (l Layout) withDefaults() Layout {
	if l.Columns <= 0 {
		l.Columns = DefaultLayout.Columns
	}
	if l.Spacing <= 0 {
		l.Spacing = DefaultLayout.Spacing
	}
	return l
}

// cell returns the origin of grid cell n.
func (l Layout) cell(n int) (float64, float64) {
	col, row := n%l.Columns, n/l.Columns
	return l.OriginX + float64(col)*l.Spacing, l.OriginY + float64(row)*l.Spacing
}

// FreeCell returns the origin of the first grid cell no item sits on.
func FreeCell(items []Item, l Layout) (float64, float64) {
	l = l.withDefaults()
	taken := make(map[[2]float64]bool, len(items))
	for _, it := range items {
		taken[[2]float64{it.Geometry.X, it.Geometry.Y}] = true
	}
	for n := 0; ; n++ {
		x, y := l.cell(n)
		if !taken[[2]float64{x, y}] {
			return x, y
		}
	}
}

// ThemeFilter restricts which ideas are visible. An empty filter shows
// everything; features are never filtered. A filter belongs to the view
// that owns it.
type ThemeFilter struct {
	themes map[roadmap.Theme]struct{}
}

// NewThemeFilter returns a filter selecting themes.
func NewThemeFilter(themes ...roadmap.Theme) ThemeFilter {
	f := ThemeFilter{themes: make(map[roadmap.Theme]struct{}, len(themes))}
	for _, t := range themes {
		f.themes[t] = struct{}{}
	}
	return f
}

// Toggle adds or removes t and returns whether it is now selected.
func (f *ThemeFilter) Toggle(t roadmap.Theme) bool {
	if f.themes == nil {
		f.themes = make(map[roadmap.Theme]struct{})
	}
	if _, ok := f.themes[t]; ok {
		delete(f.themes, t)
		return false
	}
	f.themes[t] = struct{}{}
	return true
}

// Allows reports whether it passes the filter.
func (f ThemeFilter) Allows(it Item) bool {
	if len(f.themes) == 0 || it.Kind != KindIdea {
		return true
	}
	_, ok := f.themes[it.Theme()]
	return ok
}

// Themes returns the selected themes sorted by name.
func (f ThemeFilter) Themes() []roadmap.Theme {
	out := make([]roadmap.Theme, 0, len(f.themes))
	for t := range f.themes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
