package board

import (
	"context"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

// Features lists every feature.
func (b *Board) Features(ctx context.Context) ([]roadmap.Feature, error) {
	return b.store.ListFeatures(ctx)
}

// Feature returns one feature.
func (b *Board) Feature(ctx context.Context, id string) (roadmap.Feature, error) {
	return b.store.GetFeature(ctx, id)
}

// CreateFeature stores f and places it on the canvas.
func (b *Board) CreateFeature(ctx context.Context, f roadmap.Feature) (roadmap.Feature, error) {
	f, err := b.store.CreateFeature(ctx, f)
	if err != nil {
		return roadmap.Feature{}, err
	}
	b.placeFeature(f)
	return f, nil
}

// UpdateFeature applies a partial update.
func (b *Board) UpdateFeature(ctx context.Context, id string, p roadmap.FeaturePatch) (roadmap.Feature, error) {
	f, err := b.store.UpdateFeature(ctx, id, p)
	if err != nil {
		return roadmap.Feature{}, err
	}
	b.placeFeature(f)
	if x, y, ok := f.Position(); ok && (p.CanvasX != nil || p.CanvasY != nil) {
		b.follow(id, x, y)
	}
	return f, nil
}

// DeleteFeature removes a feature.
func (b *Board) DeleteFeature(ctx context.Context, id string) error {
	if err := b.store.DeleteFeature(ctx, id); err != nil {
		return err
	}
	b.unplace(id)
	return nil
}

// Ideas lists every idea.
func (b *Board) Ideas(ctx context.Context) ([]roadmap.Idea, error) {
	return b.store.ListIdeas(ctx)
}

// Idea returns one idea.
func (b *Board) Idea(ctx context.Context, id string) (roadmap.Idea, error) {
	return b.store.GetIdea(ctx, id)
}

// CreateIdea stores i and places it on the canvas.
func (b *Board) CreateIdea(ctx context.Context, i roadmap.Idea) (roadmap.Idea, error) {
	i, err := b.store.CreateIdea(ctx, i)
	if err != nil {
		return roadmap.Idea{}, err
	}
	b.placeIdea(i)
	return i, nil
}

// UpdateIdea applies a partial update.
func (b *Board) UpdateIdea(ctx context.Context, id string, p roadmap.IdeaPatch) (roadmap.Idea, error) {
	i, err := b.store.UpdateIdea(ctx, id, p)
	if err != nil {
		return roadmap.Idea{}, err
	}
	b.placeIdea(i)
	if x, y, ok := i.Position(); ok && (p.CanvasX != nil || p.CanvasY != nil) {
		b.follow(id, x, y)
	}
	return i, nil
}

// DeleteIdea removes an idea.
func (b *Board) DeleteIdea(ctx context.Context, id string) error {
	if err := b.store.DeleteIdea(ctx, id); err != nil {
		return err
	}
	b.unplace(id)
	return nil
}

// follow moves an item to coordinates written through an explicit update.
// Its cluster is kept.
func (b *Board) follow(id string, x, y float64) {
	if it, ok := b.canvas.Item(id); ok {
		b.canvas.Move(id, x, y, it.Geometry.Cluster)
	}
}
