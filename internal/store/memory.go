package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

// Memory is a mutex-guarded in-memory Store. It is also the working set
// of the file backend.
type Memory struct {
	mu       sync.RWMutex
	features map[string]roadmap.Feature
	ideas    map[string]roadmap.Idea
	now      func() time.Time
	logger   *slog.Logger
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(BackendMemory, opts)
	return &Memory{
		features: make(map[string]roadmap.Feature),
		ideas:    make(map[string]roadmap.Idea),
		now:      o.now,
		logger:   o.logger,
	}
}

// CreateFeature implements Store.
func (m *Memory) CreateFeature(_ context.Context, f roadmap.Feature) (roadmap.Feature, error) {
	f, err := prepareFeature(f, m.now())
	if err != nil {
		return roadmap.Feature{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.features[f.ID]; exists {
		return roadmap.Feature{}, conflict("store.CreateFeature", "feature", f.ID)
	}
	m.features[f.ID] = f
	m.logger.Debug("feature created", slog.String("id", f.ID))
	return cloneFeature(f), nil
}

// GetFeature implements Store.
func (m *Memory) GetFeature(_ context.Context, id string) (roadmap.Feature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.features[id]
	if !ok {
		return roadmap.Feature{}, apperr.NotFound("store.GetFeature", "feature", id)
	}
	return cloneFeature(f), nil
}

// ListFeatures implements Store.
func (m *Memory) ListFeatures(_ context.Context) ([]roadmap.Feature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]roadmap.Feature, 0, len(m.features))
	for _, f := range m.features {
		out = append(out, cloneFeature(f))
	}
	sortFeatures(out)
	return out, nil
}

// UpdateFeature implements Store.
func (m *Memory) UpdateFeature(_ context.Context, id string, p roadmap.FeaturePatch) (roadmap.Feature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.features[id]
	if !ok {
		return roadmap.Feature{}, apperr.NotFound("store.UpdateFeature", "feature", id)
	}
	f, err := patchFeature(f, p, m.now())
	if err != nil {
		return roadmap.Feature{}, err
	}
	m.features[id] = f
	return cloneFeature(f), nil
}

// DeleteFeature implements Store.
func (m *Memory) DeleteFeature(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.features[id]; !ok {
		return apperr.NotFound("store.DeleteFeature", "feature", id)
	}
	delete(m.features, id)
	return nil
}

// CreateIdea implements Store.
func (m *Memory) CreateIdea(_ context.Context, i roadmap.Idea) (roadmap.Idea, error) {
	i, err := prepareIdea(i, m.now())
	if err != nil {
		return roadmap.Idea{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.ideas[i.ID]; exists {
		return roadmap.Idea{}, conflict("store.CreateIdea", "idea", i.ID)
	}
	m.ideas[i.ID] = i
	m.logger.Debug("idea created", slog.String("id", i.ID))
	return cloneIdea(i), nil
}

// GetIdea implements Store.
func (m *Memory) GetIdea(_ context.Context, id string) (roadmap.Idea, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.ideas[id]
	if !ok {
		return roadmap.Idea{}, apperr.NotFound("store.GetIdea", "idea", id)
	}
	return cloneIdea(i), nil
}

// ListIdeas implements Store.
func (m *Memory) ListIdeas(_ context.Context) ([]roadmap.Idea, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]roadmap.Idea, 0, len(m.ideas))
	for _, i := range m.ideas {
		out = append(out, cloneIdea(i))
	}
	sortIdeas(out)
	return out, nil
}

// UpdateIdea implements Store.
func (m *Memory) UpdateIdea(_ context.Context, id string, p roadmap.IdeaPatch) (roadmap.Idea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.ideas[id]
	if !ok {
		return roadmap.Idea{}, apperr.NotFound("store.UpdateIdea", "idea", id)
	}
	i, err := patchIdea(i, p, m.now())
	if err != nil {
		return roadmap.Idea{}, err
	}
	m.ideas[id] = i
	return cloneIdea(i), nil
}

// DeleteIdea implements Store.
func (m *Memory) DeleteIdea(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ideas[id]; !ok {
		return apperr.NotFound("store.DeleteIdea", "idea", id)
	}
	delete(m.ideas, id)
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

// snapshot returns every record in list order.
func (m *Memory) snapshot() ([]roadmap.Feature, []roadmap.Idea) {
	fs, _ := m.ListFeatures(context.Background())
	is, _ := m.ListIdeas(context.Background())
	return fs, is
}

// restore replaces the whole working set.
func (m *Memory) restore(fs []roadmap.Feature, is []roadmap.Idea) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = make(map[string]roadmap.Feature, len(fs))
	for _, f := range fs {
		m.features[f.ID] = cloneFeature(f)
	}
	m.ideas = make(map[string]roadmap.Idea, len(is))
	for _, i := range is {
		m.ideas[i.ID] = cloneIdea(i)
	}
}
