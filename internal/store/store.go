// Package store is the persistence collaborator for features and ideas.
//
// Four backends implement Store: an in-memory map, a JSON snapshot on a
// go-billy filesystem, SQLite and a MinIO bucket. All of them validate and
// normalize records the same way and map a missing id onto
// apperr.ErrNotFound.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

// Store creates, reads, partially updates and deletes features and ideas.
// Update applies only the non-nil fields of the patch.
type Store interface {
	CreateFeature(ctx context.Context, f roadmap.Feature) (roadmap.Feature, error)
	GetFeature(ctx context.Context, id string) (roadmap.Feature, error)
	ListFeatures(ctx context.Context) ([]roadmap.Feature, error)
	UpdateFeature(ctx context.Context, id string, p roadmap.FeaturePatch) (roadmap.Feature, error)
	DeleteFeature(ctx context.Context, id string) error

	CreateIdea(ctx context.Context, i roadmap.Idea) (roadmap.Idea, error)
	GetIdea(ctx context.Context, id string) (roadmap.Idea, error)
	ListIdeas(ctx context.Context) ([]roadmap.Idea, error)
	UpdateIdea(ctx context.Context, id string, p roadmap.IdeaPatch) (roadmap.Idea, error)
	DeleteIdea(ctx context.Context, id string) error

	Close() error
}

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMinIO  = "minio"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of memory, file, sqlite or minio.
	Backend string `yaml:"backend"`

	// Path is the snapshot file (file backend) or database file (sqlite).
	// ":memory:" opens an in-memory SQLite database.
	Path string `yaml:"path"`

	// MinIO configures the minio backend.
	MinIO MinIOConfig `yaml:"minio"`
}

// MinIOConfig holds the object store connection settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`   // host:port of the S3-compatible server
	AccessKey string `yaml:"access_key"` // Access key id
	SecretKey string `yaml:"secret_key"` // Secret access key
	Bucket    string `yaml:"bucket"`     // Bucket holding the objects, created if missing
	Prefix    string `yaml:"prefix"`     // Key prefix inside the bucket
	UseSSL    bool   `yaml:"use_ssl"`    // Connect over TLS
}

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(opts...), nil
	case BackendFile:
		return OpenFile(cfg.Path, opts...)
	case BackendSQLite:
		return OpenSQLite(cfg.Path, opts...)
	case BackendMinIO:
		return OpenMinIO(ctx, cfg.MinIO, opts...)
	}
	return nil, apperr.New(apperr.CodeInvalidConfig, "store.Open", "unknown backend %q", cfg.Backend)
}

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a backend.
type Option func(*options)

// WithClock sets the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(backend string, opts []Option) options {
	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(slog.String("component", "store"), slog.String("backend", backend))
	return o
}

// prepareFeature assigns an id and timestamps, normalizes and validates.
func prepareFeature(f roadmap.Feature, now time.Time) (roadmap.Feature, error) {
	if f.ID == "" {
		f.ID = roadmap.NewID()
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		return roadmap.Feature{}, err
	}
	f.CreatedAt = now.UTC()
	f.UpdatedAt = f.CreatedAt
	return cloneFeature(f), nil
}

func prepareIdea(i roadmap.Idea, now time.Time) (roadmap.Idea, error) {
	if i.ID == "" {
		i.ID = roadmap.NewID()
	}
	i.Normalize()
	if err := i.Validate(); err != nil {
		return roadmap.Idea{}, err
	}
	i.CreatedAt = now.UTC()
	i.UpdatedAt = i.CreatedAt
	return cloneIdea(i), nil
}

// patchFeature applies p to a copy of f and validates the result.
func patchFeature(f roadmap.Feature, p roadmap.FeaturePatch, now time.Time) (roadmap.Feature, error) {
	if err := p.Validate(); err != nil {
		return roadmap.Feature{}, err
	}
	f = cloneFeature(f)
	p.Apply(&f)
	f.Normalize()
	if err := f.Validate(); err != nil {
		return roadmap.Feature{}, err
	}
	f.UpdatedAt = now.UTC()
	return f, nil
}

func patchIdea(i roadmap.Idea, p roadmap.IdeaPatch, now time.Time) (roadmap.Idea, error) {
	if err := p.Validate(); err != nil {
		return roadmap.Idea{}, err
	}
	i = cloneIdea(i)
	p.Apply(&i)
	i.Normalize()
	if err := i.Validate(); err != nil {
		return roadmap.Idea{}, err
	}
	i.UpdatedAt = now.UTC()
	return i, nil
}

// cloneFeature copies the pointer fields so callers never share state
// with the store.
func cloneFeature(f roadmap.Feature) roadmap.Feature {
	if f.CanvasX != nil {
		f.CanvasX = roadmap.Float(*f.CanvasX)
	}
	if f.CanvasY != nil {
		f.CanvasY = roadmap.Float(*f.CanvasY)
	}
	if f.Experiment != nil {
		meta := *f.Experiment
		if meta.Lift != nil {
			meta.Lift = roadmap.Float(*meta.Lift)
		}
		if meta.PValue != nil {
			meta.PValue = roadmap.Float(*meta.PValue)
		}
		f.Experiment = &meta
	}
	return f
}

func cloneIdea(i roadmap.Idea) roadmap.Idea {
	if i.CanvasX != nil {
		i.CanvasX = roadmap.Float(*i.CanvasX)
	}
	if i.CanvasY != nil {
		i.CanvasY = roadmap.Float(*i.CanvasY)
	}
	return i
}

// sortFeatures orders by creation time, then id.
func sortFeatures(fs []roadmap.Feature) {
	sort.SliceStable(fs, func(a, b int) bool {
		if !fs[a].CreatedAt.Equal(fs[b].CreatedAt) {
			return fs[a].CreatedAt.Before(fs[b].CreatedAt)
		}
		return fs[a].ID < fs[b].ID
	})
}

func sortIdeas(is []roadmap.Idea) {
	sort.SliceStable(is, func(a, b int) bool {
		if !is[a].CreatedAt.Equal(is[b].CreatedAt) {
			return is[a].CreatedAt.Before(is[b].CreatedAt)
		}
		return is[a].ID < is[b].ID
	})
}

func conflict(op, kind, id string) error {
	return apperr.New(apperr.CodeConflict, op, "%s %q already exists", kind, id)
}

func transport(err error, op, format string, args ...any) error {
	return apperr.Wrap(err, apperr.CodeTransportFailure, op, fmt.Sprintf(format, args...))
}
