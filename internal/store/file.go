package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

// SchemaVersion is the version written into every snapshot. Snapshots are
// readable when their version satisfies ^SchemaVersion.
const SchemaVersion = "1.0.0"

// Snapshot is the on-disk document of the file backend.
type Snapshot struct {
	SchemaVersion string            `json:"schema_version"`
	SavedAt       time.Time         `json:"saved_at"`
	Features      []roadmap.Feature `json:"features"`
	Ideas         []roadmap.Idea    `json:"ideas"`
}

// CompatibleSchema reports whether a snapshot written with version can be
// read by this build.
func CompatibleSchema(version string) (bool, error) {
	constraint, err := semver.NewConstraint("^" + SchemaVersion)
	if err != nil {
		return false, fmt.Errorf("invalid schema version: %w", err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid snapshot version %q: %w", version, err)
	}
	return constraint.Check(v), nil
}

// FileStore keeps the working set in memory and rewrites a JSON snapshot
// after every successful mutation. A failed write rolls the working set
// back so memory and disk never diverge.
type FileStore struct {
	*Memory

	wmu  sync.Mutex
	fs   billy.Filesystem
	path string
	now  func() time.Time
}

// OpenFile opens the snapshot at path on the OS filesystem.
func OpenFile(path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, apperr.New(apperr.CodeInvalidConfig, "store.OpenFile", "path is required")
	}
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	return NewFileStore(osfs.New(dir), name, opts...)
}

// NewFileStore opens the snapshot at path inside fsys. A missing snapshot
// starts an empty store.
func NewFileStore(fsys billy.Filesystem, path string, opts ...Option) (*FileStore, error) {
	o := buildOptions(BackendFile, opts)
	mem := NewMemory(opts...)
	mem.logger = o.logger

	s := &FileStore{Memory: mem, fs: fsys, path: path, now: o.now}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	const op = "store.FileStore.load"
	data, err := util.ReadFile(s.fs, s.path)
	if os.IsNotExist(err) {
		s.logger.Debug("no snapshot, starting empty", slog.String("path", s.path))
		return nil
	}
	if err != nil {
		return transport(err, op, "read %s", s.path)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return apperr.Wrap(err, apperr.CodeInvalidInput, op, "decode snapshot")
	}
	ok, err := CompatibleSchema(snap.SchemaVersion)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInvalidInput, op, "check schema version")
	}
	if !ok {
		return apperr.New(apperr.CodeInvalidInput, op, "snapshot schema %s is not compatible with %s", snap.SchemaVersion, SchemaVersion)
	}

	s.restore(snap.Features, snap.Ideas)
	s.logger.Debug("snapshot loaded", slog.Int("features", len(snap.Features)), slog.Int("ideas", len(snap.Ideas)))
	return nil
}

// save writes the snapshot to a temporary file and renames it into place.
func (s *FileStore) save() error {
	const op = "store.FileStore.save"
	fs, is := s.snapshot()
	data, err := json.MarshalIndent(Snapshot{
		SchemaVersion: SchemaVersion,
		SavedAt:       s.now().UTC(),
		Features:      fs,
		Ideas:         is,
	}, "", "  ")
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, op, "encode snapshot")
	}

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return transport(err, op, "mkdir %s", dir)
		}
	}
	tmp := s.path + ".tmp"
	if err := util.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return transport(err, op, "write %s", tmp)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return transport(err, op, "rename %s", tmp)
	}
	return nil
}

// mutate runs fn against the working set and persists the result. On any
// failure the working set is restored.
func (s *FileStore) mutate(fn func() error) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	fs, is := s.snapshot()
	if err := fn(); err != nil {
		return err
	}
	if err := s.save(); err != nil {
		s.restore(fs, is)
		s.logger.Warn("snapshot write failed, rolled back", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// CreateFeature implements Store.
func (s *FileStore) CreateFeature(ctx context.Context, f roadmap.Feature) (out roadmap.Feature, err error) {
	err = s.mutate(func() error {
		out, err = s.Memory.CreateFeature(ctx, f)
		return err
	})
	return out, err
}

// UpdateFeature implements Store.
func (s *FileStore) UpdateFeature(ctx context.Context, id string, p roadmap.FeaturePatch) (out roadmap.Feature, err error) {
	err = s.mutate(func() error {
		out, err = s.Memory.UpdateFeature(ctx, id, p)
		return err
	})
	return out, err
}

// DeleteFeature implements Store.
func (s *FileStore) DeleteFeature(ctx context.Context, id string) error {
	return s.mutate(func() error {
		return s.Memory.DeleteFeature(ctx, id)
	})
}

// CreateIdea implements Store.
func (s *FileStore) CreateIdea(ctx context.Context, i roadmap.Idea) (out roadmap.Idea, err error) {
	err = s.mutate(func() error {
		out, err = s.Memory.CreateIdea(ctx, i)
		return err
	})
	return out, err
}

// UpdateIdea implements Store.
func (s *FileStore) UpdateIdea(ctx context.Context, id string, p roadmap.IdeaPatch) (out roadmap.Idea, err error) {
	err = s.mutate(func() error {
		out, err = s.Memory.UpdateIdea(ctx, id, p)
		return err
	})
	return out, err
}

// DeleteIdea implements Store.
func (s *FileStore) DeleteIdea(ctx context.Context, id string) error {
	return s.mutate(func() error {
		return s.Memory.DeleteIdea(ctx, id)
	})
}
