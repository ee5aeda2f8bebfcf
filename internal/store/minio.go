package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

// errNoSuchKey marks a missing object independent of the client.
var errNoSuchKey = errors.New("no such key")

// objects is the slice of the object store API the backend needs.
type objects interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// minioObjects adapts a minio client and bucket to objects.
type minioObjects struct {
	client *minio.Client
	bucket string
}

func (m minioObjects) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateError(err)
	}
	defer func() {
		_ = obj.Close()
	}()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateError(err)
	}
	return data, nil
}

func (m minioObjects) Put(ctx context.Context, key string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return translateError(err)
}

func (m minioObjects) Remove(ctx context.Context, key string) error {
	return translateError(m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}))
}

func (m minioObjects) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	switch err = translateError(err); {
	case err == nil:
		return true, nil
	case errors.Is(err, errNoSuchKey):
		return false, nil
	default:
		return false, err
	}
}

func (m minioObjects) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, translateError(obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// translateError maps minio's missing-object responses onto errNoSuchKey.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return errNoSuchKey
	}
	return err
}

// ObjectStore implements Store with one JSON object per record under
// <prefix>/features/<id>.json and <prefix>/ideas/<id>.json.
type ObjectStore struct {
	mu     sync.Mutex
	objs   objects
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// OpenMinIO connects to the configured server and creates the bucket if it
// does not exist.
func OpenMinIO(ctx context.Context, cfg MinIOConfig, opts ...Option) (*ObjectStore, error) {
	const op = "store.OpenMinIO"
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, apperr.New(apperr.CodeInvalidConfig, op, "endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidConfig, op, "create client")
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, transport(err, op, "check bucket %s", cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, transport(err, op, "create bucket %s", cfg.Bucket)
		}
	}
	return newObjectStore(minioObjects{client: client, bucket: cfg.Bucket}, cfg.Prefix, opts...), nil
}

func newObjectStore(objs objects, prefix string, opts ...Option) *ObjectStore {
	o := buildOptions(BackendMinIO, opts)
	return &ObjectStore{
		objs:   objs,
		prefix: strings.Trim(prefix, "/"),
		now:    o.now,
		logger: o.logger,
	}
}

func (s *ObjectStore) key(kind, id string) string {
	return path.Join(s.prefix, kind, id+".json")
}

func (s *ObjectStore) dir(kind string) string {
	return path.Join(s.prefix, kind) + "/"
}

func (s *ObjectStore) read(ctx context.Context, op, kind, id string, v any) error {
	data, err := s.objs.Get(ctx, s.key(kind, id))
	if errors.Is(err, errNoSuchKey) {
		return apperr.NotFound(op, strings.TrimSuffix(kind, "s"), id)
	}
	if err != nil {
		return transport(err, op, "get %s/%s", kind, id)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, op, "decode "+kind+"/"+id)
	}
	return nil
}

func (s *ObjectStore) write(ctx context.Context, op, kind, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, op, "encode "+kind+"/"+id)
	}
	if err := s.objs.Put(ctx, s.key(kind, id), data); err != nil {
		return transport(err, op, "put %s/%s", kind, id)
	}
	return nil
}

func (s *ObjectStore) remove(ctx context.Context, op, kind, id string) error {
	ok, err := s.objs.Exists(ctx, s.key(kind, id))
	if err != nil {
		return transport(err, op, "stat %s/%s", kind, id)
	}
	if !ok {
		return apperr.NotFound(op, strings.TrimSuffix(kind, "s"), id)
	}
	if err := s.objs.Remove(ctx, s.key(kind, id)); err != nil {
		return transport(err, op, "remove %s/%s", kind, id)
	}
	return nil
}

func (s *ObjectStore) ids(ctx context.Context, op, kind string) ([]string, error) {
	keys, err := s.objs.List(ctx, s.dir(kind))
	if err != nil {
		return nil, transport(err, op, "list %s", kind)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasSuffix(k, ".json") {
			ids = append(ids, strings.TrimSuffix(path.Base(k), ".json"))
		}
	}
	return ids, nil
}

// CreateFeature implements Store.
func (s *ObjectStore) CreateFeature(ctx context.Context, f roadmap.Feature) (roadmap.Feature, error) {
	const op = "store.CreateFeature"
	f, err := prepareFeature(f, s.now())
	if err != nil {
		return roadmap.Feature{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok, err := s.objs.Exists(ctx, s.key("features", f.ID)); err != nil {
		return roadmap.Feature{}, transport(err, op, "stat features/%s", f.ID)
	} else if ok {
		return roadmap.Feature{}, conflict(op, "feature", f.ID)
	}
	if err := s.write(ctx, op, "features", f.ID, f); err != nil {
		return roadmap.Feature{}, err
	}
	s.logger.Debug("feature created", slog.String("id", f.ID))
	return f, nil
}

// GetFeature implements Store.
func (s *ObjectStore) GetFeature(ctx context.Context, id string) (roadmap.Feature, error) {
	var f roadmap.Feature
	err := s.read(ctx, "store.GetFeature", "features", id, &f)
	return f, err
}

// ListFeatures implements Store.
func (s *ObjectStore) ListFeatures(ctx context.Context) ([]roadmap.Feature, error) {
	const op = "store.ListFeatures"
	ids, err := s.ids(ctx, op, "features")
	if err != nil {
		return nil, err
	}
	out := make([]roadmap.Feature, 0, len(ids))
	for _, id := range ids {
		var f roadmap.Feature
		if err := s.read(ctx, op, "features", id, &f); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue // removed while listing
			}
			return nil, err
		}
		out = append(out, f)
	}
	sortFeatures(out)
	return out, nil
}

// UpdateFeature implements Store.
func (s *ObjectStore) UpdateFeature(ctx context.Context, id string, p roadmap.FeaturePatch) (roadmap.Feature, error) {
	const op = "store.UpdateFeature"
	s.mu.Lock()
	defer s.mu.Unlock()
	var f roadmap.Feature
	if err := s.read(ctx, op, "features", id, &f); err != nil {
		return roadmap.Feature{}, err
	}
	f, err := patchFeature(f, p, s.now())
	if err != nil {
		return roadmap.Feature{}, err
	}
	if err := s.write(ctx, op, "features", id, f); err != nil {
		return roadmap.Feature{}, err
	}
	return f, nil
}

// DeleteFeature implements Store.
func (s *ObjectStore) DeleteFeature(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(ctx, "store.DeleteFeature", "features", id)
}

// CreateIdea implements Store.
func (s *ObjectStore) CreateIdea(ctx context.Context, i roadmap.Idea) (roadmap.Idea, error) {
	const op = "store.CreateIdea"
	i, err := prepareIdea(i, s.now())
	if err != nil {
		return roadmap.Idea{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok, err := s.objs.Exists(ctx, s.key("ideas", i.ID)); err != nil {
		return roadmap.Idea{}, transport(err, op, "stat ideas/%s", i.ID)
	} else if ok {
		return roadmap.Idea{}, conflict(op, "idea", i.ID)
	}
	if err := s.write(ctx, op, "ideas", i.ID, i); err != nil {
		return roadmap.Idea{}, err
	}
	s.logger.Debug("idea created", slog.String("id", i.ID))
	return i, nil
}

// GetIdea implements Store.
func (s *ObjectStore) GetIdea(ctx context.Context, id string) (roadmap.Idea, error) {
	var i roadmap.Idea
	err := s.read(ctx, "store.GetIdea", "ideas", id, &i)
	return i, err
}

// ListIdeas implements Store.
func (s *ObjectStore) ListIdeas(ctx context.Context) ([]roadmap.Idea, error) {
	const op = "store.ListIdeas"
	ids, err := s.ids(ctx, op, "ideas")
	if err != nil {
		return nil, err
	}
	out := make([]roadmap.Idea, 0, len(ids))
	for _, id := range ids {
		var i roadmap.Idea
		if err := s.read(ctx, op, "ideas", id, &i); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, i)
	}
	sortIdeas(out)
	return out, nil
}

// UpdateIdea implements Store.
func (s *ObjectStore) UpdateIdea(ctx context.Context, id string, p roadmap.IdeaPatch) (roadmap.Idea, error) {
	const op = "store.UpdateIdea"
	s.mu.Lock()
	defer s.mu.Unlock()
	var i roadmap.Idea
	if err := s.read(ctx, op, "ideas", id, &i); err != nil {
		return roadmap.Idea{}, err
	}
	i, err := patchIdea(i, p, s.now())
	if err != nil {
		return roadmap.Idea{}, err
	}
	if err := s.write(ctx, op, "ideas", id, i); err != nil {
		return roadmap.Idea{}, err
	}
	return i, nil
}

// DeleteIdea implements Store.
func (s *ObjectStore) DeleteIdea(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(ctx, "store.DeleteIdea", "ideas", id)
}

// Close implements Store.
func (s *ObjectStore) Close() error {
	return nil
}
