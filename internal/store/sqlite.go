package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/roadmap"
)

const dateLayout = "2006-01-02"

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// OpenSQLite opens or creates the database at path. ":memory:" gives a
// private in-memory database.
func OpenSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	const op = "store.OpenSQLite"
	if path == "" {
		return nil, apperr.New(apperr.CodeInvalidConfig, op, "path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, transport(err, op, "create database directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, transport(err, op, "open database")
	}
	// one connection keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	o := buildOptions(BackendSQLite, opts)
	s := &SQLiteStore{db: db, now: o.now, logger: o.logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, transport(err, op, "init schema")
	}
	return s, nil
}

// initSchema creates the tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS features (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		stage TEXT NOT NULL,
		priority TEXT NOT NULL,
		team TEXT NOT NULL DEFAULT '',
		canvas_x REAL,
		canvas_y REAL,
		is_experiment INTEGER NOT NULL DEFAULT 0,
		experiment TEXT,                    -- JSON, NULL for plain features
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ideas (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		theme TEXT NOT NULL DEFAULT '',
		impact TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		canvas_x REAL,
		canvas_y REAL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_features_created ON features(created_at);
	CREATE INDEX IF NOT EXISTS idx_ideas_created ON ideas(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const featureColumns = `id, title, description, start_date, end_date, stage, priority, team,
	canvas_x, canvas_y, is_experiment, experiment, created_at, updated_at`

const ideaColumns = `id, title, description, theme, impact, color, canvas_x, canvas_y, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanFeature(row scanner) (roadmap.Feature, error) {
	var (
		f                roadmap.Feature
		start, end       string
		created, updated string
		canvasX, canvasY sql.NullFloat64
		experiment       sql.NullString
		isExperiment     int
	)
	err := row.Scan(&f.ID, &f.Title, &f.Description, &start, &end, &f.Stage, &f.Priority, &f.Team,
		&canvasX, &canvasY, &isExperiment, &experiment, &created, &updated)
	if err != nil {
		return roadmap.Feature{}, err
	}
	if f.StartDate, err = time.Parse(dateLayout, start); err != nil {
		return roadmap.Feature{}, fmt.Errorf("parse start_date: %w", err)
	}
	if f.EndDate, err = time.Parse(dateLayout, end); err != nil {
		return roadmap.Feature{}, fmt.Errorf("parse end_date: %w", err)
	}
	f.CanvasX = nullFloat(canvasX)
	f.CanvasY = nullFloat(canvasY)
	f.IsExperiment = isExperiment != 0
	if experiment.Valid {
		var meta roadmap.ExperimentMeta
		if err := json.Unmarshal([]byte(experiment.String), &meta); err != nil {
			return roadmap.Feature{}, fmt.Errorf("decode experiment: %w", err)
		}
		f.Experiment = &meta
	}
	f.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	f.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return f, nil
}

func scanIdea(row scanner) (roadmap.Idea, error) {
	var (
		i                roadmap.Idea
		created, updated string
		canvasX, canvasY sql.NullFloat64
	)
	err := row.Scan(&i.ID, &i.Title, &i.Description, &i.Theme, &i.Impact, &i.Color,
		&canvasX, &canvasY, &created, &updated)
	if err != nil {
		return roadmap.Idea{}, err
	}
	i.CanvasX = nullFloat(canvasX)
	i.CanvasY = nullFloat(canvasY)
	i.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	i.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return i, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return roadmap.Float(v.Float64)
}

func floatArg(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func experimentArg(meta *roadmap.ExperimentMeta) (any, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}

// stampLayout has fixed-width fractions so stored timestamps sort as text.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func stamp(t time.Time) string {
	return t.UTC().Format(stampLayout)
}

// CreateFeature implements Store.
func (s *SQLiteStore) CreateFeature(ctx context.Context, f roadmap.Feature) (roadmap.Feature, error) {
	const op = "store.CreateFeature"
	f, err := prepareFeature(f, s.now())
	if err != nil {
		return roadmap.Feature{}, err
	}
	if _, err := s.GetFeature(ctx, f.ID); err == nil {
		return roadmap.Feature{}, conflict(op, "feature", f.ID)
	}
	exp, err := experimentArg(f.Experiment)
	if err != nil {
		return roadmap.Feature{}, apperr.Wrap(err, apperr.CodeInternal, op, "encode experiment")
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO features (`+featureColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Title, f.Description, f.StartDate.Format(dateLayout), f.EndDate.Format(dateLayout),
		f.Stage, f.Priority, f.Team, floatArg(f.CanvasX), floatArg(f.CanvasY),
		boolArg(f.IsExperiment), exp, stamp(f.CreatedAt), stamp(f.UpdatedAt))
	if err != nil {
		return roadmap.Feature{}, transport(err, op, "insert feature %s", f.ID)
	}
	s.logger.Debug("feature created", slog.String("id", f.ID))
	return f, nil
}

// GetFeature implements Store.
func (s *SQLiteStore) GetFeature(ctx context.Context, id string) (roadmap.Feature, error) {
	const op = "store.GetFeature"
	row := s.db.QueryRowContext(ctx, `SELECT `+featureColumns+` FROM features WHERE id = ?`, id)
	f, err := scanFeature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return roadmap.Feature{}, apperr.NotFound(op, "feature", id)
	}
	if err != nil {
		return roadmap.Feature{}, transport(err, op, "select feature %s", id)
	}
	return f, nil
}

// ListFeatures implements Store.
func (s *SQLiteStore) ListFeatures(ctx context.Context) ([]roadmap.Feature, error) {
	const op = "store.ListFeatures"
	rows, err := s.db.QueryContext(ctx, `SELECT `+featureColumns+` FROM features ORDER BY created_at, id`)
	if err != nil {
		return nil, transport(err, op, "select features")
	}
	defer rows.Close()

	var out []roadmap.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, transport(err, op, "scan feature")
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, transport(err, op, "iterate features")
	}
	return out, nil
}

// UpdateFeature implements Store. The read and the write share a
// transaction so concurrent partial writes never clobber each other.
func (s *SQLiteStore) UpdateFeature(ctx context.Context, id string, p roadmap.FeaturePatch) (roadmap.Feature, error) {
	const op = "store.UpdateFeature"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return roadmap.Feature{}, transport(err, op, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	f, err := scanFeature(tx.QueryRowContext(ctx, `SELECT `+featureColumns+` FROM features WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return roadmap.Feature{}, apperr.NotFound(op, "feature", id)
	}
	if err != nil {
		return roadmap.Feature{}, transport(err, op, "select feature %s", id)
	}
	f, err = patchFeature(f, p, s.now())
	if err != nil {
		return roadmap.Feature{}, err
	}
	exp, err := experimentArg(f.Experiment)
	if err != nil {
		return roadmap.Feature{}, apperr.Wrap(err, apperr.CodeInternal, op, "encode experiment")
	}

	_, err = tx.ExecContext(ctx, `UPDATE features SET title = ?, description = ?, start_date = ?, end_date = ?,
		stage = ?, priority = ?, team = ?, canvas_x = ?, canvas_y = ?, is_experiment = ?, experiment = ?,
		updated_at = ? WHERE id = ?`,
		f.Title, f.Description, f.StartDate.Format(dateLayout), f.EndDate.Format(dateLayout),
		f.Stage, f.Priority, f.Team, floatArg(f.CanvasX), floatArg(f.CanvasY),
		boolArg(f.IsExperiment), exp, stamp(f.UpdatedAt), id)
	if err != nil {
		return roadmap.Feature{}, transport(err, op, "update feature %s", id)
	}
	if err := tx.Commit(); err != nil {
		return roadmap.Feature{}, transport(err, op, "commit")
	}
	return f, nil
}

// DeleteFeature implements Store.
func (s *SQLiteStore) DeleteFeature(ctx context.Context, id string) error {
	const op = "store.DeleteFeature"
	res, err := s.db.ExecContext(ctx, `DELETE FROM features WHERE id = ?`, id)
	if err != nil {
		return transport(err, op, "delete feature %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(op, "feature", id)
	}
	return nil
}

// CreateIdea implements Store.
func (s *SQLiteStore) CreateIdea(ctx context.Context, i roadmap.Idea) (roadmap.Idea, error) {
	const op = "store.CreateIdea"
	i, err := prepareIdea(i, s.now())
	if err != nil {
		return roadmap.Idea{}, err
	}
	if _, err := s.GetIdea(ctx, i.ID); err == nil {
		return roadmap.Idea{}, conflict(op, "idea", i.ID)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO ideas (`+ideaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.Title, i.Description, i.Theme, i.Impact, i.Color,
		floatArg(i.CanvasX), floatArg(i.CanvasY), stamp(i.CreatedAt), stamp(i.UpdatedAt))
	if err != nil {
		return roadmap.Idea{}, transport(err, op, "insert idea %s", i.ID)
	}
	s.logger.Debug("idea created", slog.String("id", i.ID))
	return i, nil
}

// GetIdea implements Store.
func (s *SQLiteStore) GetIdea(ctx context.Context, id string) (roadmap.Idea, error) {
	const op = "store.GetIdea"
	i, err := scanIdea(s.db.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return roadmap.Idea{}, apperr.NotFound(op, "idea", id)
	}
	if err != nil {
		return roadmap.Idea{}, transport(err, op, "select idea %s", id)
	}
	return i, nil
}

// ListIdeas implements Store.
func (s *SQLiteStore) ListIdeas(ctx context.Context) ([]roadmap.Idea, error) {
	const op = "store.ListIdeas"
	rows, err := s.db.QueryContext(ctx, `SELECT `+ideaColumns+` FROM ideas ORDER BY created_at, id`)
	if err != nil {
		return nil, transport(err, op, "select ideas")
	}
	defer rows.Close()

	var out []roadmap.Idea
	for rows.Next() {
		i, err := scanIdea(rows)
		if err != nil {
			return nil, transport(err, op, "scan idea")
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, transport(err, op, "iterate ideas")
	}
	return out, nil
}

// UpdateIdea implements Store.
func (s *SQLiteStore) UpdateIdea(ctx context.Context, id string, p roadmap.IdeaPatch) (roadmap.Idea, error) {
	const op = "store.UpdateIdea"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return roadmap.Idea{}, transport(err, op, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	i, err := scanIdea(tx.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return roadmap.Idea{}, apperr.NotFound(op, "idea", id)
	}
	if err != nil {
		return roadmap.Idea{}, transport(err, op, "select idea %s", id)
	}
	i, err = patchIdea(i, p, s.now())
	if err != nil {
		return roadmap.Idea{}, err
	}

	_, err = tx.ExecContext(ctx, `UPDATE ideas SET title = ?, description = ?, theme = ?, impact = ?, color = ?,
		canvas_x = ?, canvas_y = ?, updated_at = ? WHERE id = ?`,
		i.Title, i.Description, i.Theme, i.Impact, i.Color,
		floatArg(i.CanvasX), floatArg(i.CanvasY), stamp(i.UpdatedAt), id)
	if err != nil {
		return roadmap.Idea{}, transport(err, op, "update idea %s", id)
	}
	if err := tx.Commit(); err != nil {
		return roadmap.Idea{}, transport(err, op, "commit")
	}
	return i, nil
}

// DeleteIdea implements Store.
func (s *SQLiteStore) DeleteIdea(ctx context.Context, id string) error {
	const op = "store.DeleteIdea"
	res, err := s.db.ExecContext(ctx, `DELETE FROM ideas WHERE id = ?`, id)
	if err != nil {
		return transport(err, op, "delete idea %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(op, "idea", id)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
