// Package config loads the growthlab configuration: a YAML file laid over
// built-in defaults, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/arrange"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/board"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/canvas"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/store"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/timeline"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GROWTHLAB_"

type Config struct {
	Timeline struct {
		Scale          timeline.Scale       `yaml:"pixels_per_day"`  // Pixels per day at each zoom level
		Lanes          timeline.LaneMetrics `yaml:"lanes"`           // Bar height, gap, padding and compact scale
		DefaultZoom    timeline.ZoomLevel   `yaml:"default_zoom"`    // fine, medium or coarse
		DefaultDensity timeline.Density     `yaml:"default_density"` // expanded or compact
	} `yaml:"timeline"`
	Canvas struct {
		Zoom           canvas.ZoomBounds `yaml:"zoom"`            // Minimum, maximum and step of the canvas zoom
		Layout         canvas.Layout     `yaml:"layout"`          // Card sizes and the seed grid
		PersistTimeout time.Duration     `yaml:"persist_timeout"` // Bound on one drag write
	} `yaml:"canvas"`
	Store   store.Config         `yaml:"store"`
	Arrange arrange.ClientConfig `yaml:"arrange"`
	Server  struct {
		Addr string `yaml:"addr"` // Listen address of the HTTP API
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`  // debug, info, warn or error
		Format string `yaml:"format"` // text or json
	} `yaml:"log"`
	SVG timeline.Style `yaml:"svg"`
}

// Default returns a configuration with every value set.
func Default() Config {
	var c Config
	c.Timeline.Scale = timeline.DefaultScale
	c.Timeline.Lanes = timeline.DefaultLaneMetrics
	c.Timeline.DefaultZoom = timeline.ZoomMedium
	c.Timeline.DefaultDensity = timeline.DensityExpanded
	c.Canvas.Zoom = canvas.DefaultZoomBounds
	c.Canvas.Layout = canvas.DefaultLayout
	c.Canvas.PersistTimeout = 10 * time.Second
	c.Store.Backend = store.BackendMemory
	c.Arrange.Timeout = 30 * time.Second
	c.Server.Addr = ":8080"
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.SVG = timeline.DefaultStyle()
	return c
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, apperr.Wrap(err, apperr.CodeInvalidConfig, "config.Load", "error parsing config file")
	}
	return cfg, nil
}

// LoadDotEnv reads .env files into the process environment without
// overriding variables already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays GROWTHLAB_* variables read through lookup, which is
// os.LookupEnv when nil.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) (string, bool) {
		return lookup(EnvPrefix + name)
	}

	strs := map[string]*string{
		"ADDR":             &c.Server.Addr,
		"LOG_LEVEL":        &c.Log.Level,
		"LOG_FORMAT":       &c.Log.Format,
		"STORE_BACKEND":    &c.Store.Backend,
		"STORE_PATH":       &c.Store.Path,
		"MINIO_ENDPOINT":   &c.Store.MinIO.Endpoint,
		"MINIO_ACCESS_KEY": &c.Store.MinIO.AccessKey,
		"MINIO_SECRET_KEY": &c.Store.MinIO.SecretKey,
		"MINIO_BUCKET":     &c.Store.MinIO.Bucket,
		"MINIO_PREFIX":     &c.Store.MinIO.Prefix,
		"ARRANGE_URL":      &c.Arrange.URL,
		"ARRANGE_API_KEY":  &c.Arrange.APIKey,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	if v, ok := get("MINIO_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apperr.New(apperr.CodeInvalidConfig, "config.ApplyEnv", "%sMINIO_USE_SSL: %v", EnvPrefix, err)
		}
		c.Store.MinIO.UseSSL = b
	}
	if v, ok := get("ARRANGE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return apperr.New(apperr.CodeInvalidConfig, "config.ApplyEnv", "%sARRANGE_TIMEOUT: %v", EnvPrefix, err)
		}
		c.Arrange.Timeout = d
	}
	return nil
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	const op = "config.Validate"
	invalid := func(format string, args ...any) error {
		return apperr.New(apperr.CodeInvalidConfig, op, format, args...)
	}

	s := c.Timeline.Scale
	if s.Fine <= 0 || s.Medium <= 0 || s.Coarse <= 0 {
		return invalid("timeline.pixels_per_day must be positive at every zoom level")
	}
	if _, err := timeline.ParseZoom(string(c.Timeline.DefaultZoom)); err != nil {
		return invalid("timeline.default_zoom: %v", err)
	}
	if _, err := timeline.ParseDensity(string(c.Timeline.DefaultDensity)); err != nil {
		return invalid("timeline.default_density: %v", err)
	}
	if l := c.Timeline.Lanes; l.BarHeight <= 0 || l.BarGap < 0 || l.RowPadding < 0 {
		return invalid("timeline.lanes: bar_height must be positive, gap and padding non-negative")
	}
	if cs := c.Timeline.Lanes.CompactScale; cs <= 0 || cs > 1 {
		return invalid("timeline.lanes.compact_scale %v is outside (0, 1]", cs)
	}

	z := c.Canvas.Zoom
	if z.Min <= 0 || z.Min >= z.Max {
		return invalid("canvas.zoom: min %v must be positive and below max %v", z.Min, z.Max)
	}
	if z.Step <= 0 {
		return invalid("canvas.zoom.step must be positive")
	}
	if c.Canvas.Layout.Columns <= 0 || c.Canvas.Layout.Spacing <= 0 {
		return invalid("canvas.layout: columns and spacing must be positive")
	}

	switch c.Store.Backend {
	case store.BackendMemory, "":
	case store.BackendFile, store.BackendSQLite:
		if c.Store.Path == "" {
			return invalid("store.path is required for the %s backend", c.Store.Backend)
		}
	case store.BackendMinIO:
		if c.Store.MinIO.Endpoint == "" || c.Store.MinIO.Bucket == "" {
			return invalid("store.minio: endpoint and bucket are required")
		}
	default:
		return invalid("unknown store backend %q", c.Store.Backend)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "":
	default:
		return invalid("log.format %q is not text or json", c.Log.Format)
	}
	return nil
}

// Settings returns the board settings described by c.
func (c Config) Settings() board.Settings {
	s := board.DefaultSettings()
	s.Scale = c.Timeline.Scale
	s.Lanes = c.Timeline.Lanes
	s.DefaultZoom = c.Timeline.DefaultZoom
	s.DefaultDensity = c.Timeline.DefaultDensity
	s.Layout = c.Canvas.Layout
	s.ZoomBounds = c.Canvas.Zoom
	if c.Canvas.PersistTimeout > 0 {
		s.PersistTimeout = c.Canvas.PersistTimeout
	}
	if c.Arrange.Timeout > 0 {
		s.ArrangeTimeout = c.Arrange.Timeout
	}
	return s
}

// NewLogger builds the process logger writing to w. debug forces the
// debug level.
func (c Config) NewLogger(w io.Writer, debug bool) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidConfig, "config.NewLogger", "invalid log level")
	}
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return level, nil
}
