package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/canvas"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/store"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/timeline"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, timeline.DefaultScale, cfg.Timeline.Scale)
	assert.Equal(t, canvas.DefaultZoomBounds, cfg.Canvas.Zoom)
	assert.Equal(t, "#ffffff", cfg.SVG.Colors.Background)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, "growthlab.yaml", `
timeline:
  pixels_per_day:
    fine: 30
  default_zoom: coarse
canvas:
  zoom:
    max: 3
  persist_timeout: 2s
store:
  backend: sqlite
  path: roadmap.db
svg:
  colors:
    winner: "#00ff00"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30.0, cfg.Timeline.Scale.Fine)
	assert.Equal(t, timeline.DefaultScale.Medium, cfg.Timeline.Scale.Medium, "unset keys keep defaults")
	assert.Equal(t, timeline.ZoomCoarse, cfg.Timeline.DefaultZoom)
	assert.Equal(t, 3.0, cfg.Canvas.Zoom.Max)
	assert.Equal(t, canvas.DefaultZoomBounds.Min, cfg.Canvas.Zoom.Min)
	assert.Equal(t, 2*time.Second, cfg.Canvas.PersistTimeout)
	assert.Equal(t, store.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "#00ff00", cfg.SVG.Colors.Winner)
	assert.Equal(t, "#ffffff", cfg.SVG.Colors.Background)
	require.NoError(t, cfg.Validate())

	s := cfg.Settings()
	assert.Equal(t, 30.0, s.Scale.Fine)
	assert.Equal(t, 2*time.Second, s.PersistTimeout)
	assert.Equal(t, 30*time.Second, s.ArrangeTimeout)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "bad.yaml", "timeline: [unclosed"))
	assert.Equal(t, apperr.CodeInvalidConfig, apperr.CodeOf(err))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GROWTHLAB_STORE_BACKEND":   "minio",
		"GROWTHLAB_MINIO_ENDPOINT":  "localhost:9000",
		"GROWTHLAB_MINIO_BUCKET":    "roadmap",
		"GROWTHLAB_MINIO_USE_SSL":   "true",
		"GROWTHLAB_ARRANGE_URL":     "http://arranger:7000",
		"GROWTHLAB_ARRANGE_TIMEOUT": "5s",
		"GROWTHLAB_LOG_FORMAT":      "json",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, store.BackendMinIO, cfg.Store.Backend)
	assert.Equal(t, "localhost:9000", cfg.Store.MinIO.Endpoint)
	assert.True(t, cfg.Store.MinIO.UseSSL)
	assert.Equal(t, "http://arranger:7000", cfg.Arrange.URL)
	assert.Equal(t, 5*time.Second, cfg.Arrange.Timeout)
	assert.Equal(t, ":8080", cfg.Server.Addr, "unset variables leave values alone")
	require.NoError(t, cfg.Validate())

	env["GROWTHLAB_ARRANGE_TIMEOUT"] = "soon"
	cfg = Default()
	assert.Equal(t, apperr.CodeInvalidConfig, apperr.CodeOf(cfg.ApplyEnv(lookup)))
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "GROWTHLAB_TEST_DOTENV=from-file\n")
	t.Setenv("GROWTHLAB_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("GROWTHLAB_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "from-file", os.Getenv("GROWTHLAB_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero pixels per day", func(c *Config) { c.Timeline.Scale.Medium = 0 }},
		{"unknown zoom", func(c *Config) { c.Timeline.DefaultZoom = "hourly" }},
		{"unknown density", func(c *Config) { c.Timeline.DefaultDensity = "dense" }},
		{"compact scale above one", func(c *Config) { c.Timeline.Lanes.CompactScale = 1.5 }},
		{"zoom min above max", func(c *Config) { c.Canvas.Zoom.Min = 3 }},
		{"zero zoom step", func(c *Config) { c.Canvas.Zoom.Step = 0 }},
		{"no grid columns", func(c *Config) { c.Canvas.Layout.Columns = 0 }},
		{"file without path", func(c *Config) { c.Store.Backend = store.BackendFile }},
		{"minio without bucket", func(c *Config) {
			c.Store.Backend = store.BackendMinIO
			c.Store.MinIO.Endpoint = "localhost:9000"
		}},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, apperr.CodeInvalidConfig, apperr.CodeOf(err))
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf, false)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger, err = cfg.NewLogger(&buf, true)
	require.NoError(t, err)
	logger.Debug("debugging")
	assert.Contains(t, buf.String(), "debugging")
}
