package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost:11434", cfg.Inference.URL)
	assert.Equal(t, "llama3.2-vision", cfg.Inference.Model)
	assert.InDelta(t, 0.1, cfg.Inference.Temperature, 1e-9)
	assert.Equal(t, "COPIA", cfg.Watermark.Text)
	assert.Equal(t, 85, cfg.Watermark.Quality)
	assert.Equal(t, 100*time.Millisecond, cfg.UI.PollInterval)
	assert.Equal(t, "media", filepath.Base(cfg.Output.Dir))
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dorsal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
inference:
  url: http://gpu-box:11434
  model: llava
  timeout: 2m
watermark:
  text: MUESTRA
  quality: 70
ui:
  poll_interval: 250ms
`), 0o644))

	t.Setenv("DORSAL_MODEL", "llama3.2-vision:11b")
	t.Setenv("DORSAL_WATERMARK_OPACITY", "0.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", cfg.Inference.URL)
	assert.Equal(t, "llama3.2-vision:11b", cfg.Inference.Model)
	assert.Equal(t, 2*time.Minute, cfg.Inference.Timeout)
	assert.Equal(t, "MUESTRA", cfg.Watermark.Text)
	assert.Equal(t, 70, cfg.Watermark.Quality)
	assert.InDelta(t, 0.5, cfg.Watermark.Opacity, 1e-9)
	assert.Equal(t, 250*time.Millisecond, cfg.UI.PollInterval)

	opts := cfg.WatermarkOptions()
	assert.Equal(t, "MUESTRA", opts.Text)
	assert.Equal(t, 70, opts.Quality)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadBadEnvValue(t *testing.T) {
	t.Setenv("DORSAL_TIMEOUT", "soon")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DORSAL_TIMEOUT")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Inference.Model = " "
	cfg.Watermark.Quality = 0
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inference.model")
	assert.Contains(t, err.Error(), "watermark.quality")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLogPath(t *testing.T) {
	cfg := Default()
	cfg.Output.Dir = filepath.Join("srv", "race", "media")
	assert.Equal(t, filepath.Join("srv", "race", "dorsal.log"), cfg.LogPath())

	cfg.Log.File = "/var/log/dorsal.log"
	assert.Equal(t, "/var/log/dorsal.log", cfg.LogPath())
}
