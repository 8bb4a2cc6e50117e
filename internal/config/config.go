// Package config loads dorsal settings from defaults, an optional YAML file,
// .env files and DORSAL_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dorsal/internal/recognition"
	"dorsal/internal/watermark"
)

const envPrefix = "DORSAL_"

type Config struct {
	Inference InferenceConfig `yaml:"inference"`
	Output    OutputConfig    `yaml:"output"`
	Watermark WatermarkConfig `yaml:"watermark"`
	UI        UIConfig        `yaml:"ui"`
	Log       LogConfig       `yaml:"log"`
}

type InferenceConfig struct {
	URL         string        `yaml:"url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type OutputConfig struct {
	// Dir defaults to a "media" folder next to the executable.
	Dir string `yaml:"dir"`
}

type WatermarkConfig struct {
	Text    string  `yaml:"text"`
	Opacity float64 `yaml:"opacity"`
	Quality int     `yaml:"quality"`
}

type UIConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	File   string `yaml:"file"`
}

func Default() Config {
	return Config{
		Inference: InferenceConfig{
			URL:         recognition.DefaultBaseURL,
			Model:       recognition.DefaultModel,
			Temperature: recognition.DefaultTemperature,
			Timeout:     10 * time.Minute,
		},
		Output: OutputConfig{Dir: defaultOutputDir()},
		Watermark: WatermarkConfig{
			Text:    watermark.DefaultText,
			Opacity: watermark.DefaultOpacity,
			Quality: watermark.DefaultQuality,
		},
		UI:  UIConfig{PollInterval: 100 * time.Millisecond},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

func defaultOutputDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "media"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "media")
}

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Missing .env files are fine.
	_ = godotenv.Load(".env", ".env.local")

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Inference.URL, "OLLAMA_URL")
	setString(&cfg.Inference.Model, "MODEL")
	setString(&cfg.Output.Dir, "OUTPUT_DIR")
	setString(&cfg.Watermark.Text, "WATERMARK_TEXT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Log.File, "LOG_FILE")

	var errs []error
	errs = append(errs,
		setFloat(&cfg.Inference.Temperature, "TEMPERATURE"),
		setDuration(&cfg.Inference.Timeout, "TIMEOUT"),
		setFloat(&cfg.Watermark.Opacity, "WATERMARK_OPACITY"),
		setInt(&cfg.Watermark.Quality, "WATERMARK_QUALITY"),
		setDuration(&cfg.UI.PollInterval, "POLL_INTERVAL"),
	)
	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setFloat(dst *float64, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = f
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Inference.URL) == "" {
		errs = append(errs, errors.New("inference.url is required"))
	}
	if strings.TrimSpace(c.Inference.Model) == "" {
		errs = append(errs, errors.New("inference.model is required"))
	}
	if c.Inference.Timeout < 0 {
		errs = append(errs, errors.New("inference.timeout must not be negative"))
	}
	if c.Watermark.Quality < 1 || c.Watermark.Quality > 100 {
		errs = append(errs, fmt.Errorf("watermark.quality must be within 1-100, got %d", c.Watermark.Quality))
	}
	if c.UI.PollInterval <= 0 {
		errs = append(errs, errors.New("ui.poll_interval must be positive"))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// WatermarkOptions converts the watermark section for the renderer.
func (c Config) WatermarkOptions() watermark.Options {
	return watermark.Options{Text: c.Watermark.Text, Opacity: c.Watermark.Opacity, Quality: c.Watermark.Quality}
}

// LogPath is where the interactive UI sends logs so they do not garble the
// terminal.
func (c Config) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(filepath.Dir(filepath.Clean(c.Output.Dir)), "dorsal.log")
}
