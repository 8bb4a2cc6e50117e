package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dorsal/internal/config"
	"dorsal/internal/logging"
	"dorsal/internal/output"
	"dorsal/internal/recognition"
)

var (
	configPath string
	logLevel   string
	ollamaURL  string
	modelName  string
	outputDir  string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dorsal",
	Short: "dorsal - read race bib numbers from photos",
	Long: "dorsal sends race photos to a local vision model, reads the participant numbers in them\n" +
		"and files a watermarked copy of each photo under the numbers it found.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		if ollamaURL != "" {
			loaded.Inference.URL = ollamaURL
		}
		if modelName != "" {
			loaded.Inference.Model = modelName
		}
		if outputDir != "" {
			loaded.Output.Dir = outputDir
		}
		cfg = loaded
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&ollamaURL, "ollama-url", "", "base URL of the Ollama server")
	flags.StringVarP(&modelName, "model", "m", "", "vision model to use")
	flags.StringVarP(&outputDir, "output", "o", "", "folder for watermarked copies")
}

// stderrLogger is the logger for commands that do not own the terminal.
func stderrLogger() zerolog.Logger {
	return logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
}

// fileLogger keeps log lines out of the interactive UI.
func fileLogger() (zerolog.Logger, io.Closer, error) {
	logger, f, err := logging.NewFile(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, cfg.LogPath())
	if err != nil {
		return logger, nil, fmt.Errorf("open log file: %w", err)
	}
	return logger, f, nil
}

func newClient(logger zerolog.Logger) *recognition.Client {
	return recognition.NewClient(recognition.Options{
		BaseURL:     cfg.Inference.URL,
		Temperature: cfg.Inference.Temperature,
		Timeout:     cfg.Inference.Timeout,
		Logger:      logger,
	})
}

func newWriter(logger zerolog.Logger) *output.Writer {
	return output.NewWriter(cfg.WatermarkOptions(), logger)
}
