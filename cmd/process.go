package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dorsal/internal/events"
	"dorsal/internal/processor"
	"dorsal/internal/recognition"
	"dorsal/internal/report"
	"dorsal/internal/tui"
)

var (
	processPlain bool
	processCSV   string
)

var processCmd = &cobra.Command{
	Use:   "process [flags] <dir>",
	Short: "Read bib numbers from every image in a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}

		opts := processor.Options{SourceDir: dir, OutputDir: cfg.Output.Dir, Model: cfg.Inference.Model}
		if processPlain {
			return runPlain(cmd.Context(), opts)
		}
		return runInteractive(cmd.Context(), opts)
	},
}

func runInteractive(ctx context.Context, opts processor.Options) error {
	logger, closer, err := fileLogger()
	if err != nil {
		return err
	}
	defer closer.Close()

	client := newClient(logger)
	if warning := checkServer(ctx, client, opts.Model, logger); warning != "" {
		fmt.Fprintln(os.Stderr, warnStyle.Render(warning))
	}

	runner := processor.NewRunner(client, newWriter(logger), logger)
	queue := events.NewQueue[processor.Event]()
	table := report.NewTable()

	g, gctx := errgroup.WithContext(ctx)
	model := tui.NewModel(tui.Options{
		Queue: queue,
		Table: table,
		Launch: func() (*processor.Batch, error) {
			batch, err := runner.Prepare(opts)
			if err != nil {
				return nil, err
			}
			g.Go(func() error {
				runner.Run(gctx, batch, opts, queue)
				return nil
			})
			return batch, nil
		},
		PollInterval: cfg.UI.PollInterval,
		SourceDir:    opts.SourceDir,
		Model:        opts.Model,
		CSVPath:      csvPath(),
	})
	program := tea.NewProgram(model, tea.WithContext(gctx))

	var final tea.Model
	g.Go(func() error {
		var runErr error
		final, runErr = program.Run()
		return runErr
	})
	if err := g.Wait(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}

	fm, ok := final.(tui.Model)
	if !ok || fm.Summary() == nil {
		return nil
	}
	return finish(*fm.Summary(), table, opts)
}

func runPlain(ctx context.Context, opts processor.Options) error {
	logger := stderrLogger()
	client := newClient(logger)
	if warning := checkServer(ctx, client, opts.Model, logger); warning != "" {
		logger.Warn().Msg(warning)
	}

	runner := processor.NewRunner(client, newWriter(logger), logger)
	queue := events.NewQueue[processor.Event]()
	table := report.NewTable()

	batch, err := runner.Prepare(opts)
	if errors.Is(err, processor.ErrNoImages) {
		fmt.Fprintf(os.Stdout, "No images found in %s\n", opts.SourceDir)
		return nil
	}
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := progressbar.NewOptions(batch.Total(),
		progressbar.OptionSetDescription("Reading numbers"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionOnCompletion(func() { fmt.Fprint(os.Stderr, "\n") }),
		progressbar.OptionSetRenderBlankState(true),
	)

	var summary processor.Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		runner.Run(gctx, batch, opts, queue)
		return nil
	})
	g.Go(func() error {
		select {
		case <-sigCtx.Done():
			logger.Warn().Msg("interrupt received, stopping after the current image")
			batch.Cancel()
		case <-batch.Done():
		}
		return nil
	})
	g.Go(func() error {
		return events.Poll(gctx, queue, cfg.UI.PollInterval, func(evts []processor.Event) bool {
			for _, evt := range evts {
				switch e := evt.(type) {
				case processor.UpdateEvent:
					table.Add(e.Result)
				case processor.ProgressEvent:
					_ = bar.Set(e.Processed)
				case processor.ErrorEvent:
					logger.Error().Str("file", e.Job.Name).Msg(e.Message)
				case processor.DoneEvent:
					summary = e.Summary
					_ = bar.Finish()
					return false
				}
			}
			return true
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range table.Rows() {
		fmt.Fprintln(os.Stdout, tui.RenderResult(res))
	}
	return finish(summary, table, opts)
}

// checkServer returns a warning when the inference server is unreachable or
// lacks the model. It never fails the command.
func checkServer(ctx context.Context, client *recognition.Client, model string, logger zerolog.Logger) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	models, err := client.Models(ctx)
	if err != nil {
		logger.Warn().Err(err).Str("url", client.BaseURL()).Msg("inference server unreachable")
		return fmt.Sprintf("Warning: %v. Is `ollama serve` running?", err)
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	if !slices.ContainsFunc(names, func(name string) bool { return modelMatches(name, model) }) {
		logger.Warn().Str("model", model).Strs("installed", names).Msg("model not installed")
		return fmt.Sprintf("Warning: model %s is not installed. Try `ollama pull %s`.", model, model)
	}
	return ""
}

// modelMatches treats "llava" and "llava:latest" as the same model.
func modelMatches(installed, wanted string) bool {
	if installed == wanted {
		return true
	}
	return !strings.Contains(wanted, ":") && installed == wanted+":latest"
}

func csvPath() string {
	if processCSV != "" {
		return processCSV
	}
	return filepath.Join(cfg.Output.Dir, "results.csv")
}

func finish(summary processor.Summary, table *report.Table, opts processor.Options) error {
	fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.SummaryRows(summary, table.Counts())))

	outPath := opts.OutputDir
	if abs, absErr := filepath.Abs(outPath); absErr == nil {
		outPath = abs
	}
	fmt.Fprintf(os.Stdout, "Watermarked copies written to: %s\n", outPath)

	if processCSV != "" {
		if err := table.SaveCSV(processCSV); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Results exported to: %s\n", processCSV)
	}
	return nil
}

func init() {
	processCmd.Flags().BoolVar(&processPlain, "plain", false, "print a progress bar and log lines instead of the interactive view")
	processCmd.Flags().StringVar(&processCSV, "csv", "", "write the results table to this CSV file when the batch ends")

	rootCmd.AddCommand(processCmd)
}
