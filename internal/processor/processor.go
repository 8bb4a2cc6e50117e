package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dorsal/internal/faults"
	"dorsal/internal/recognition"
)

// ErrNoImages means the source directory holds no eligible images, so no
// batch was started.
var ErrNoImages = errors.New("no images found")

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
}

func IsImageName(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// ScanDir lists the eligible images directly inside dir, in the order the
// filesystem returns them.
func ScanDir(dir string) ([]ImageJob, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	d, err := os.Open(absDir)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	var jobs []ImageJob
	for _, entry := range entries {
		if !IsImageName(entry.Name()) {
			continue
		}
		fullPath := filepath.Join(absDir, entry.Name())
		info, err := os.Stat(fullPath)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		jobs = append(jobs, ImageJob{Path: fullPath, Name: entry.Name(), Index: len(jobs)})
	}
	return jobs, nil
}

type Recognizer interface {
	Recognize(ctx context.Context, imagePath, model string) (recognition.Result, error)
}

type Archiver interface {
	Write(srcPath string, numbers []int, outDir string) (string, error)
}

// Batch is one run over a fixed list of jobs. Cancel may be called from any
// goroutine; the worker honours it before starting the next job.
type Batch struct {
	ID   string
	Jobs []ImageJob

	state   atomic.Int32
	cancel  atomic.Bool
	done    chan struct{}
	summary Summary
}

func NewBatch(jobs []ImageJob) *Batch {
	return &Batch{ID: uuid.NewString(), Jobs: jobs, done: make(chan struct{})}
}

func (b *Batch) Cancel() { b.cancel.Store(true) }
func (b *Batch) CancelRequested() bool { return b.cancel.Load() }
func (b *Batch) State() State { return State(b.state.Load()) }
func (b *Batch) Total() int { return len(b.Jobs) }
func (b *Batch) Done() <-chan struct{} { return b.done }
func (b *Batch) setState(s State) { b.state.Store(int32(s)) }

// Wait blocks until the batch finishes and returns its summary.
func (b *Batch) Wait() Summary {
	<-b.done
	return b.summary
}

type Runner struct {
	recognizer Recognizer
	archiver   Archiver
	logger     zerolog.Logger
}

func NewRunner(recognizer Recognizer, archiver Archiver, logger zerolog.Logger) *Runner {
	return &Runner{
		recognizer: recognizer,
		archiver:   archiver,
		logger:     logger.With().Str("component", "processor").Logger(),
	}
}

// Prepare scans opts.SourceDir and returns a batch ready to run. It returns
// ErrNoImages when there is nothing to process.
func (r *Runner) Prepare(opts Options) (*Batch, error) {
	batch := NewBatch(nil)
	batch.setState(StateScanning)

	jobs, err := ScanDir(opts.SourceDir)
	if err != nil {
		batch.setState(StateIdle)
		return nil, fmt.Errorf("scan %s: %w", opts.SourceDir, err)
	}
	if len(jobs) == 0 {
		batch.setState(StateIdle)
		return nil, ErrNoImages
	}

	batch.Jobs = jobs
	r.logger.Info().Str("batch", batch.ID).Int("images", len(jobs)).Str("dir", opts.SourceDir).Msg("found images to process")
	return batch, nil
}

// Start prepares a batch and runs it on its own goroutine.
func (r *Runner) Start(ctx context.Context, opts Options, sink Sink) (*Batch, error) {
	batch, err := r.Prepare(opts)
	if err != nil {
		return nil, err
	}
	go r.Run(ctx, batch, opts, sink)
	return batch, nil
}

// Run processes the batch's jobs one at a time and pushes their events to
// sink, finishing with exactly one DoneEvent. It must be called once per
// batch.
func (r *Runner) Run(ctx context.Context, batch *Batch, opts Options, sink Sink) Summary {
	defer close(batch.done)

	logger := r.logger.With().Str("batch", batch.ID).Logger()
	summary := Summary{BatchID: batch.ID, Total: len(batch.Jobs), Outcome: OutcomeCompleted}
	batch.setState(StateRunning)

	for _, job := range batch.Jobs {
		if batch.CancelRequested() || ctx.Err() != nil {
			summary.Outcome = OutcomeCancelled
			logger.Info().Int("processed", summary.Processed).Msg("batch cancelled by user")
			break
		}

		logger.Info().Str("file", job.Name).Int("index", job.Index).Msg("processing")
		res, err := r.processJob(ctx, job, opts)
		if err != nil {
			summary.Failed++
			logger.Error().Err(err).Str("file", job.Name).Msg("unexpected failure")
			sink.Push(ErrorEvent{Job: job, Message: fmt.Sprintf("error processing %s: %v", job.Name, err)})
		} else {
			if res.Success() {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			logResult(logger, res)
			sink.Push(UpdateEvent{Result: res})
		}

		summary.Processed++
		sink.Push(ProgressEvent{Processed: summary.Processed, Total: summary.Total})
	}

	if summary.Outcome == OutcomeCancelled {
		batch.setState(StateCancelled)
	} else {
		batch.setState(StateCompleted)
	}
	batch.summary = summary

	logger.Info().
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Str("outcome", summary.Outcome.String()).
		Msg("batch finished")
	sink.Push(DoneEvent{Summary: summary})
	return summary
}

func (r *Runner) processJob(ctx context.Context, job ImageJob, opts Options) (res DetectionResult, err error) {
	res.Job = job
	defer func() {
		if p := recover(); p != nil {
			err = faults.New(faults.Unexpected, job.Path, fmt.Sprintf("panic: %v", p), nil)
		}
	}()

	det, recErr := r.recognizer.Recognize(ctx, job.Path, opts.Model)
	if recErr != nil {
		res.Err = faults.Classify(faults.Unexpected, job.Path, recErr)
		return res, nil
	}
	res.RawText = det.RawText
	res.Numbers = det.Numbers

	if len(res.Numbers) == 0 || opts.OutputDir == "" || r.archiver == nil {
		return res, nil
	}

	outPath, werr := r.archiver.Write(job.Path, res.Numbers, opts.OutputDir)
	res.OutputPath = outPath
	res.OutputErr = werr
	return res, nil
}

func logResult(logger zerolog.Logger, res DetectionResult) {
	switch {
	case !res.Success():
		logger.Warn().
			Str("file", res.Job.Name).
			Str("kind", res.ErrorKind().String()).
			Str("error", res.ErrorMessage()).
			Msg("recognition failed")
	case len(res.Numbers) == 0:
		logger.Info().Str("file", res.Job.Name).Msg("no numbers found")
	default:
		evt := logger.Info().Str("file", res.Job.Name).Ints("numbers", res.SortedNumbers())
		if res.OutputPath != "" {
			evt = evt.Str("output", res.OutputName())
		}
		if res.OutputErr != nil {
			evt = evt.AnErr("output_error", res.OutputErr)
		}
		evt.Msg("numbers found")
	}
}
