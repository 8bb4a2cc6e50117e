package processor

import (
	"path/filepath"
	"sort"

	"dorsal/internal/faults"
)

type State int32

const (
	StateIdle State = iota
	StateScanning
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

type Options struct {
	SourceDir string
	// OutputDir receives watermarked copies. Empty disables archiving.
	OutputDir string
	Model     string
}

type ImageJob struct {
	Path  string
	Name  string
	Index int
}

// DetectionResult is the outcome of one job. Err nil means success; Numbers
// and OutputPath are only meaningful then. OutputErr records an archiving
// problem that does not affect the recognition outcome.
type DetectionResult struct {
	Job        ImageJob
	RawText    string
	Numbers    []int
	OutputPath string
	Err        error
	OutputErr  error
}

func (r DetectionResult) Success() bool { return r.Err == nil }

func (r DetectionResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (r DetectionResult) ErrorKind() faults.Kind { return faults.KindOf(r.Err) }

// SortedNumbers returns a sorted copy of Numbers.
func (r DetectionResult) SortedNumbers() []int {
	out := append([]int(nil), r.Numbers...)
	sort.Ints(out)
	return out
}

func (r DetectionResult) OutputName() string {
	if r.OutputPath == "" {
		return ""
	}
	return filepath.Base(r.OutputPath)
}

type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
)

func (o Outcome) String() string {
	if o == OutcomeCancelled {
		return "cancelled"
	}
	return "completed"
}

type Summary struct {
	BatchID   string
	Total     int
	Processed int
	Succeeded int
	Failed    int
	Outcome   Outcome
}

// Event is one of UpdateEvent, ProgressEvent, ErrorEvent or DoneEvent.
type Event interface {
	isEvent()
}

type UpdateEvent struct {
	Result DetectionResult
}

type ProgressEvent struct {
	Processed int
	Total     int
}

// ErrorEvent reports a job that failed outside the modelled error paths.
type ErrorEvent struct {
	Job     ImageJob
	Message string
}

type DoneEvent struct {
	Summary Summary
}

func (UpdateEvent) isEvent()   {}
func (ProgressEvent) isEvent() {}
func (ErrorEvent) isEvent()    {}
func (DoneEvent) isEvent()     {}

// Sink receives batch events. It must not block.
type Sink interface {
	Push(Event)
}
