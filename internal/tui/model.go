package tui

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dorsal/internal/events"
	"dorsal/internal/faults"
	"dorsal/internal/processor"
	"dorsal/internal/report"
)

// Launcher starts a new batch whose events land in the model's queue.
type Launcher func() (*processor.Batch, error)

type Options struct {
	Queue        *events.Queue[processor.Event]
	Launch       Launcher
	Table        *report.Table
	PollInterval time.Duration
	SourceDir    string
	Model        string
	// CSVPath is where e exports the results table.
	CSVPath string
}

type Model struct {
	opts    Options
	batch   *processor.Batch
	running bool
	started time.Time
	width   int

	total     int
	processed int
	summary   *processor.Summary
	alert     string
	status    string
	quitAfter bool
	quitting  bool
}

type pollMsg time.Time

type startedMsg struct {
	batch *processor.Batch
	err   error
}

func NewModel(opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.Table == nil {
		opts.Table = report.NewTable()
	}
	return Model{
		opts:    opts,
		running: true,
		started: time.Now(),
		status:  "Scanning " + opts.SourceDir,
	}
}

// Init starts the first batch straight away.
func (m Model) Init() tea.Cmd {
	return tea.Batch(launchCmd(m.opts.Launch), m.poll())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pollMsg:
		m = m.apply(m.opts.Queue.Drain())
		if m.quitting {
			return m, tea.Quit
		}
		return m, m.poll()
	case startedMsg:
		if msg.err != nil {
			m.running = false
			if errors.Is(msg.err, processor.ErrNoImages) {
				m.status = "No images found in " + m.opts.SourceDir
			} else {
				m.alert = msg.err.Error()
			}
			return m, nil
		}
		m.batch = msg.batch
		// A short batch may already have reported Done.
		if m.running {
			m.total = msg.batch.Total()
			m.status = fmt.Sprintf("Processing %d images", m.total)
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// The alert blocks everything except dismissal.
	if m.alert != "" {
		switch key {
		case "enter", "esc":
			m.alert = ""
		case "ctrl+c":
			return m.quit()
		}
		return m, nil
	}

	switch key {
	case "q", "ctrl+c":
		return m.quit()
	case "c":
		if m.running && m.batch != nil {
			m.batch.Cancel()
			m.status = "Cancelling after the current image..."
		}
	case "r":
		if !m.running {
			m.opts.Table.Reset()
			m.resetCounters()
			return m, launchCmd(m.opts.Launch)
		}
	case "e":
		if !m.running && m.opts.Table.Len() > 0 {
			if err := m.opts.Table.SaveCSV(m.opts.CSVPath); err != nil {
				m.alert = fmt.Sprintf("export failed: %v", err)
			} else {
				m.status = "Results exported to " + m.opts.CSVPath
			}
		}
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.running {
		if m.batch != nil {
			m.batch.Cancel()
		}
		m.quitAfter = true
		m.status = "Waiting for the current image before exiting..."
		return m, nil
	}
	m.quitting = true
	return m, tea.Quit
}

func (m *Model) resetCounters() {
	m.running = true
	m.batch = nil
	m.summary = nil
	m.processed = 0
	m.total = 0
	m.started = time.Now()
	m.status = "Scanning " + m.opts.SourceDir
}

func launchCmd(launch Launcher) tea.Cmd {
	return func() tea.Msg {
		batch, err := launch()
		return startedMsg{batch: batch, err: err}
	}
}

func (m Model) poll() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func (m Model) apply(evts []processor.Event) Model {
	for _, evt := range evts {
		switch e := evt.(type) {
		case processor.UpdateEvent:
			m.opts.Table.Add(e.Result)
		case processor.ProgressEvent:
			m.processed = e.Processed
			m.total = e.Total
		case processor.ErrorEvent:
			m.opts.Table.Add(processor.DetectionResult{
				Job: e.Job,
				Err: faults.New(faults.Unexpected, e.Job.Path, e.Message, nil),
			})
			m.alert = e.Message
		case processor.DoneEvent:
			summary := e.Summary
			m.summary = &summary
			m.running = false
			if summary.Outcome == processor.OutcomeCancelled {
				m.status = fmt.Sprintf("Cancelled after %d of %d images", summary.Processed, summary.Total)
			} else {
				m.status = fmt.Sprintf("Done: %d images processed", summary.Processed)
			}
			if m.quitAfter {
				m.quitting = true
			}
		}
	}
	return m
}

// Summary is the last finished batch, or nil.
func (m Model) Summary() *processor.Summary { return m.summary }

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.processed) / float64(m.total)
		if ratio > 1 {
			ratio = 1
		}
	}

	counts := m.opts.Table.Counts()
	elapsed := time.Since(m.started).Round(time.Second)

	lines := []string{
		titleStyle.Render("dorsal"),
		dimStyle.Render(fmt.Sprintf("Source: %s  model: %s", m.opts.SourceDir, m.opts.Model)),
		labelStyle.Render(fmt.Sprintf("Images: %d/%d", m.processed, m.total)) +
			dimStyle.Render(fmt.Sprintf("  numbers:%d  empty:%d  errors:%d", counts.WithNumbers, counts.Empty, counts.Failed)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(renderBar(barWidth, ratio)),
		"",
	}
	lines = append(lines, m.renderRows(12)...)
	lines = append(lines, "", statusStyle.Render(m.status), helpStyle.Render(m.help()))

	view := strings.Join(lines, "\n")
	if m.alert != "" {
		view += "\n\n" + alertStyle.Render("Error\n\n"+m.alert+"\n\n[enter] dismiss")
	}
	return view
}

// renderRows shows the most recent limit results.
func (m Model) renderRows(limit int) []string {
	rows := m.opts.Table.Rows()
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	out := make([]string, 0, len(rows))
	for _, res := range rows {
		out = append(out, RenderResult(res))
	}
	return out
}

func (m Model) help() string {
	switch {
	case m.alert != "":
		return "enter: dismiss"
	case m.running:
		return "c: cancel  q: quit"
	default:
		return "r: run again  e: export csv  q: quit"
	}
}

// RenderResult formats one result line.
func RenderResult(res processor.DetectionResult) string {
	name := fileStyle.Render(res.Job.Name)
	switch {
	case !res.Success():
		return fmt.Sprintf("%s  %s", name, errorStyle.Render(res.ErrorMessage()))
	case len(res.Numbers) == 0:
		return fmt.Sprintf("%s  %s", name, dimStyle.Render("no numbers"))
	default:
		line := fmt.Sprintf("%s  %s", name, numberStyle.Render(report.NumbersText(res)))
		if res.OutputPath != "" {
			line += dimStyle.Render("  -> " + res.OutputName())
		}
		if res.OutputErr != nil {
			line += "  " + warnStyle.Render(res.OutputErr.Error())
		}
		return line
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle  = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle    = lipgloss.NewStyle().Foreground(ColorAccentAlt)
	dimStyle    = lipgloss.NewStyle().Foreground(ColorDim)
	fileStyle   = lipgloss.NewStyle().Foreground(ColorInk)
	numberStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	errorStyle  = lipgloss.NewStyle().Foreground(ColorError)
	statusStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	helpStyle   = lipgloss.NewStyle().Foreground(ColorDim)
	alertStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorError).
			Padding(0, 2)
)
