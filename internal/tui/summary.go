package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dorsal/internal/processor"
	"dorsal/internal/report"
)

type SummaryRow struct {
	Label string
	Value string
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// SummaryRows describes a finished batch.
func SummaryRows(summary processor.Summary, counts report.Counts) []SummaryRow {
	return []SummaryRow{
		{Label: "Outcome", Value: summary.Outcome.String()},
		{Label: "Images processed", Value: fmt.Sprintf("%d/%d", summary.Processed, summary.Total)},
		{Label: "With numbers", Value: fmt.Sprintf("%d", counts.WithNumbers)},
		{Label: "No numbers", Value: fmt.Sprintf("%d", counts.Empty)},
		{Label: "Errors", Value: fmt.Sprintf("%d", summary.Failed)},
	}
}

var (
	valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
)
