package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"dorsal/internal/processor"
	"dorsal/internal/tui"
	"dorsal/pkg/imgutil"
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "List the images a batch would process, in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := processor.ScanDir(args[0])
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			return fmt.Errorf("%s: %w", args[0], processor.ErrNoImages)
		}

		for _, job := range jobs {
			kind, err := imgutil.SniffFile(job.Path)
			label := kind.String()
			style := scanValueStyle
			switch {
			case err != nil:
				label, style = err.Error(), warnStyle
			case kind == imgutil.KindUnknown:
				label, style = "unrecognised content", warnStyle
			}
			fmt.Fprintf(os.Stdout, "%s %s %s\n",
				scanBulletStyle.Render(fmt.Sprintf("%3d", job.Index+1)),
				scanFileStyle.Render(job.Name),
				style.Render(label),
			)
		}
		fmt.Fprintf(os.Stdout, "\n%s\n", scanDimStyle.Render(fmt.Sprintf("%d images", len(jobs))))
		return nil
	},
}

var (
	scanFileStyle   = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	scanValueStyle  = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	scanDimStyle    = lipgloss.NewStyle().Foreground(tui.ColorDim)
	scanBulletStyle = lipgloss.NewStyle().Foreground(tui.ColorDim)
	warnStyle       = lipgloss.NewStyle().Foreground(tui.ColorWarn)
)

func init() {
	rootCmd.AddCommand(scanCmd)
}
