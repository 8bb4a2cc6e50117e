package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"dorsal/internal/output"
	"dorsal/internal/processor"
	"dorsal/internal/report"
	"dorsal/internal/tui"
)

var recognizeWrite bool

var recognizeCmd = &cobra.Command{
	Use:   "recognize [flags] <image>",
	Short: "Read the bib numbers in a single image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := stderrLogger()
		client := newClient(logger)

		res, err := client.Recognize(cmd.Context(), args[0], cfg.Inference.Model)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "%s %s\n", labelStyle.Render("Model answer:"), res.RawText)
		if len(res.Numbers) == 0 {
			fmt.Fprintln(os.Stdout, scanDimStyle.Render("No numbers found."))
			return nil
		}
		det := processor.DetectionResult{Numbers: res.Numbers}
		fmt.Fprintf(os.Stdout, "%s %s\n", labelStyle.Render("Numbers:"), numbersStyle.Render(report.NumbersText(det)))

		if !recognizeWrite {
			fmt.Fprintf(os.Stdout, "%s %s\n", labelStyle.Render("Would be saved as:"), output.FileName(args[0], res.Numbers))
			return nil
		}
		path, err := newWriter(logger).Write(args[0], res.Numbers, cfg.Output.Dir)
		if path != "" {
			fmt.Fprintf(os.Stdout, "%s %s\n", labelStyle.Render("Saved:"), path)
		}
		return err
	},
}

var (
	labelStyle   = lipgloss.NewStyle().Foreground(tui.ColorDim)
	numbersStyle = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorSuccess)
)

func init() {
	recognizeCmd.Flags().BoolVarP(&recognizeWrite, "write", "w", false, "also write the watermarked copy to the output folder")

	rootCmd.AddCommand(recognizeCmd)
}
