package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"dorsal/internal/recognition"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models installed on the Ollama server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient(stderrLogger())
		models, err := client.Models(cmd.Context())
		if err != nil {
			return err
		}

		if len(models) == 0 {
			fmt.Fprintln(os.Stdout, scanDimStyle.Render("No models installed."))
		}
		for _, m := range models {
			marker := " "
			if modelMatches(m.Name, cfg.Inference.Model) {
				marker = "*"
			}
			fmt.Fprintf(os.Stdout, "%s %s %s\n",
				numbersStyle.Render(marker),
				scanFileStyle.Render(m.Name),
				scanDimStyle.Render(fmt.Sprintf("%.1f GB", float64(m.Size)/1e9)),
			)
		}

		var missing []string
		for _, name := range recognition.SuggestedModels {
			if !slices.ContainsFunc(models, func(m recognition.ModelInfo) bool { return modelMatches(m.Name, name) }) {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			fmt.Fprintf(os.Stdout, "\n%s\n", scanDimStyle.Render("Other vision models that work: "+strings.Join(missing, ", ")))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
