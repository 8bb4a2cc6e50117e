package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dorsal/internal/watermark"
)

var watermarkCmd = &cobra.Command{
	Use:   "watermark <src> [dst]",
	Short: "Stamp the tiled watermark onto one image",
	Long: "Stamp the tiled watermark onto one image. Without dst the result is written next to\n" +
		"the source as <name>_marked<ext>.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		dst := markedName(src)
		if len(args) == 2 {
			dst = args[1]
		}

		if err := watermark.ApplyFile(src, dst, cfg.WatermarkOptions()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s %s\n", labelStyle.Render("Saved:"), dst)
		return nil
	},
}

func markedName(src string) string {
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + "_marked" + ext
}

func init() {
	rootCmd.AddCommand(watermarkCmd)
}
