// Package output archives watermarked copies of images under names derived
// from the numbers detected in them.
package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"dorsal/internal/faults"
	"dorsal/internal/watermark"
	"dorsal/pkg/imgutil"
)

// DefaultExt replaces source extensions outside the preserved set.
const DefaultExt = ".jpg"

var preservedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ErrNoNumbers is returned when there is nothing to encode in the name.
var ErrNoNumbers = errors.New("no detected numbers")

// FileName builds "<stem>_n<a>_n<b>...<ext>" from the source file name and
// the detected numbers, ascending.
func FileName(sourceName string, numbers []int) string {
	base := filepath.Base(sourceName)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if !preservedExts[ext] {
		ext = DefaultExt
	}

	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)

	tokens := make([]string, 0, len(sorted))
	for i, n := range sorted {
		if i > 0 && n == sorted[i-1] {
			continue
		}
		tokens = append(tokens, "n"+strconv.Itoa(n))
	}

	return stem + "_" + strings.Join(tokens, "_") + ext
}

type Writer struct {
	mark   watermark.Options
	logger zerolog.Logger
}

func NewWriter(mark watermark.Options, logger zerolog.Logger) *Writer {
	return &Writer{mark: mark, logger: logger.With().Str("component", "output").Logger()}
}

// Write copies srcPath into outDir under FileName and watermarks the copy in
// place. A failed copy returns an empty path. A failed watermark returns the
// path of the unmarked copy together with a faults.Render error.
func (w *Writer) Write(srcPath string, numbers []int, outDir string) (string, error) {
	if len(numbers) == 0 {
		return "", ErrNoNumbers
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	destPath := filepath.Join(outDir, FileName(srcPath, numbers))
	if err := copyFile(srcPath, destPath); err != nil {
		return "", fmt.Errorf("copy %s: %w", filepath.Base(srcPath), err)
	}

	if err := watermark.ApplyFile(destPath, destPath, w.mark); err != nil {
		w.logger.Warn().Err(err).Str("file", destPath).Msg("watermark failed, keeping unmarked copy")
		return destPath, faults.Classify(faults.Render, destPath, err)
	}

	w.logger.Debug().Str("file", destPath).Ints("numbers", numbers).Msg("output written")
	return destPath, nil
}

// copyFile duplicates src byte for byte, keeping its mode and modification
// time.
func copyFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	err = imgutil.WriteAtomic(destPath, info.Mode().Perm(), func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	})
	if err != nil {
		return err
	}

	return os.Chtimes(destPath, info.ModTime(), info.ModTime())
}
