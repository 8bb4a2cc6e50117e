package output

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dorsal/internal/faults"
	"dorsal/internal/watermark"
	"dorsal/pkg/imgutil"
)

func TestFileName(t *testing.T) {
	cases := []struct {
		source  string
		numbers []int
		want    string
	}{
		{"A.jpg", []int{12, 7}, "A_n7_n12.jpg"},
		{"/photos/run.JPEG", []int{3}, "run_n3.jpeg"},
		{"finish.png", []int{101, 5, 5}, "finish_n5_n101.png"},
		{"scan.bmp", []int{42}, "scan_n42.jpg"},
		{"frame.tiff", []int{1, 2}, "frame_n1_n2.jpg"},
		{"my.race.photo.gif", []int{9}, "my.race.photo_n9.jpg"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FileName(tc.source, tc.numbers), "source %s", tc.source)
	}
}

func TestFileNameIsOrderIndependent(t *testing.T) {
	assert.Equal(t, FileName("x.jpg", []int{3, 1, 2}), FileName("x.jpg", []int{2, 3, 1}))
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: 0x80, B: uint8(y), A: 0xff})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestWriteCopiesAndWatermarks(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "A.png")
	writePNG(t, src, 400, 200)
	outDir := filepath.Join(dir, "media", "nested")

	w := NewWriter(watermark.DefaultOptions(), zerolog.Nop())
	path, err := w.Write(src, []int{12, 7}, outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "A_n7_n12.png"), path)

	img, kind, err := imgutil.DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, imgutil.KindPNG, kind)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	_, err = os.Stat(src)
	assert.NoError(t, err, "source must be left in place")

	again, err := w.Write(src, []int{7, 12}, outDir)
	require.NoError(t, err)
	assert.Equal(t, path, again)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "rerun must overwrite, not duplicate")
}

func TestWriteKeepsCopyWhenWatermarkFails(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "weird.jpg")
	require.NoError(t, os.WriteFile(src, []byte("this is not really a jpeg"), 0o644))

	w := NewWriter(watermark.DefaultOptions(), zerolog.Nop())
	path, err := w.Write(src, []int{5}, dir)
	require.Error(t, err)
	assert.True(t, faults.Is(err, faults.Render))
	assert.Equal(t, filepath.Join(dir, "weird_n5.jpg"), path)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "this is not really a jpeg", string(data))
}

func TestWriteRejectsEmptyNumbers(t *testing.T) {
	w := NewWriter(watermark.DefaultOptions(), zerolog.Nop())
	_, err := w.Write("a.jpg", nil, t.TempDir())
	assert.ErrorIs(t, err, ErrNoNumbers)
}

func TestWriteMissingSource(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(watermark.DefaultOptions(), zerolog.Nop())
	path, err := w.Write(filepath.Join(dir, "gone.jpg"), []int{1}, dir)
	require.Error(t, err)
	assert.Empty(t, path)
}
