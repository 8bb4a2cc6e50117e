package imgutil

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// DecodeFile decodes the image at path and rotates it upright according to
// its EXIF orientation, if any.
func DecodeFile(path string) (image.Image, Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, KindUnknown, err
	}
	defer f.Close()

	return Decode(f)
}

// Decode sniffs, decodes and orients the image held in rs.
func Decode(rs io.ReadSeeker) (image.Image, Kind, error) {
	kind, err := SniffReader(rs)
	if err != nil {
		return nil, KindUnknown, fmt.Errorf("read header: %w", err)
	}
	if kind == KindUnknown {
		return nil, kind, fmt.Errorf("unsupported image format")
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, kind, err
	}

	img, err := decodeKind(rs, kind)
	if err != nil {
		return nil, kind, fmt.Errorf("decode %s: %w", kind, err)
	}

	if kind.HasExif() {
		// A broken EXIF block leaves the pixels as stored.
		if orientation, err := ReadOrientation(rs); err == nil {
			img = ApplyOrientation(img, orientation)
		}
	}

	return img, kind, nil
}

func decodeKind(r io.Reader, kind Kind) (image.Image, error) {
	switch kind {
	case KindJPEG:
		return jpeg.Decode(r)
	case KindPNG:
		return png.Decode(r)
	case KindGIF:
		return gif.Decode(r)
	case KindBMP:
		return bmp.Decode(r)
	case KindTIFF:
		return tiff.Decode(r)
	default:
		return nil, fmt.Errorf("unsupported type")
	}
}

// Encode writes img in the given format. Formats without alpha are flattened
// onto white first.
func Encode(w io.Writer, img image.Image, kind Kind, quality int) error {
	switch kind {
	case KindJPEG:
		return jpeg.Encode(w, Flatten(img, color.White), &jpeg.Options{Quality: clampQuality(quality)})
	case KindPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case KindGIF:
		return gif.Encode(w, img, nil)
	case KindBMP:
		return bmp.Encode(w, img)
	case KindTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported output format")
	}
}

func clampQuality(q int) int {
	if q < 1 {
		return jpeg.DefaultQuality
	}
	if q > 100 {
		return 100
	}
	return q
}

// Flatten composites img over an opaque background, dropping transparency.
func Flatten(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// Scale resamples img to w x h using Catmull-Rom.
func Scale(img image.Image, w, h int) *image.RGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// FitWithin downscales img so that neither side exceeds max, keeping the
// aspect ratio. Images already within bounds are returned unchanged.
func FitWithin(img image.Image, max int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if max <= 0 || (w <= max && h <= max) {
		return img
	}

	nw, nh := FitSize(w, h, max)
	return Scale(img, nw, nh)
}

// FitSize computes the dimensions FitWithin would produce.
func FitSize(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		nh := int(float64(h)*float64(max)/float64(w) + 0.5)
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := int(float64(w)*float64(max)/float64(h) + 0.5)
	if nw < 1 {
		nw = 1
	}
	return nw, max
}
