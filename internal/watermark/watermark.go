// Package watermark stamps a rotated, tiled text pattern over images.
package watermark

import (
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"dorsal/internal/faults"
	"dorsal/pkg/imgutil"
)

const (
	DefaultText    = "COPIA"
	DefaultOpacity = 0.3
	DefaultQuality = 85

	workingScale  = 0.25
	spacingFactor = 3
	angleDegrees  = 15.0
	outlineOffset = 2
	outlineAlpha  = 0.7
	minFontSize   = 24
)

type Options struct {
	Text    string
	Opacity float64
	// Quality applies to JPEG output only.
	Quality int
}

func DefaultOptions() Options {
	return Options{Text: DefaultText, Opacity: DefaultOpacity, Quality: DefaultQuality}
}

var goRegular = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// Apply returns a copy of src shrunk to a quarter of its size with the tiled
// mark composited over it. An empty text yields the shrunk copy unmarked.
func Apply(src image.Image, opts Options) *image.RGBA {
	b := src.Bounds()
	w := int(float64(b.Dx()) * workingScale)
	h := int(float64(b.Dy()) * workingScale)
	working := imgutil.Scale(src, w, h)
	w, h = working.Bounds().Dx(), working.Bounds().Dy()

	opacity := clampOpacity(opts.Opacity)

	face := newFace(math.Max(minFontSize, float64(min(w, h))/15))
	textBounds, _ := font.BoundString(face, opts.Text)
	textW := (textBounds.Max.X - textBounds.Min.X).Ceil()
	textH := (textBounds.Max.Y - textBounds.Min.Y).Ceil()
	if textW <= 0 {
		return working
	}

	spacingX := max(textW*spacingFactor, 1)
	spacingY := max(textH*spacingFactor, 1)

	overlay := image.NewRGBA(working.Bounds())
	outline := image.NewUniform(color.NRGBA{A: uint8(255 * opacity * outlineAlpha)})
	fill := image.NewUniform(color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: uint8(255 * opacity)})
	ascent := face.Metrics().Ascent

	drawAt := func(x, y int, src image.Image) {
		d := &font.Drawer{Dst: overlay, Src: src, Face: face}
		d.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y) + ascent}
		d.DrawString(opts.Text)
	}

	for i := -spacingX; i < w+spacingX; i += spacingX {
		for j := -spacingY; j < h+spacingY; j += spacingY {
			row := j / spacingY
			x := i + (row&1)*(spacingX/2)
			y := j

			for _, dx := range []int{-outlineOffset, 0, outlineOffset} {
				for _, dy := range []int{-outlineOffset, 0, outlineOffset} {
					if dx == 0 && dy == 0 {
						continue
					}
					drawAt(x+dx, y+dy, outline)
				}
			}
			drawAt(x, y, fill)
		}
	}

	rotated := rotate(overlay, angleDegrees)
	draw.Draw(working, working.Bounds(), rotated, image.Point{}, draw.Over)
	return working
}

// ApplyFile watermarks the image at srcPath and writes the result to
// dstPath, which may equal srcPath. The output format follows dstPath's
// extension. All failures are faults.Render.
func ApplyFile(srcPath, dstPath string, opts Options) error {
	img, srcKind, err := imgutil.DecodeFile(srcPath)
	if err != nil {
		return faults.New(faults.Render, srcPath, "decode image", err)
	}

	kind := imgutil.KindFromExt(dstPath)
	if kind == imgutil.KindUnknown {
		kind = srcKind
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(srcPath); err == nil {
		perm = info.Mode().Perm()
	}

	marked := Apply(img, opts)
	err = imgutil.WriteAtomic(dstPath, perm, func(w io.Writer) error {
		return imgutil.Encode(w, marked, kind, opts.Quality)
	})
	if err != nil {
		return faults.New(faults.Render, dstPath, "encode watermarked image", err)
	}
	return nil
}

func clampOpacity(o float64) float64 {
	if math.IsNaN(o) || o < 0 {
		return 0
	}
	if o > 1 {
		return 1
	}
	return o
}

func newFace(size float64) font.Face {
	f, err := goRegular()
	if err != nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// rotate turns src counter-clockwise by degrees about its centre, keeping
// its bounds. Corners that rotate out of frame are dropped.
func rotate(src *image.RGBA, degrees float64) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)

	sin, cos := math.Sincos(degrees * math.Pi / 180)
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2

	m := f64.Aff3{
		cos, sin, cx - cos*cx - sin*cy,
		-sin, cos, cy + sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(dst, m, src, b, draw.Src, nil)
	return dst
}
