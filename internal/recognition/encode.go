package recognition

import (
	"bytes"
	"encoding/base64"
	"image/color"

	"dorsal/pkg/imgutil"
)

const (
	// MaxImageSide bounds both dimensions of the image sent for inference.
	MaxImageSide  = 1024
	encodeQuality = 75
)

// EncodeImage decodes the image at path, flattens it to opaque RGB, shrinks it
// to fit MaxImageSide and returns it as base64 JPEG.
func EncodeImage(path string) (string, error) {
	img, _, err := imgutil.DecodeFile(path)
	if err != nil {
		return "", err
	}

	rgb := imgutil.Flatten(img, color.White)
	fitted := imgutil.FitWithin(rgb, MaxImageSide)

	var buf bytes.Buffer
	if err := imgutil.Encode(&buf, fitted, imgutil.KindJPEG, encodeQuality); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
