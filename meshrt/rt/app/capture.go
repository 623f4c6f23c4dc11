package app

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

type imageEncoder func(w io.Writer, img image.Image) error

var captureEncoders = map[string]imageEncoder{
	".png":  png.Encode,
	".bmp":  bmp.Encode,
	".tif":  encodeTIFF,
	".tiff": encodeTIFF,
}

func encodeTIFF(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// SupportsCaptureExtension reports whether WriteCapture can encode ext.
func SupportsCaptureExtension(ext string) bool {
	_, ok := captureEncoders[strings.ToLower(ext)]
	return ok
}

// WriteCapture encodes img into path, choosing the format by extension.
func WriteCapture(path string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("capture %s: no image: %w", path, core.ErrInvalidParameter)
	}
	enc, ok := captureEncoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return fmt.Errorf("capture %s: extension %q: %w", path, filepath.Ext(path), core.ErrUnsupportedFormat)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("capture %s: %w", path, err)
	}
	if err := enc(f, img); err != nil {
		f.Close()
		return fmt.Errorf("capture %s: %w", path, err)
	}
	return f.Close()
}
