package geotag

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrUnsupportedFormat is returned for containers that cannot carry GPS tags.
var ErrUnsupportedFormat = errors.New("format cannot carry GPS tags")

// DefaultJPEGQuality is used when transcoding lossless images.
const DefaultJPEGQuality = 95

// Format is the container family of an image file.
type Format int

const (
	FormatUnsupported Format = iota
	FormatJPEG
	FormatTIFF
	// FormatPNG must be transcoded to JPEG before tags can be written.
	FormatPNG
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatTIFF:
		return "tiff"
	case FormatPNG:
		return "png"
	}
	return "unsupported"
}

// DetectFormat classifies path by its extension, ignoring case.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".tif", ".tiff":
		return FormatTIFF
	case ".png":
		return FormatPNG
	}
	return FormatUnsupported
}

// EnsureContainer returns a path whose container accepts embedded GPS tags.
// JPEG and TIFF files are returned as is. PNG files are flattened to RGB and
// encoded as a JPEG next to the original, which is left in place; converted
// reports whether that happened.
func EnsureContainer(path string, quality int) (workPath string, converted bool, err error) {
	switch DetectFormat(path) {
	case FormatJPEG, FormatTIFF:
		return path, false, nil
	case FormatPNG:
		out := strings.TrimSuffix(path, filepath.Ext(path)) + ".jpg"
		if err := transcodeToJPEG(path, out, quality); err != nil {
			return path, false, err
		}
		return out, true, nil
	}
	return path, false, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
}

func transcodeToJPEG(src, dst string, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	if err := imaging.Save(toRGB(img), dst, imaging.JPEGQuality(quality)); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to save jpeg: %w", err)
	}
	return nil
}

// toRGB drops the alpha channel, keeping the unpremultiplied colour of every
// pixel.
func toRGB(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}
