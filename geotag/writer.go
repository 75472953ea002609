package geotag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"photoGeotagger/geo"
)

// ErrWriterUnavailable means no tag writer is configured. Unlike every other
// writer failure it must stop the batch: carrying on would drop geodata silently.
var ErrWriterUnavailable = errors.New("metadata writer unavailable")

// Writer stores coordinates in image files, converting the container first
// when needed.
type Writer struct {
	tags    TagWriter
	quality int
	log     logrus.FieldLogger
}

func NewWriter(tags TagWriter, quality int, log logrus.FieldLogger) *Writer {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Writer{tags: tags, quality: quality, log: log}
}

// WriteCoordinates writes c into the file at path and returns the path of the
// file that now holds it, which differs from path after a PNG conversion.
//
// Failures are soft: the original path is returned with the error and the
// original file is left as it was. After a successful conversion the original
// file is removed on a best-effort basis.
func (w *Writer) WriteCoordinates(path string, c geo.Coordinate) (string, error) {
	log := w.log.WithField("file", filepath.Base(path))

	if w.tags == nil {
		log.Warn("cannot save GPS: no metadata writer configured")
		return path, ErrWriterUnavailable
	}
	if err := c.Validate(); err != nil {
		log.WithError(err).Warn("refusing to save GPS")
		return path, err
	}

	workPath, converted, err := EnsureContainer(path, w.quality)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			log.Warn("cannot save GPS: format not supported")
		} else {
			log.WithError(err).Error("error converting image")
		}
		return path, err
	}
	if converted {
		log.WithField("converted", filepath.Base(workPath)).Info("converted to jpeg")
	}

	lat, lon := geo.Encode(c)
	if err := w.tags.WriteGPS(workPath, lat, lon); err != nil {
		log.WithError(err).Error("error saving GPS")
		if converted {
			_ = os.Remove(workPath)
		}
		return path, fmt.Errorf("write gps to %s: %w", filepath.Base(workPath), err)
	}
	log.WithField("coordinate", c.String()).Info("saved GPS")

	if converted {
		if err := os.Remove(path); err != nil {
			log.WithError(err).Debug("could not remove original")
		} else {
			log.Info("removed original file")
		}
	}
	return workPath, nil
}
