package reference

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultExtensions are the image types considered when listing a directory.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".tiff", ".bmp", ".gif"}

// Extractor pulls a capture time out of a filename.
type Extractor interface {
	Extract(filename string) (time.Time, error)
}

// Entry is one timestamped photo of the reference library.
type Entry struct {
	Time     time.Time
	Path     string
	Filename string
}

// IsImageFile reports whether name has one of exts, ignoring case.
func IsImageFile(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// ListImages returns the image files directly inside dir in directory order.
// Subdirectories are not descended into.
func ListImages(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name(), exts) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// BuildIndex catalogs every image in dir whose filename yields a timestamp.
// A missing directory gives an empty index and a warning.
func BuildIndex(dir string, codec Extractor, exts []string, log logrus.FieldLogger) []Entry {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	names, err := ListImages(dir, exts)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.WithField("dir", dir).Warn("reference directory not found")
		} else {
			log.WithField("dir", dir).WithError(err).Warn("cannot list reference directory")
		}
		return nil
	}

	log.WithField("dir", dir).Info("indexing reference images")
	index := make([]Entry, 0, len(names))
	for _, name := range names {
		t, err := codec.Extract(name)
		if err != nil {
			log.WithField("file", name).WithError(err).Debug("reference image skipped")
			continue
		}
		index = append(index, Entry{
			Time:     t,
			Path:     filepath.Join(dir, name),
			Filename: name,
		})
	}
	log.WithField("dir", dir).Infof("indexed %d of %d reference images", len(index), len(names))
	return index
}
