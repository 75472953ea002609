package publish

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"photoGeotagger/model"
)

// ErrMarkerNotFound is returned when the template lacks the photos array.
var ErrMarkerNotFound = errors.New("photos array marker not found")

const (
	StartMarker = "var photos = ["
	EndMarker   = "];"
)

// Splice replaces the photos array literal in template with records.
// Everything outside "var photos = [" ... "];" is kept byte for byte.
func Splice(template []byte, records []model.PhotoRecord) ([]byte, error) {
	start := bytes.Index(template, []byte(StartMarker))
	if start == -1 {
		return nil, fmt.Errorf("%q: %w", StartMarker, ErrMarkerNotFound)
	}
	rel := bytes.Index(template[start:], []byte(EndMarker))
	if rel == -1 {
		return nil, fmt.Errorf("closing %q: %w", EndMarker, ErrMarkerNotFound)
	}
	end := start + rel

	if records == nil {
		records = []model.PhotoRecord{}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal photos: %w", err)
	}

	var out bytes.Buffer
	out.Grow(len(template) + len(data))
	out.Write(template[:start])
	out.WriteString("var photos = ")
	out.Write(data)
	out.WriteString(";")
	out.Write(template[end+len(EndMarker):])
	return out.Bytes(), nil
}

// WriteHTML reads templatePath, splices records in and writes outputPath.
// Nothing is written when the template has no marker.
func WriteHTML(templatePath, outputPath string, records []model.PhotoRecord) error {
	template, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	page, err := Splice(template, records)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return replaceFile(outputPath, page)
}

// replaceFile writes data next to path and renames it over path, so readers
// never see a half-written page.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	_ = os.Chmod(tmpPath, 0o644)

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
