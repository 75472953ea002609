package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const previewMaxSize = 800

// generateThumbnail scales srcPath to fit in maxSize and saves it as destPath.
func generateThumbnail(srcPath, destPath string, maxSize int) error {
	srcImg, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}

	bounds := srcImg.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// Never upscale small images.
	thumbImg := srcImg
	if width > maxSize || height > maxSize {
		thumbImg = imaging.Fit(srcImg, maxSize, maxSize, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create preview directory: %w", err)
	}
	if err := imaging.Save(thumbImg, destPath, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	return nil
}

// previewer writes JPEG previews for the manual-entry prompt into dir.
type previewer struct {
	dir string
}

// Preview returns the path of the preview, reusing one that is newer than
// the photo.
func (p previewer) Preview(path string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	previewPath := filepath.Join(p.dir, base+".jpg")

	if pi, err := os.Stat(previewPath); err == nil {
		if si, err := os.Stat(path); err == nil && !pi.ModTime().Before(si.ModTime()) {
			return previewPath, nil
		}
	}
	if err := generateThumbnail(path, previewPath, previewMaxSize); err != nil {
		return "", fmt.Errorf("preview for %s: %w", filepath.Base(path), err)
	}
	return previewPath, nil
}
