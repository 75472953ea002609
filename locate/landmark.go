package locate

import (
	"context"
	"fmt"
	"os"

	"photoGeotagger/geo"
)

// Landmark is a recognized place and its known positions.
type Landmark struct {
	Description string
	Locations   []geo.Coordinate
}

// LandmarkDetector recognizes landmarks in encoded image bytes.
type LandmarkDetector interface {
	DetectLandmarks(ctx context.Context, content []byte) ([]Landmark, error)
}

// LandmarkProvider locates a photo by what it shows. Without a detector it
// never finds anything.
type LandmarkProvider struct {
	Detector LandmarkDetector
}

func (p LandmarkProvider) Name() string { return "landmark" }

// Locate returns the first location of the first landmark that has one.
func (p LandmarkProvider) Locate(ctx context.Context, target Target) (geo.Coordinate, error) {
	if p.Detector == nil {
		return geo.Coordinate{}, fmt.Errorf("landmark detection unavailable: %w", ErrNotFound)
	}
	content, err := os.ReadFile(target.Path)
	if err != nil {
		return geo.Coordinate{}, err
	}
	landmarks, err := p.Detector.DetectLandmarks(ctx, content)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("landmark detection: %w", err)
	}
	for _, lm := range landmarks {
		if len(lm.Locations) > 0 {
			return lm.Locations[0], nil
		}
	}
	return geo.Coordinate{}, fmt.Errorf("no landmark recognized: %w", ErrNotFound)
}
