package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange is returned for a latitude or longitude outside its domain.
var ErrOutOfRange = errors.New("coordinate out of range")

// Coordinate is a signed decimal-degree position.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that both axes are finite and in range.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v: %w", c.Lat, ErrOutOfRange)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %v: %w", c.Lon, ErrOutOfRange)
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.7f, %.7f)", c.Lat, c.Lon)
}
