package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"

	"photoGeotagger/geo"
	"photoGeotagger/geotag"
	"photoGeotagger/reference"
)

type ExifData struct {
	DateTimeOriginal time.Time `json:"dateTimeOriginal,omitempty"`
	CameraMake       string    `json:"cameraMake,omitempty"`
	CameraModel      string    `json:"cameraModel,omitempty"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	HasLocation      bool      `json:"hasLocation"`
}

func init() {
	// Register manufacturer-specific note parsers so some vendor fields decode correctly.
	exif.RegisterParsers(mknote.All...)
}

func decodeExif(path string) (*exif.Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return exif.Decode(f)
}

// ExtractExif reads the EXIF fields kept in the run ledger. Best effort:
// missing tags are left zero.
func ExtractExif(path string) (*ExifData, error) {
	x, err := decodeExif(path)
	if err != nil {
		return nil, err
	}

	var out ExifData
	if tag, err := x.Get(exif.DateTimeOriginal); err == nil {
		if s, err2 := tag.StringVal(); err2 == nil {
			if t, perr := parseExifTime(s); perr == nil {
				out.DateTimeOriginal = t
			}
		}
	} else if t, err := x.DateTime(); err == nil {
		out.DateTimeOriginal = t
	}
	if tag, err := x.Get(exif.Make); err == nil {
		if s, err2 := tag.StringVal(); err2 == nil {
			out.CameraMake = s
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if s, err2 := tag.StringVal(); err2 == nil {
			out.CameraModel = s
		}
	}
	if lat, lon, err := x.LatLong(); err == nil {
		out.Latitude = lat
		out.Longitude = lon
		out.HasLocation = true
	}
	return &out, nil
}

func parseExifTime(s string) (time.Time, error) {
	// EXIF time commonly "2006:01:02 15:04:05"
	layouts := []string{
		"2006:01:02 15:04:05",
		time.RFC3339,
	}
	var first error
	for _, l := range layouts {
		if t, err := time.ParseInLocation(l, s, time.UTC); err == nil {
			return t, nil
		} else if first == nil {
			first = err
		}
	}
	if first == nil {
		first = fmt.Errorf("unable to parse exif time: %q", s)
	}
	return time.Time{}, first
}

// exifGPSReader reads reference photo positions. Containers goexif cannot
// parse report ErrNoGPS instead of a decode failure.
type exifGPSReader struct{}

func (exifGPSReader) ReadGPS(path string) (geo.Coordinate, error) {
	switch geotag.DetectFormat(path) {
	case geotag.FormatJPEG, geotag.FormatTIFF:
	default:
		return geo.Coordinate{}, reference.ErrNoGPS
	}

	x, err := decodeExif(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return geo.Coordinate{}, err
		}
		return geo.Coordinate{}, fmt.Errorf("%w: %v", reference.ErrNoGPS, err)
	}
	lat, lon, err := x.LatLong()
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: %v", reference.ErrNoGPS, err)
	}
	c := geo.Coordinate{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return geo.Coordinate{}, err
	}
	return c, nil
}
