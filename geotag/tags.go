package geotag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	exif "github.com/dsoprea/go-exif/v2"
	exifcommon "github.com/dsoprea/go-exif/v2/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure"

	"photoGeotagger/geo"
)

const processingSoftware = "photoGeotagger"

// TagWriter persists a GPS position into an image file.
type TagWriter interface {
	WriteGPS(path string, lat, lon geo.DMS) error
}

// JPEGTagWriter rewrites the EXIF GPS IFD of JPEG files. Other tags already
// present in the file are kept.
type JPEGTagWriter struct{}

// WriteGPS sets latitude, longitude and both hemisphere references in one
// EXIF rewrite. The file is replaced only after the new content is fully
// written to a sibling temp file.
func (JPEGTagWriter) WriteGPS(path string, lat, lon geo.DMS) (err error) {
	if DetectFormat(path) != FormatJPEG {
		return fmt.Errorf("%s: tag writing supports jpeg only: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while writing exif to %s: %v", path, rec)
		}
	}()

	sl, err := parseJpeg(path)
	if err != nil {
		return err
	}

	rootIb, err := getOrCreateRootIfdBuilder(sl)
	if err != nil {
		return err
	}

	gpsIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/GPSInfo")
	if err != nil {
		return fmt.Errorf("GetOrCreateIbFromRootIb(GPSInfo): %w", err)
	}

	values := []struct {
		name  string
		value interface{}
	}{
		{"GPSLatitudeRef", lat.Ref},
		{"GPSLatitude", dmsRationals(lat)},
		{"GPSLongitudeRef", lon.Ref},
		{"GPSLongitude", dmsRationals(lon)},
	}
	for _, v := range values {
		if err := gpsIb.SetStandardWithName(v.name, v.value); err != nil {
			return fmt.Errorf("SetStandardWithName(%s): %w", v.name, err)
		}
	}

	if err := sl.SetExif(rootIb); err != nil {
		return fmt.Errorf("SetExif(): %w", err)
	}
	return replaceFile(path, sl)
}

func dmsRationals(d geo.DMS) []exifcommon.Rational {
	return []exifcommon.Rational{
		{Numerator: d.Degrees, Denominator: 1},
		{Numerator: d.Minutes, Denominator: 1},
		{Numerator: d.Seconds, Denominator: geo.SecondsDenominator},
	}
}

func parseJpeg(path string) (*jpegstructure.SegmentList, error) {
	jmp := jpegstructure.NewJpegMediaParser()

	intfc, err := jmp.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("ParseFile(): %w", err)
	}
	sl, ok := intfc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected jpeg structure %T", path, intfc)
	}
	return sl, nil
}

// getOrCreateRootIfdBuilder starts from the existing EXIF block, or from an
// empty IFD0 when the file has none. A damaged block is an error rather than
// being silently replaced.
func getOrCreateRootIfdBuilder(sl *jpegstructure.SegmentList) (*exif.IfdBuilder, error) {
	_, _, err := sl.FindExif()
	if err == nil {
		rootIb, err := sl.ConstructExifBuilder()
		if err != nil {
			return nil, fmt.Errorf("ConstructExifBuilder(): %w", err)
		}
		return rootIb, nil
	}
	if !errors.Is(err, exif.ErrNoExif) {
		return nil, fmt.Errorf("FindExif(): %w", err)
	}

	im := exif.NewIfdMappingWithStandard()
	ti := exif.NewTagIndex()
	if err := exif.LoadStandardTags(ti); err != nil {
		return nil, fmt.Errorf("exif.LoadStandardTags(): %w", err)
	}

	rootIb := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	if err := rootIb.AddStandardWithName("ProcessingSoftware", processingSoftware); err != nil {
		return nil, fmt.Errorf("AddStandardWithName(ProcessingSoftware): %w", err)
	}
	return rootIb, nil
}

func replaceFile(path string, sl *jpegstructure.SegmentList) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := sl.Write(tmp); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write jpeg: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	_ = os.Chmod(tmpPath, info.Mode().Perm())

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
