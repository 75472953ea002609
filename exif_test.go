package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoGeotagger/reference"
)

func TestExifGPSReader(t *testing.T) {
	dir := t.TempDir()
	tagged := filepath.Join(dir, "tagged.jpg")
	plain := filepath.Join(dir, "plain.jpg")
	raster := filepath.Join(dir, "raster.png")
	writeGeotaggedJPEG(t, tagged, sydney)
	writeSampleJPEG(t, plain)
	writeSamplePNG(t, raster)

	c, err := exifGPSReader{}.ReadGPS(tagged)
	require.NoError(t, err)
	assert.InDelta(t, sydney.Lat, c.Lat, gpsTolerance)
	assert.InDelta(t, sydney.Lon, c.Lon, gpsTolerance)

	_, err = exifGPSReader{}.ReadGPS(plain)
	assert.ErrorIs(t, err, reference.ErrNoGPS)

	_, err = exifGPSReader{}.ReadGPS(raster)
	assert.ErrorIs(t, err, reference.ErrNoGPS)

	_, err = exifGPSReader{}.ReadGPS(filepath.Join(dir, "missing.jpg"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, reference.ErrNoGPS)
	assert.True(t, os.IsNotExist(err))
}

func TestExtractExifAndMetadata(t *testing.T) {
	dir := t.TempDir()
	tagged := filepath.Join(dir, "tagged.jpg")
	writeGeotaggedJPEG(t, tagged, paris)

	ed, err := ExtractExif(tagged)
	require.NoError(t, err)
	assert.True(t, ed.HasLocation)
	assert.InDelta(t, paris.Lat, ed.Latitude, gpsTolerance)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(BuildMetadataJSON(tagged, recordMetadata{Provider: "manual", Source: "tagged.png", Converted: true})), &meta))
	assert.Equal(t, "manual", meta["provider"])
	assert.Equal(t, true, meta["converted"])
	exifMeta, ok := meta["exif"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, exifMeta["hasLocation"])

	var bare map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(BuildMetadataJSON(filepath.Join(dir, "missing.jpg"), recordMetadata{Provider: "reference"})), &bare))
	assert.Equal(t, "reference", bare["provider"])
	assert.NotContains(t, bare, "exif")
	assert.NotContains(t, bare, "writeError")
}

func TestParseExifTime(t *testing.T) {
	ts, err := parseExifTime("2022:08:15 12:00:00")
	require.NoError(t, err)
	assert.Equal(t, 15, ts.Day())
	assert.Equal(t, 12, ts.Hour())

	_, err = parseExifTime("yesterday")
	assert.Error(t, err)
}
