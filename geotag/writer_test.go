package geotag

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoGeotagger/geo"
)

const gpsTolerance = 1e-6

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 20), B: 90, A: uint8(40 + x*10)})
		}
	}
	return img
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, testImage()))
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, imaging.Save(testImage(), path, imaging.JPEGQuality(90)))
}

func readLatLong(t *testing.T, path string) (float64, float64) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	x, err := exif.Decode(f)
	require.NoError(t, err)
	lat, lon, err := x.LatLong()
	require.NoError(t, err)
	return lat, lon
}

func newTestWriter() *Writer {
	logger, _ := test.NewNullLogger()
	return NewWriter(JPEGTagWriter{}, 0, logger)
}

func TestWriteCoordinates_PNGIsConverted(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "TRIP_20220815_121500.png")
	writePNG(t, src)

	want := geo.Coordinate{Lat: 48.8566, Lon: 2.3522}
	got, err := newTestWriter().WriteCoordinates(src, want)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "TRIP_20220815_121500.jpg"), got)
	assert.NoFileExists(t, src)
	assert.FileExists(t, got)

	lat, lon := readLatLong(t, got)
	assert.InDelta(t, want.Lat, lat, gpsTolerance)
	assert.InDelta(t, want.Lon, lon, gpsTolerance)

	img, err := imaging.Open(got)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 12, img.Bounds().Dy())
}

func TestWriteCoordinates_JPEGInPlace(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "photo.JPG")
	writeJPEG(t, p)

	want := geo.Coordinate{Lat: -33.8675, Lon: -70.6483}
	got, err := newTestWriter().WriteCoordinates(p, want)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	lat, lon := readLatLong(t, p)
	assert.InDelta(t, want.Lat, lat, gpsTolerance)
	assert.InDelta(t, want.Lon, lon, gpsTolerance)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteCoordinates_OverwritesExistingGPS(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, p)
	w := newTestWriter()

	_, err := w.WriteCoordinates(p, geo.Coordinate{Lat: 10, Lon: 20})
	require.NoError(t, err)
	_, err = w.WriteCoordinates(p, geo.Coordinate{Lat: 40.7021846, Lon: -74.0164093})
	require.NoError(t, err)

	lat, lon := readLatLong(t, p)
	assert.InDelta(t, 40.7021846, lat, gpsTolerance)
	assert.InDelta(t, -74.0164093, lon, gpsTolerance)
}

func TestWriteCoordinates_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scan.bmp")
	content := []byte("BM not really a bitmap")
	require.NoError(t, os.WriteFile(p, content, 0o644))

	got, err := newTestWriter().WriteCoordinates(p, geo.Coordinate{Lat: 1, Lon: 1})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, p, got)

	after, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, content, after)
}

func TestWriteCoordinates_TIFFIsNotPersisted(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scan.tiff")
	require.NoError(t, imaging.Save(testImage(), p))
	before, err := os.ReadFile(p)
	require.NoError(t, err)

	got, err := newTestWriter().WriteCoordinates(p, geo.Coordinate{Lat: 1, Lon: 1})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, p, got)

	after, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestWriteCoordinates_NoTagWriter(t *testing.T) {
	logger, _ := test.NewNullLogger()
	w := NewWriter(nil, 0, logger)

	got, err := w.WriteCoordinates("/photos/a.jpg", geo.Coordinate{Lat: 1, Lon: 1})
	assert.ErrorIs(t, err, ErrWriterUnavailable)
	assert.Equal(t, "/photos/a.jpg", got)
}

func TestWriteCoordinates_InvalidCoordinate(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.png")
	writePNG(t, p)

	got, err := newTestWriter().WriteCoordinates(p, geo.Coordinate{Lat: 91, Lon: 0})
	assert.ErrorIs(t, err, geo.ErrOutOfRange)
	assert.Equal(t, p, got)
	assert.NoFileExists(t, filepath.Join(dir, "a.jpg"))
}

type failingTags struct{}

func (failingTags) WriteGPS(string, geo.DMS, geo.DMS) error { return errors.New("disk full") }

func TestWriteCoordinates_FailedWriteKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.png")
	writePNG(t, p)
	before, err := os.ReadFile(p)
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	got, err := NewWriter(failingTags{}, 0, logger).WriteCoordinates(p, geo.Coordinate{Lat: 1, Lon: 1})
	assert.Error(t, err)
	assert.Equal(t, p, got)
	assert.NoFileExists(t, filepath.Join(dir, "a.jpg"))

	after, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NotEmpty(t, hook.AllEntries())
}

func TestEnsureContainer(t *testing.T) {
	dir := t.TempDir()

	jpg := filepath.Join(dir, "a.jpeg")
	got, converted, err := EnsureContainer(jpg, 95)
	require.NoError(t, err)
	assert.False(t, converted)
	assert.Equal(t, jpg, got)

	pngPath := filepath.Join(dir, "b.PNG")
	writePNG(t, pngPath)
	got, converted, err = EnsureContainer(pngPath, 95)
	require.NoError(t, err)
	assert.True(t, converted)
	assert.Equal(t, filepath.Join(dir, "b.jpg"), got)
	assert.FileExists(t, pngPath, "conversion alone must not remove the original")

	_, _, err = EnsureContainer(filepath.Join(dir, "c.gif"), 95)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, _, err = EnsureContainer(filepath.Join(dir, "missing.png"), 95)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
}

func TestToRGB(t *testing.T) {
	out := toRGB(testImage())
	for i := 3; i < len(out.Pix); i += 4 {
		require.Equal(t, uint8(0xff), out.Pix[i])
	}
	assert.Equal(t, color.NRGBA{R: 16, G: 20, B: 90, A: 0xff}, out.NRGBAAt(1, 1))
}
