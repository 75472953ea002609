package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "photogeotagger.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	conf, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "photos", conf.Paths.Targets)
	assert.Equal(t, 2022, conf.Timestamp.FixedYear)
	require.Len(t, conf.Timestamp.DeviceOffsets, 1)
	assert.Equal(t, "SAMSUNG", conf.Timestamp.DeviceOffsets[0].Prefix)
	assert.Equal(t, 9*time.Hour, conf.Timestamp.DeviceOffsets[0].Offset)
	assert.Equal(t, 95, conf.Writer.JPEGQuality)
	assert.Equal(t, 4, conf.CacheSizeMB())
	assert.Empty(t, conf.Path)
}

func TestLoad_FileAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	p := writeConfig(t, `
paths:
  reference: /data/photo_all
  targets: /data/photos
timestamp:
  fixedYear: 2019
  deviceOffsets:
    - prefix: GOPRO
      offset: 2h
resolver:
  maxDelta: 6h
cache:
  enabled: false
log:
  level: debug
`)
	t.Setenv("PHOTOGEO_WRITER_JPEGQUALITY", "80")

	conf, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, p, conf.Path)
	assert.Equal(t, "/data/photo_all", conf.Paths.Reference)
	assert.Equal(t, 2019, conf.Timestamp.FixedYear)
	assert.Equal(t, 6*time.Hour, conf.Resolver.MaxDelta)
	assert.Equal(t, 0, conf.CacheSizeMB())
	assert.Equal(t, "debug", conf.Log.Level)
	assert.Equal(t, 80, conf.Writer.JPEGQuality)

	tc := conf.TimestampConfig()
	require.Len(t, tc.DeviceOffsets, 1)
	assert.Equal(t, "GOPRO", tc.DeviceOffsets[0].Prefix)
	assert.Equal(t, 2*time.Hour, tc.DeviceOffsets[0].Offset)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PHOTOGEO_LOG_FORMAT=json\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("PHOTOGEO_LOG_FORMAT") })

	conf, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "json", conf.Log.Format)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	valid, err := Load("")
	require.NoError(t, err)

	c := *valid
	c.Log.Level = "verbose"
	assert.Error(t, c.Validate())

	c = *valid
	c.Writer.JPEGQuality = 101
	assert.Error(t, c.Validate())

	c = *valid
	c.Paths.Targets = ""
	assert.Error(t, c.Validate())

	c = *valid
	c.Timestamp.Pattern = `(\d{2})`
	assert.Error(t, c.Validate())
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
