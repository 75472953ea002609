package reference

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoGeotagger/timestamp"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	return p
}

func defaultCodec(t *testing.T) *timestamp.Codec {
	t.Helper()
	c, err := timestamp.New(timestamp.DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestBuildIndex(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "IMG_20220815_120000.jpg")
	touch(t, dir, "IMG_20220815_130000.PNG")
	touch(t, dir, "SAMSUNG_20220815_210000.jpeg")
	touch(t, dir, "notes_20220815_120000.txt")
	touch(t, dir, "no_timestamp.jpg")
	touch(t, dir, "IMG_20221315_120000.jpg")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "IMG_20220815_140000.jpg"), 0o755))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	touch(t, sub, "IMG_20220815_150000.jpg")

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	index := BuildIndex(dir, defaultCodec(t), nil, logger)
	require.Len(t, index, 3)

	byName := map[string]Entry{}
	for _, e := range index {
		byName[e.Filename] = e
	}
	assert.Equal(t, filepath.Join(dir, "IMG_20220815_120000.jpg"), byName["IMG_20220815_120000.jpg"].Path)
	assert.Equal(t, time.Date(2022, 8, 15, 13, 0, 0, 0, time.UTC), byName["IMG_20220815_130000.PNG"].Time)
	assert.Equal(t, time.Date(2022, 8, 15, 12, 0, 0, 0, time.UTC), byName["SAMSUNG_20220815_210000.jpeg"].Time)

	skipped := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.DebugLevel && e.Message == "reference image skipped" {
			skipped++
		}
	}
	assert.Equal(t, 2, skipped)
}

func TestBuildIndex_MissingDirectory(t *testing.T) {
	logger, hook := test.NewNullLogger()

	index := BuildIndex(filepath.Join(t.TempDir(), "absent"), defaultCodec(t), nil, logger)
	assert.Empty(t, index)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a.JPG", DefaultExtensions))
	assert.True(t, IsImageFile("a.tiff", DefaultExtensions))
	assert.False(t, IsImageFile("a.tif", DefaultExtensions))
	assert.False(t, IsImageFile("a.heic", DefaultExtensions))
	assert.False(t, IsImageFile("jpg", DefaultExtensions))
}
