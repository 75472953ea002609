package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestExtract_ValidFilenames(t *testing.T) {
	c := newDefaultCodec(t)

	cases := map[string]time.Time{
		"TRIP_20220815_120000.jpg":       time.Date(2022, 8, 15, 12, 0, 0, 0, time.UTC),
		"IMG_20221231_235959.png":        time.Date(2022, 12, 31, 23, 59, 59, 0, time.UTC),
		"Screenshot 20220101_000000~2.j": time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	for name, want := range cases {
		got, err := c.Extract(name)
		require.NoError(t, err, name)
		assert.True(t, want.Equal(got), "%s: want %v, got %v", name, want, got)
	}
}

func TestExtract_DeviceOffset(t *testing.T) {
	c := newDefaultCodec(t)

	got, err := c.Extract("SAMSUNG_20221127_232618.jpg")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 11, 27, 14, 26, 18, 0, time.UTC), got)

	// Offset may cross midnight.
	got, err = c.Extract("SAMSUNG_20221127_050000.jpg")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 11, 26, 20, 0, 0, 0, time.UTC), got)

	// Prefix must be at the start of the name.
	got, err = c.Extract("IMG_SAMSUNG_20221127_232618.jpg")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 11, 27, 23, 26, 18, 0, time.UTC), got)
}

func TestExtract_NoMatch(t *testing.T) {
	c := newDefaultCodec(t)

	for _, name := range []string{
		"holiday.jpg",
		"IMG_20230815_120000.jpg", // different year
		"IMG_20220815-120000.jpg", // wrong separator
		"IMG_2022081_120000.jpg",
		"",
	} {
		_, err := c.Extract(name)
		assert.ErrorIs(t, err, ErrNoTimestamp, name)
	}
}

func TestExtract_InvalidCalendarValues(t *testing.T) {
	c := newDefaultCodec(t)

	for _, name := range []string{
		"IMG_20221315_120000.jpg", // month 13
		"IMG_20220015_120000.jpg", // month 0
		"IMG_20220230_120000.jpg", // Feb 30
		"IMG_20220229_120000.jpg", // 2022 is not a leap year
		"IMG_20220815_240000.jpg",
		"IMG_20220815_126000.jpg",
		"IMG_20220815_120060.jpg",
	} {
		_, err := c.Extract(name)
		assert.ErrorIs(t, err, ErrInvalidTimestamp, name)
	}
}

func TestNew_CustomConfig(t *testing.T) {
	c, err := New(Config{
		Pattern:   `{year}-(\d{2})-(\d{2}) (\d{2})\.(\d{2})\.(\d{2})`,
		FixedYear: 2019,
		DeviceOffsets: []OffsetRule{
			{Prefix: "GOPRO", Offset: -2 * time.Hour},
		},
	})
	require.NoError(t, err)

	got, err := c.Extract("GOPRO 2019-06-01 10.00.00.jpg")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 6, 1, 12, 0, 0, 0, time.UTC), got)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{Pattern: `(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})`, FixedYear: 2022})
	assert.Error(t, err)

	_, err = New(Config{Pattern: `{year}(\d{2})(\d{2})`, FixedYear: 2022})
	assert.Error(t, err)

	_, err = New(Config{Pattern: DefaultPattern, FixedYear: 0})
	assert.Error(t, err)

	_, err = New(Config{Pattern: `{year}((`, FixedYear: 2022})
	assert.Error(t, err)
}
