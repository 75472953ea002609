package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Half a unit of the seconds denominator in degrees, plus float slack.
const roundTripTolerance = 0.51 / SecondsDenominator / 3600

func TestDMSToDecimal(t *testing.T) {
	assert.InDelta(t, 48.8566, DMSToDecimal(48, 51, 23.76, North), 1e-9)
	assert.InDelta(t, -33.8675, DMSToDecimal(33, 52, 3, South), 1e-9)
	assert.InDelta(t, -74.0164093, DMSToDecimal(74, 0, 59.07348, West), 1e-9)
	assert.InDelta(t, 2.3522, DMSToDecimal(2, 21, 7.92, East), 1e-9)
	assert.Equal(t, 0.0, DMSToDecimal(0, 0, 0, North))
}

func TestDecimalToDMS(t *testing.T) {
	d := DecimalToDMS(48.8566, LatitudeRefs)
	assert.Equal(t, DMS{Degrees: 48, Minutes: 51, Seconds: 237600, Ref: North}, d)

	d = DecimalToDMS(-112.9510018, LongitudeRefs)
	assert.Equal(t, West, d.Ref)
	assert.Equal(t, uint32(112), d.Degrees)
	assert.Equal(t, uint32(57), d.Minutes)

	d = DecimalToDMS(0, LatitudeRefs)
	assert.Equal(t, DMS{Ref: North}, d)
}

func TestDecimalToDMS_RoundTrip(t *testing.T) {
	for x := -180.0; x <= 180.0; x += 0.0137 {
		d := DecimalToDMS(x, LongitudeRefs)
		got := d.Decimal()
		assert.InDelta(t, x, got, roundTripTolerance, "value %v", x)
	}

	for _, x := range []float64{-180, 180, -90, 90, 1e-9, -1e-9, 37.2591425, 40.7021846} {
		got := DecimalToDMS(x, LatitudeRefs).Decimal()
		assert.InDelta(t, x, got, roundTripTolerance, "value %v", x)
	}
}

func TestEncodeDecode(t *testing.T) {
	c := Coordinate{Lat: -22.951916, Lon: -43.2104872}
	lat, lon := Encode(c)
	assert.Equal(t, South, lat.Ref)
	assert.Equal(t, West, lon.Ref)

	back := Decode(lat, lon)
	assert.InDelta(t, c.Lat, back.Lat, roundTripTolerance)
	assert.InDelta(t, c.Lon, back.Lon, roundTripTolerance)
}

func TestCoordinateValidate(t *testing.T) {
	assert.NoError(t, Coordinate{Lat: 90, Lon: -180}.Validate())
	assert.ErrorIs(t, Coordinate{Lat: 90.1}.Validate(), ErrOutOfRange)
	assert.ErrorIs(t, Coordinate{Lon: -180.5}.Validate(), ErrOutOfRange)
	assert.ErrorIs(t, Coordinate{Lat: math.NaN()}.Validate(), ErrOutOfRange)
}
