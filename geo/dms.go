package geo

import "math"

// Hemisphere reference letters as stored in GPS tags.
const (
	North = "N"
	South = "S"
	East  = "E"
	West  = "W"
)

// SecondsDenominator is the fixed rational denominator used for seconds.
// 1/10000 of an arc second is about 3 mm on the ground.
const SecondsDenominator = 10000

// HemispherePair lists the reference for non-negative values first.
type HemispherePair [2]string

var (
	LatitudeRefs  = HemispherePair{North, South}
	LongitudeRefs = HemispherePair{East, West}
)

// DMS is one axis in degrees/minutes/seconds with its hemisphere reference.
// Seconds is expressed in units of 1/SecondsDenominator.
type DMS struct {
	Degrees uint32
	Minutes uint32
	Seconds uint32
	Ref     string
}

// Decimal returns the signed decimal-degree value of d.
func (d DMS) Decimal() float64 {
	return DMSToDecimal(float64(d.Degrees), float64(d.Minutes), float64(d.Seconds)/SecondsDenominator, d.Ref)
}

// DMSToDecimal converts degrees, minutes and seconds to decimal degrees,
// negating the result for the southern and western hemispheres.
func DMSToDecimal(degrees, minutes, seconds float64, ref string) float64 {
	decimal := degrees + minutes/60 + seconds/3600
	if ref == South || ref == West {
		decimal = -decimal
	}
	return decimal
}

// DecimalToDMS splits a decimal-degree value into integer degrees, integer
// minutes and fixed-point seconds. The reference is pair[0] for values >= 0.
func DecimalToDMS(decimal float64, pair HemispherePair) DMS {
	ref := pair[0]
	if decimal < 0 {
		ref = pair[1]
	}
	abs := math.Abs(decimal)

	deg := math.Floor(abs)
	t := (abs - deg) * 60
	min := math.Floor(t)
	sec := math.Round((t - min) * 60 * SecondsDenominator)

	return DMS{
		Degrees: uint32(deg),
		Minutes: uint32(min),
		Seconds: uint32(sec),
		Ref:     ref,
	}
}

// Encode converts both axes of c to DMS.
func Encode(c Coordinate) (lat, lon DMS) {
	return DecimalToDMS(c.Lat, LatitudeRefs), DecimalToDMS(c.Lon, LongitudeRefs)
}

// Decode is the inverse of Encode.
func Decode(lat, lon DMS) Coordinate {
	return Coordinate{Lat: lat.Decimal(), Lon: lon.Decimal()}
}
