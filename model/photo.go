package model

// PhotoRecord is one geotagged photo as published on the map page.
type PhotoRecord struct {
	Lat        float64 `json:"lat" bson:"lat"`
	Lon        float64 `json:"lon" bson:"lon"`
	Img        string  `json:"img" bson:"img"`
	Title      string  `json:"title" bson:"title"`
	Screenshot string  `json:"screenshot,omitempty" bson:"screenshot,omitempty"`
}

// GeoPoint is a GeoJSON point; Coordinates is [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type,omitempty"`
	Coordinates []float64 `bson:"coordinates,omitempty"`
}

// NewGeoPoint builds the GeoJSON point of a record.
func NewGeoPoint(lat, lon float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: []float64{lon, lat}}
}
