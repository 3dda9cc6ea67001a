package models

// GeoJSON represents a GeoJSON Point for MongoDB.
type GeoJSON struct {
	Type        string    `bson:"type" json:"type"`               // Should be "Point"
	Coordinates []float64 `bson:"coordinates" json:"coordinates"` // [longitude, latitude]
}

// LocationData is the location captured from the client (browser geolocation
// plus whatever address detail the user typed in).
type LocationData struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
	Address   string  `bson:"address,omitempty" json:"address,omitempty"`
	City      string  `bson:"city,omitempty" json:"city,omitempty"`
	State     string  `bson:"state,omitempty" json:"state,omitempty"`
	ZipCode   string  `bson:"zip_code,omitempty" json:"zip_code,omitempty"`
}

// GeoPoint converts the location to the GeoJSON shape used by the 2dsphere
// index on listings.
func (l *LocationData) GeoPoint() GeoJSON {
	return GeoJSON{
		Type:        "Point",
		Coordinates: []float64{l.Longitude, l.Latitude},
	}
}
