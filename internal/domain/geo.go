package domain

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

type Coords struct{ Lat, Lon float64 }

// Point returns the coordinates in [lon, lat] order.
func (c Coords) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// IsZero reports the (0,0) placeholder used before a location is known.
func (c Coords) IsZero() bool { return c.Lat == 0 && c.Lon == 0 }

// Address is the last known map-center address. It is replaced wholesale on
// every reverse geocode or suggestion pick.
type Address struct {
	Address1         string  `json:"address1"`
	Address2         string  `json:"address2"`
	FormattedAddress string  `json:"formattedAddress"`
	City             string  `json:"city"`
	Region           string  `json:"region"`
	PostalCode       string  `json:"postalCode"`
	Country          string  `json:"country"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
}

// POIDetails is the flat record the admin intake form is filled from.
type POIDetails struct {
	MapboxID     string   `json:"mapbox_id"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	FullAddress  string   `json:"full_address"`
	City         string   `json:"city"`
	Place        string   `json:"place"`
	District     string   `json:"district"`
	Neighborhood string   `json:"neighborhood"`
	Locality     string   `json:"locality"`
	Region       string   `json:"region"`
	Country      string   `json:"country"`
	Postcode     string   `json:"postcode"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

// Suggestion is one autocomplete result from the provider.
type Suggestion struct {
	MapboxID       string   `json:"mapbox_id"`
	Name           string   `json:"name"`
	FeatureType    string   `json:"feature_type,omitempty"`
	PlaceFormatted string   `json:"place_formatted,omitempty"`
	FullAddress    string   `json:"full_address,omitempty"`
	Distance       *float64 `json:"distance,omitempty"`
}

// SuggestOptions mirrors the provider suggest parameters.
type SuggestOptions struct {
	SessionToken string
	Proximity    *Coords
	Types        []string
}

// Matrix is a distance/duration matrix in meters and seconds. Nil cells
// mean the provider could not route between the pair.
type Matrix struct {
	Distances [][]*float64
	Durations [][]*float64
}

// CheckPointGeometry reports ErrNoGeometry unless the raw GeoJSON feature has
// a Point geometry with exactly two numeric coordinates. It runs on the bytes
// because decoding into orb.Point zero-pads short coordinate arrays.
func CheckPointGeometry(feature []byte) error {
	var f struct {
		Geometry *struct {
			Type        string            `json:"type"`
			Coordinates []json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
	}
	if err := json.Unmarshal(feature, &f); err != nil {
		return fmt.Errorf("%w: %v", ErrNoGeometry, err)
	}
	if f.Geometry == nil || f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) != 2 {
		return ErrNoGeometry
	}
	for _, c := range f.Geometry.Coordinates {
		var v any
		if err := json.Unmarshal(c, &v); err != nil {
			return ErrNoGeometry
		}
		if _, ok := v.(float64); !ok {
			return ErrNoGeometry
		}
	}
	return nil
}
