package domain

import (
	"context"
	"io"

	"github.com/paulmach/orb/geojson"
)

type CafeRepository interface {
	ListCafes(ctx context.Context) ([]Cafe, error)
	InsertCafe(ctx context.Context, c NewCafe) (Cafe, error)
	UpdateProviderData(ctx context.Context, mapboxID string, s ProviderSnapshot) error
}

// Geocoder is the geocoding/POI provider.
type Geocoder interface {
	Retrieve(ctx context.Context, mapboxID, sessionToken string) (*geojson.Feature, error)
	Suggest(ctx context.Context, query string, opts SuggestOptions) ([]Suggestion, error)
	ReverseGeocode(ctx context.Context, lng, lat float64) (*geojson.Feature, error)
	DistanceMatrix(ctx context.Context, origin Coords, destinations []Coords) (Matrix, error)
}

type ImageStore interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (publicURL string, err error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
