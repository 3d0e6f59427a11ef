package app

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"caffio/internal/domain"
)

var (
	DefaultCenter = [2]float64{-79.4512, 43.6568}
	DefaultZoom   = 13.0
)

// MapConfig is what the map shell starts from before the user location is known.
type MapConfig struct {
	Center [2]float64 `json:"center"` // [lng, lat]
	Zoom   float64    `json:"zoom"`
	Style  string     `json:"style,omitempty"`
}

func (c MapConfig) withDefaults() MapConfig {
	if c.Center == [2]float64{} {
		c.Center = DefaultCenter
	}
	if c.Zoom == 0 {
		c.Zoom = DefaultZoom
	}
	return c
}

func (s *QueryService) MapConfig() MapConfig { return s.mapCfg }

// Locate reverse geocodes the map center. A newer call for the same session
// wins; the one it replaced returns ErrSuperseded.
func (s *QueryService) Locate(ctx context.Context, session string, lng, lat float64) (domain.Address, error) {
	ctx, t, done := s.gate.Begin(ctx, sessionKey("locate", session))
	defer done()

	f, err := s.geo.ReverseGeocode(ctx, lng, lat)
	if !s.gate.Current(t) {
		return domain.Address{}, domain.ErrSuperseded
	}
	if err != nil {
		return domain.Address{}, err
	}
	if f == nil {
		return domain.Address{}, domain.ErrNotFound
	}
	return addressFromFeature(f, lng, lat), nil
}

// Markers lists the cafés as map markers.
func (s *QueryService) Markers(ctx context.Context) (*geojson.FeatureCollection, error) {
	cafes, err := s.ListCafes(ctx)
	if err != nil {
		return nil, err
	}
	return BuildMarkers(cafes), nil
}

// BuildMarkers makes one point feature per café; cafés without coordinates are skipped.
func BuildMarkers(cafes []domain.Cafe) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range cafes {
		cc := c.Coords()
		if cc == nil {
			continue
		}
		f := geojson.NewFeature(cc.Point())
		f.ID = c.ID
		f.Properties["id"] = c.ID
		f.Properties["mapbox_id"] = c.MapboxID
		if c.Name != nil {
			f.Properties["name"] = *c.Name
		}
		if c.Stale {
			f.Properties["stale"] = true
		}
		fc.Append(f)
	}
	return fc
}
