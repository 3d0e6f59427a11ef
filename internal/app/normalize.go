package app

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"caffio/internal/domain"
)

// NormalizePOI flattens a provider feature onto prior. Fields missing from the
// feature keep their prior value. It fails when the geometry is not a point.
func NormalizePOI(f *geojson.Feature, prior domain.POIDetails) (domain.POIDetails, bool) {
	if f == nil {
		return prior, false
	}
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return prior, false
	}

	out := prior
	props := map[string]any(f.Properties)
	if s := lookupStr(props, "name"); s != "" {
		out.Name = s
	}
	if s := lookupStr(props, "address"); s != "" {
		out.Address = s
	}
	if s := lookupStr(props, "full_address"); s != "" {
		out.FullAddress = s
	}

	for _, c := range []struct {
		node string
		dst  *string
	}{
		{"district", &out.District},
		{"neighborhood", &out.Neighborhood},
		{"locality", &out.Locality},
		{"place", &out.Place},
		{"postcode", &out.Postcode},
		{"region", &out.Region},
		{"country", &out.Country},
	} {
		if name, ok := contextName(props, c.node); ok {
			*c.dst = name
		}
	}
	if name, ok := contextName(props, "place"); ok && out.City == "" {
		out.City = name
	}

	lat, lng := pt.Lat(), pt.Lon()
	out.Latitude = &lat
	out.Longitude = &lng
	return out, true
}

// DecodePOI decodes one raw provider feature. Point coordinates must be
// exactly two numbers, otherwise domain.ErrNoGeometry.
func DecodePOI(raw []byte) (*geojson.Feature, error) {
	if err := domain.CheckPointGeometry(raw); err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeature(raw)
}

// contextName reports the name of an administrative context node, and whether
// the node is present at all.
func contextName(props map[string]any, node string) (string, bool) {
	n, ok := lookupAny(props, "context."+node).(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := n["name"].(string)
	return s, ok
}

// addressFromFeature maps a reverse geocode or retrieve result onto the
// map-center address.
func addressFromFeature(f *geojson.Feature, lng, lat float64) domain.Address {
	props := map[string]any(f.Properties)
	formatted := lookupStr(props, "formatted")
	if formatted == "" {
		formatted = lookupStr(props, "full_address")
	}
	if formatted == "" {
		formatted = lookupStr(props, "place_name")
	}
	return domain.Address{
		Address1:         firstNonEmpty(lookupStr(props, "address_line1"), lookupStr(props, "address")),
		Address2:         lookupStr(props, "address_line2"),
		FormattedAddress: formatted,
		City:             lookupStr(props, "context.place.name"),
		Region:           lookupStr(props, "context.region.name"),
		PostalCode:       lookupStr(props, "context.postcode.name"),
		Country:          lookupStr(props, "context.country.name"),
		Lat:              lat,
		Lng:              lng,
	}
}
