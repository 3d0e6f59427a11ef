package app

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"caffio/internal/domain"
)

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// optString: string field of a payload, nil when absent, null or empty.
func optString(m map[string]any, key string) *string {
	switch v := m[key].(type) {
	case string:
		return ptrStr(strings.TrimSpace(v))
	case float64, bool:
		s := fmt.Sprint(v)
		return &s
	}
	return nil
}

// optFloat: number from a payload field that may arrive as a string.
func optFloat(m map[string]any, key string) (*float64, error) {
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case float64:
		f := v
		return &f, nil
	case int:
		f := float64(v)
		return &f, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, &domain.ValidationError{Field: key, Message: key + " must be numeric"}
		}
		return &f, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, &domain.ValidationError{Field: key, Message: key + " must be numeric"}
		}
		return &f, nil
	}
	return nil, &domain.ValidationError{Field: key, Message: key + " must be numeric"}
}

// truthy follows loose boolean coercion: false, 0, "", "false" and null are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s != "" && s != "false" && s != "0"
	}
	return true
}

// imageList accepts []any with either strings or {url/src}, or an object whose
// values are image URLs (taken in key order). Anything else is nil.
func imageList(v any) []string {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			items = append(items, t[k])
		}
	default:
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch t := it.(type) {
		case string:
			if t != "" {
				out = append(out, t)
			}
		case map[string]any:
			if u, ok := t["url"].(string); ok && u != "" {
				out = append(out, u)
				continue
			}
			if u, ok := t["src"].(string); ok && u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}

/********** create payload mapper **********/

// mapNewCafe validates and coerces a create payload.
func mapNewCafe(p map[string]any) (domain.NewCafe, error) {
	if p == nil {
		p = map[string]any{}
	}
	id := optString(p, "mapbox_id")
	if id == nil || !truthy(p["mapbox_id"]) {
		return domain.NewCafe{}, &domain.ValidationError{Field: "mapbox_id", Message: "mapbox_id is required"}
	}

	data := p["context_json"]
	if !truthy(data) {
		data = p["mapbox_data"]
	}
	if !truthy(data) {
		return domain.NewCafe{}, &domain.ValidationError{Field: "mapbox_data", Message: "mapbox_data (context_json) is required"}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return domain.NewCafe{}, &domain.ValidationError{Field: "mapbox_data", Message: "mapbox_data must be a JSON document"}
	}

	lat, err := optFloat(p, "latitude")
	if err != nil {
		return domain.NewCafe{}, err
	}
	lng, err := optFloat(p, "longitude")
	if err != nil {
		return domain.NewCafe{}, err
	}

	return domain.NewCafe{
		MapboxID:      *id,
		Name:          optString(p, "name"),
		FullAddress:   optString(p, "full_address"),
		Latitude:      lat,
		Longitude:     lng,
		MapboxData:    raw,
		Description:   optString(p, "description"),
		WebsiteURL:    optString(p, "website_url"),
		InstagramURL:  optString(p, "instagram_url"),
		HeroImageURL:  optString(p, "hero_image_url"),
		GalleryImages: imageList(p["gallery_images"]),
		Approved:      truthy(p["approved"]),
	}, nil
}

/********** provider feature mappers **********/

// snapshotFromFeature extracts the provider-owned café fields.
func snapshotFromFeature(f *geojson.Feature) (domain.ProviderSnapshot, error) {
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return domain.ProviderSnapshot{}, domain.ErrNoGeometry
	}
	raw, err := json.Marshal(f)
	if err != nil {
		log.Error().Err(err).Str("context", "snapshotFromFeature").Msg("marshal feature failed")
		return domain.ProviderSnapshot{}, err
	}
	props := map[string]any(f.Properties)
	lat, lng := pt.Lat(), pt.Lon()
	return domain.ProviderSnapshot{
		Name:        ptrStr(lookupStr(props, "name")),
		FullAddress: ptrStr(firstNonEmpty(lookupStr(props, "address"), lookupStr(props, "formatted"))),
		Latitude:    &lat,
		Longitude:   &lng,
		MapboxData:  raw,
	}, nil
}

// mergeLive lays live provider values over the stored row; stored values
// survive where the provider has nothing.
func mergeLive(c domain.Cafe, s domain.ProviderSnapshot) domain.Cafe {
	if s.Name != nil {
		c.Name = s.Name
	}
	if s.FullAddress != nil {
		c.FullAddress = s.FullAddress
	}
	if s.Latitude != nil {
		c.Latitude = s.Latitude
	}
	if s.Longitude != nil {
		c.Longitude = s.Longitude
	}
	if len(s.MapboxData) > 0 {
		c.MapboxData = s.MapboxData
	}
	c.Stale = false
	return c
}
