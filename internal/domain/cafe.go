package domain

import (
	"encoding/json"
	"time"
)

// Cafe is a curated café row. Name, address and coordinates are provider
// sourced and may be refreshed on read; the rest is entered by a curator.
type Cafe struct {
	ID            string          `json:"id"`
	MapboxID      string          `json:"mapbox_id"`
	Name          *string         `json:"name"`
	FullAddress   *string         `json:"full_address"`
	Latitude      *float64        `json:"latitude"`
	Longitude     *float64        `json:"longitude"`
	MapboxData    json.RawMessage `json:"mapbox_data,omitempty"`
	Description   *string         `json:"description"`
	WebsiteURL    *string         `json:"website_url"`
	InstagramURL  *string         `json:"instagram_url"`
	HeroImageURL  *string         `json:"hero_image_url"`
	GalleryImages []string        `json:"gallery_images"`
	Approved      bool            `json:"approved"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`

	// Stale is set when live provider data could not be fetched and the
	// stored values are served instead. Never persisted.
	Stale bool `json:"stale,omitempty"`
}

// Coords returns the café position, or nil when either coordinate is unknown.
func (c Cafe) Coords() *Coords {
	if c.Latitude == nil || c.Longitude == nil {
		return nil
	}
	return &Coords{Lat: *c.Latitude, Lon: *c.Longitude}
}

// NewCafe is the insert payload after validation and coercion.
type NewCafe struct {
	MapboxID      string
	Name          *string
	FullAddress   *string
	Latitude      *float64
	Longitude     *float64
	MapboxData    json.RawMessage
	Description   *string
	WebsiteURL    *string
	InstagramURL  *string
	HeroImageURL  *string
	GalleryImages []string
	Approved      bool
}

// ProviderSnapshot is the provider-owned part of a café, written back by the refresher.
type ProviderSnapshot struct {
	Name        *string
	FullAddress *string
	Latitude    *float64
	Longitude   *float64
	MapboxData  json.RawMessage
}

// CafeIndex is the dual view over one café set: the ordered slice is the
// source of truth and ByID is derived from it.
type CafeIndex struct {
	ByID  map[string]Cafe `json:"byId"`
	Array []Cafe          `json:"array"`
}

func NewCafeIndex(cafes []Cafe) CafeIndex {
	idx := CafeIndex{ByID: make(map[string]Cafe, len(cafes)), Array: cafes}
	for _, c := range cafes {
		idx.ByID[c.MapboxID] = c
	}
	return idx
}

func (i CafeIndex) Has(mapboxID string) bool {
	_, ok := i.ByID[mapboxID]
	return ok
}
