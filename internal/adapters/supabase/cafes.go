package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"caffio/internal/adapters/observability"
	"caffio/internal/domain"
)

// cafeRow is the table shape; nullable columns are pointers.
type cafeRow struct {
	ID            string          `json:"id"`
	MapboxID      string          `json:"mapbox_id"`
	Name          *string         `json:"name"`
	FullAddress   *string         `json:"full_address"`
	Latitude      *float64        `json:"latitude"`
	Longitude     *float64        `json:"longitude"`
	MapboxData    json.RawMessage `json:"mapbox_data"`
	Description   *string         `json:"description"`
	WebsiteURL    *string         `json:"website_url"`
	InstagramURL  *string         `json:"instagram_url"`
	HeroImageURL  *string         `json:"hero_image_url"`
	GalleryImages []string        `json:"gallery_images"`
	Approved      bool            `json:"approved"`
	CreatedAt     *time.Time      `json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at"`
}

// insertRow leaves id and timestamps to the table defaults.
type insertRow struct {
	MapboxID      string          `json:"mapbox_id"`
	Name          *string         `json:"name"`
	FullAddress   *string         `json:"full_address"`
	Latitude      *float64        `json:"latitude"`
	Longitude     *float64        `json:"longitude"`
	MapboxData    json.RawMessage `json:"mapbox_data"`
	Description   *string         `json:"description"`
	WebsiteURL    *string         `json:"website_url"`
	InstagramURL  *string         `json:"instagram_url"`
	HeroImageURL  *string         `json:"hero_image_url"`
	GalleryImages []string        `json:"gallery_images"`
	Approved      bool            `json:"approved"`
}

type CafeRepo struct {
	c     *supabase.Client
	table string
}

var _ domain.CafeRepository = (*CafeRepo)(nil)

func NewCafeRepo(c *supabase.Client) *CafeRepo {
	return &CafeRepo{c: c, table: CafesTable}
}

func (r *CafeRepo) ListCafes(ctx context.Context) ([]domain.Cafe, error) {
	data, _, err := r.c.From(r.table).
		Select("*", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	observability.ObserveStore("supabase", "list", err)
	if err != nil {
		return nil, fmt.Errorf("list cafes: %w", err)
	}
	var rows []cafeRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode cafes: %w", err)
	}
	out := make([]domain.Cafe, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// InsertCafe returns the stored row. Uniqueness violations come back with the
// store's own message.
func (r *CafeRepo) InsertCafe(ctx context.Context, nc domain.NewCafe) (domain.Cafe, error) {
	data, _, err := r.c.From(r.table).
		Insert(insertRow{
			MapboxID:      nc.MapboxID,
			Name:          nc.Name,
			FullAddress:   nc.FullAddress,
			Latitude:      nc.Latitude,
			Longitude:     nc.Longitude,
			MapboxData:    nc.MapboxData,
			Description:   nc.Description,
			WebsiteURL:    nc.WebsiteURL,
			InstagramURL:  nc.InstagramURL,
			HeroImageURL:  nc.HeroImageURL,
			GalleryImages: nc.GalleryImages,
			Approved:      nc.Approved,
		}, false, "", "representation", "").
		Execute()
	observability.ObserveStore("supabase", "insert", err)
	if err != nil {
		return domain.Cafe{}, err
	}
	var rows []cafeRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return domain.Cafe{}, fmt.Errorf("decode inserted cafe: %w", err)
	}
	if len(rows) == 0 {
		return domain.Cafe{}, fmt.Errorf("insert cafe %s: no row returned", nc.MapboxID)
	}
	return rows[0].toDomain(), nil
}

func (r *CafeRepo) UpdateProviderData(ctx context.Context, mapboxID string, s domain.ProviderSnapshot) error {
	patch := map[string]any{
		"name":         s.Name,
		"full_address": s.FullAddress,
		"latitude":     s.Latitude,
		"longitude":    s.Longitude,
		"mapbox_data":  s.MapboxData,
		"updated_at":   time.Now().UTC(),
	}
	data, _, err := r.c.From(r.table).
		Update(patch, "representation", "").
		Eq("mapbox_id", mapboxID).
		Execute()
	observability.ObserveStore("supabase", "update", err)
	if err != nil {
		return fmt.Errorf("update cafe %s: %w", mapboxID, err)
	}
	var rows []cafeRow
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (row cafeRow) toDomain() domain.Cafe {
	return domain.Cafe{
		ID:            row.ID,
		MapboxID:      row.MapboxID,
		Name:          row.Name,
		FullAddress:   row.FullAddress,
		Latitude:      row.Latitude,
		Longitude:     row.Longitude,
		MapboxData:    row.MapboxData,
		Description:   row.Description,
		WebsiteURL:    row.WebsiteURL,
		InstagramURL:  row.InstagramURL,
		HeroImageURL:  row.HeroImageURL,
		GalleryImages: row.GalleryImages,
		Approved:      row.Approved,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}
