package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caffio/internal/adapters/observability"
	"caffio/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

type Repo struct{ db *sql.DB }

var _ domain.CafeRepository = (*Repo)(nil)

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) ListCafes(ctx context.Context) ([]domain.Cafe, error) {
	rows, err := r.db.QueryContext(ctx, listCafesSQL)
	observability.ObserveStore("mysql", "list", err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Cafe{}
	for rows.Next() {
		c, err := scanCafe(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) InsertCafe(ctx context.Context, nc domain.NewCafe) (domain.Cafe, error) {
	var gallery any
	if nc.GalleryImages != nil {
		b, err := json.Marshal(nc.GalleryImages)
		if err != nil {
			return domain.Cafe{}, err
		}
		gallery = string(b)
	}
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, insertCafeSQL,
		id,
		nc.MapboxID,
		valStr(nc.Name),
		valStr(nc.FullAddress),
		valF64(nc.Latitude),
		valF64(nc.Longitude),
		valJSON(nc.MapboxData),
		valStr(nc.Description),
		valStr(nc.WebsiteURL),
		valStr(nc.InstagramURL),
		valStr(nc.HeroImageURL),
		gallery,
		nc.Approved,
	)
	observability.ObserveStore("mysql", "insert", err)
	if err != nil {
		return domain.Cafe{}, err
	}
	c, err := scanCafe(r.db.QueryRowContext(ctx, getCafeSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cafe{}, fmt.Errorf("insert cafe %s: row not readable", nc.MapboxID)
	}
	return c, err
}

func (r *Repo) UpdateProviderData(ctx context.Context, mapboxID string, s domain.ProviderSnapshot) error {
	res, err := r.db.ExecContext(ctx, updateProviderSQL,
		valStr(s.Name),
		valStr(s.FullAddress),
		valF64(s.Latitude),
		valF64(s.Longitude),
		valJSON(s.MapboxData),
		mapboxID,
	)
	observability.ObserveStore("mysql", "update", err)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

func scanCafe(s scanner) (domain.Cafe, error) {
	var c domain.Cafe
	var name, addr, desc, web, insta, hero sql.NullString
	var lat, lon sql.NullFloat64
	var mapboxData, galleryJSON []byte
	var created, updated sql.NullTime

	if err := s.Scan(
		&c.ID, &c.MapboxID,
		&name, &addr,
		&lat, &lon,
		&mapboxData,
		&desc, &web, &insta, &hero,
		&galleryJSON,
		&c.Approved,
		&created, &updated,
	); err != nil {
		return domain.Cafe{}, err
	}

	c.Name = nullStr(name)
	c.FullAddress = nullStr(addr)
	c.Description = nullStr(desc)
	c.WebsiteURL = nullStr(web)
	c.InstagramURL = nullStr(insta)
	c.HeroImageURL = nullStr(hero)
	if lat.Valid {
		v := lat.Float64
		c.Latitude = &v
	}
	if lon.Valid {
		v := lon.Float64
		c.Longitude = &v
	}
	if len(mapboxData) > 0 {
		c.MapboxData = json.RawMessage(mapboxData)
	}
	if len(galleryJSON) > 0 {
		if err := json.Unmarshal(galleryJSON, &c.GalleryImages); err != nil {
			return domain.Cafe{}, fmt.Errorf("cafe %s: decode gallery_images: %w", c.ID, err)
		}
	}
	c.CreatedAt = nullTime(created)
	c.UpdatedAt = nullTime(updated)
	return c, nil
}

func nullStr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func nullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
