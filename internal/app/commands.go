package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"caffio/internal/domain"
)

type CommandService struct {
	repo   domain.CafeRepository
	geo    domain.Geocoder
	images domain.ImageStore
	cache  domain.Cache
	now    func() time.Time
}

func NewCommandService(r domain.CafeRepository, g domain.Geocoder, images domain.ImageStore, cache domain.Cache) *CommandService {
	return &CommandService{repo: r, geo: g, images: images, cache: cache, now: time.Now}
}

// CreateCafe validates a curator payload and inserts one row. Store errors are
// returned unchanged.
func (s *CommandService) CreateCafe(ctx context.Context, payload map[string]any) (domain.Cafe, error) {
	nc, err := mapNewCafe(payload)
	if err != nil {
		return domain.Cafe{}, err
	}
	c, err := s.repo.InsertCafe(ctx, nc)
	if err != nil {
		log.Error().Err(err).Str("mapbox_id", nc.MapboxID).Msg("insert cafe failed")
		return domain.Cafe{}, err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, poiKey(nc.MapboxID))
	}
	return c, nil
}

// UploadImage stores an image under "<unix millis>-<name>" and returns its public URL.
func (s *CommandService) UploadImage(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if s.images == nil {
		return "", domain.ErrStorageUnavailable
	}
	obj := imageObjectName(s.now(), name)
	url, err := s.images.Upload(ctx, obj, contentType, r)
	if err != nil {
		log.Error().Err(err).Str("object", obj).Msg("image upload failed")
		return "", err
	}
	return url, nil
}

func imageObjectName(at time.Time, name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	return strconv.FormatInt(at.UnixMilli(), 10) + "-" + base
}

// RefreshCafe writes the current provider data for one café back to the store.
// A POI the provider no longer knows is logged and skipped.
func (s *CommandService) RefreshCafe(ctx context.Context, mapboxID string) error {
	if s.cache != nil {
		defer func() { _ = s.cache.Del(ctx, poiKey(mapboxID)) }()
	}

	f, err := s.geo.Retrieve(ctx, mapboxID, uuid.NewString())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNoGeometry) {
			log.Warn().Err(err).Str("mapbox_id", mapboxID).Msg("refresh miss")
			return nil
		}
		return fmt.Errorf("retrieve %s: %w", mapboxID, err)
	}
	if f == nil {
		log.Warn().Str("mapbox_id", mapboxID).Msg("refresh miss")
		return nil
	}
	snap, err := snapshotFromFeature(f)
	if err != nil {
		log.Warn().Err(err).Str("mapbox_id", mapboxID).Msg("refresh miss")
		return nil
	}
	if err := s.repo.UpdateProviderData(ctx, mapboxID, snap); err != nil {
		return fmt.Errorf("update %s: %w", mapboxID, err)
	}
	return nil
}

// StoredIDs returns the mapbox ids of every stored café, in store order.
func (s *CommandService) StoredIDs(ctx context.Context) ([]string, error) {
	cafes, err := s.repo.ListCafes(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(cafes))
	for _, c := range cafes {
		ids = append(ids, c.MapboxID)
	}
	return ids, nil
}
