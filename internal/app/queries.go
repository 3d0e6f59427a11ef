package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"caffio/internal/adapters/observability"
	"caffio/internal/domain"
)

// EnrichPolicy decides what ListCafes does with a café whose live lookup failed.
type EnrichPolicy string

const (
	// EnrichFallback serves the stored values and flags the café stale.
	EnrichFallback EnrichPolicy = "fallback"
	// EnrichDrop omits the café from the result.
	EnrichDrop EnrichPolicy = "drop"
)

func ParseEnrichPolicy(s string) EnrichPolicy {
	if EnrichPolicy(s) == EnrichDrop {
		return EnrichDrop
	}
	return EnrichFallback
}

type QueryOptions struct {
	CacheTTL time.Duration
	Policy   EnrichPolicy
	Debounce time.Duration
	Map      MapConfig
}

type QueryService struct {
	repo     domain.CafeRepository
	geo      domain.Geocoder
	cache    domain.Cache
	cacheTTL time.Duration
	policy   EnrichPolicy
	debounce time.Duration
	mapCfg   MapConfig
	gate     *Gate
	matrix   *DistanceEnricher
}

func NewQueryService(r domain.CafeRepository, g domain.Geocoder, c domain.Cache, gate *Gate, opts QueryOptions) *QueryService {
	if opts.Policy == "" {
		opts.Policy = EnrichFallback
	}
	if gate == nil {
		gate = NewGate(0)
	}
	return &QueryService{
		repo:     r,
		geo:      g,
		cache:    c,
		cacheTTL: opts.CacheTTL,
		policy:   opts.Policy,
		debounce: opts.Debounce,
		mapCfg:   opts.Map.withDefaults(),
		gate:     gate,
		matrix:   NewDistanceEnricher(g),
	}
}

// ListCafes returns every stored café with live provider data merged in.
// Lookups run in parallel; the provider client's rate limiter is the only bound.
func (s *QueryService) ListCafes(ctx context.Context) ([]domain.Cafe, error) {
	rows, err := s.repo.ListCafes(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.Cafe{}, nil
	}

	enriched := make([]*domain.Cafe, len(rows))
	var g errgroup.Group
	for i := range rows {
		i := i
		g.Go(func() error {
			c := rows[i]
			snap, err := s.liveSnapshot(ctx, c.MapboxID)
			if err != nil {
				log.Warn().Err(err).Str("mapbox_id", c.MapboxID).Str("policy", string(s.policy)).Msg("live poi lookup failed")
				if s.policy == EnrichDrop {
					observability.ObserveEnrichment("dropped")
					return nil
				}
				c.Stale = true
				enriched[i] = &c
				observability.ObserveEnrichment("stale")
				return nil
			}
			merged := mergeLive(c, snap)
			enriched[i] = &merged
			observability.ObserveEnrichment("live")
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.Cafe, 0, len(rows))
	for _, c := range enriched {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

// Index builds the lookup view over the current café list.
func (s *QueryService) Index(ctx context.Context) (domain.CafeIndex, error) {
	cafes, err := s.ListCafes(ctx)
	if err != nil {
		return domain.CafeIndex{}, err
	}
	return domain.NewCafeIndex(cafes), nil
}

// Nearby ranks cafés by walking distance from origin. Without a location the
// list comes back in stored order with no distances. A newer call for the same
// session aborts this one.
func (s *QueryService) Nearby(ctx context.Context, session string, origin *domain.Coords) ([]RankedCafe, error) {
	if origin == nil || origin.IsZero() {
		cafes, err := s.ListCafes(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]RankedCafe, len(cafes))
		for i, c := range cafes {
			out[i] = RankedCafe{Cafe: c}
		}
		return out, nil
	}

	ctx, t, done := s.gate.Begin(ctx, sessionKey("nearby", session))
	defer done()

	cafes, err := s.ListCafes(ctx)
	if err != nil {
		if !s.gate.Current(t) {
			return nil, domain.ErrSuperseded
		}
		return nil, err
	}
	ranked := s.matrix.Enrich(ctx, *origin, cafes)
	if !s.gate.Current(t) {
		return nil, domain.ErrSuperseded
	}
	SortByDistance(ranked)
	return ranked, nil
}

// POILookup is what the admin intake form is filled from.
type POILookup struct {
	POI        domain.POIDetails `json:"poi"`
	MapboxData json.RawMessage   `json:"mapbox_data"`
}

// LookupPOI fetches a fresh provider feature for the intake form.
func (s *QueryService) LookupPOI(ctx context.Context, mapboxID string) (POILookup, error) {
	f, err := s.geo.Retrieve(ctx, mapboxID, uuid.NewString())
	if err != nil {
		return POILookup{}, err
	}
	poi, ok := NormalizePOI(f, domain.POIDetails{MapboxID: mapboxID})
	if !ok {
		return POILookup{}, domain.ErrNoGeometry
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return POILookup{}, err
	}
	return POILookup{POI: poi, MapboxData: raw}, nil
}

func (s *QueryService) liveSnapshot(ctx context.Context, mapboxID string) (domain.ProviderSnapshot, error) {
	f, err := s.feature(ctx, mapboxID)
	if err != nil {
		return domain.ProviderSnapshot{}, err
	}
	return snapshotFromFeature(f)
}

// feature returns the provider feature for mapboxID, through the cache when one is set.
func (s *QueryService) feature(ctx context.Context, mapboxID string) (*geojson.Feature, error) {
	key := poiKey(mapboxID)
	if s.cache != nil {
		var raw json.RawMessage
		if ok, _ := s.cache.Get(ctx, key, &raw); ok && len(raw) > 0 {
			if f, err := DecodePOI(raw); err == nil {
				return f, nil
			}
		}
	}

	f, err := s.geo.Retrieve(ctx, mapboxID, uuid.NewString())
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, domain.ErrNotFound
	}
	if s.cache != nil && s.cacheTTL > 0 {
		if raw, err := json.Marshal(f); err == nil {
			_ = s.cache.Set(ctx, key, json.RawMessage(raw), int(s.cacheTTL.Seconds()))
		}
	}
	return f, nil
}

func poiKey(mapboxID string) string { return "poi:" + mapboxID }
