package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"caffio/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu        sync.Mutex
	cafes     []domain.Cafe
	listErr   error
	insertErr error
	inserted  []domain.NewCafe
	updated   map[string]domain.ProviderSnapshot
}

func (f *fakeRepo) ListCafes(ctx context.Context) ([]domain.Cafe, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Cafe, len(f.cafes))
	copy(out, f.cafes)
	return out, nil
}

func (f *fakeRepo) InsertCafe(ctx context.Context, nc domain.NewCafe) (domain.Cafe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return domain.Cafe{}, f.insertErr
	}
	f.inserted = append(f.inserted, nc)
	return domain.Cafe{
		ID:            "row-1",
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
	}, nil
}

func (f *fakeRepo) UpdateProviderData(ctx context.Context, id string, s domain.ProviderSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = map[string]domain.ProviderSnapshot{}
	}
	f.updated[id] = s
	return nil
}

type fakeGeo struct {
	mu          sync.Mutex
	features    map[string]*geojson.Feature
	retrieves   int
	suggestions []domain.Suggestion
	suggestErr  error
	suggests    int
	lastSuggest domain.SuggestOptions
	reverse     func(ctx context.Context, lng, lat float64) (*geojson.Feature, error)
	matrix      func(ctx context.Context, origin domain.Coords, dests []domain.Coords) (domain.Matrix, error)
	matrixDests []domain.Coords
}

var errProvider = errors.New("provider down")

func (g *fakeGeo) Retrieve(ctx context.Context, id, session string) (*geojson.Feature, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieves++
	f, ok := g.features[id]
	if !ok {
		return nil, errProvider
	}
	return f, nil
}

func (g *fakeGeo) Suggest(ctx context.Context, q string, opts domain.SuggestOptions) ([]domain.Suggestion, error) {
	g.mu.Lock()
	g.suggests++
	g.lastSuggest = opts
	g.mu.Unlock()
	if g.suggestErr != nil {
		return nil, g.suggestErr
	}
	return g.suggestions, nil
}

func (g *fakeGeo) ReverseGeocode(ctx context.Context, lng, lat float64) (*geojson.Feature, error) {
	if g.reverse == nil {
		return nil, domain.ErrNotFound
	}
	return g.reverse(ctx, lng, lat)
}

func (g *fakeGeo) DistanceMatrix(ctx context.Context, origin domain.Coords, dests []domain.Coords) (domain.Matrix, error) {
	g.mu.Lock()
	g.matrixDests = dests
	g.mu.Unlock()
	if g.matrix == nil {
		return domain.Matrix{}, errProvider
	}
	return g.matrix(ctx, origin, dests)
}

func (g *fakeGeo) retrieveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.retrieves
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

// ---- builders ----

func ptr[T any](v T) *T { return &v }

func poiFeature(id, name string, lng, lat float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{lng, lat})
	f.Properties["mapbox_id"] = id
	f.Properties["name"] = name
	f.Properties["address"] = name + " Street"
	return f
}

func storedCafe(id, name string, lat, lng float64) domain.Cafe {
	return domain.Cafe{
		ID:         "row-" + id,
		MapboxID:   id,
		Name:       ptr(name),
		Latitude:   ptr(lat),
		Longitude:  ptr(lng),
		MapboxData: json.RawMessage(`{}`),
	}
}
