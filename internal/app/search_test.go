package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caffio/internal/app"
	"caffio/internal/domain"
)

func TestSuggest_TagsCafesAndPlaces(t *testing.T) {
	repo := &fakeRepo{cafes: []domain.Cafe{storedCafe("poi.cafe", "Pilot", 43.6, -79.4)}}
	geo := &fakeGeo{suggestions: []domain.Suggestion{
		{MapboxID: "poi.cafe", Name: "Pilot Coffee", Distance: ptr(725.0)},
		{MapboxID: "addr.1", Name: "1 Queen St"},
	}}
	q := newQueries(repo, geo, nil, app.QueryOptions{})

	got, err := q.Suggest(context.Background(), "", "pilot", &domain.Coords{Lat: 43.6, Lon: -79.4})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, app.KindCafe, got[0].Kind)
	require.NotNil(t, got[0].Cafe)
	assert.Equal(t, "row-poi.cafe", got[0].Cafe.ID)
	assert.Equal(t, "750 m", got[0].DistanceLabel)

	assert.Equal(t, app.KindPlace, got[1].Kind)
	assert.Nil(t, got[1].Cafe)

	assert.Equal(t, app.SuggestTypes, geo.lastSuggest.Types)
	require.NotNil(t, geo.lastSuggest.Proximity)
	assert.NotEmpty(t, geo.lastSuggest.SessionToken)
}

func TestSuggest_BlankQuerySkipsProvider(t *testing.T) {
	geo := &fakeGeo{}
	q := newQueries(&fakeRepo{}, geo, nil, app.QueryOptions{})

	got, err := q.Suggest(context.Background(), "s", "   ", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, geo.suggests)
}

func TestSuggest_ProviderFailureReturnsNoSuggestions(t *testing.T) {
	geo := &fakeGeo{suggestErr: errProvider}
	q := newQueries(&fakeRepo{}, geo, nil, app.QueryOptions{})

	got, err := q.Suggest(context.Background(), "", "pilot", nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 1, geo.suggests)
}

func TestSuggest_DebounceKeepsOnlyLastCall(t *testing.T) {
	geo := &fakeGeo{suggestions: []domain.Suggestion{{MapboxID: "x", Name: "x"}}}
	q := newQueries(&fakeRepo{}, geo, nil, app.QueryOptions{Debounce: 200 * time.Millisecond})

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = q.Suggest(context.Background(), "sess", "pi", nil)
	}()
	time.Sleep(50 * time.Millisecond)

	got, err := q.Suggest(context.Background(), "sess", "pilot", nil)
	wg.Wait()

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.True(t, errors.Is(firstErr, domain.ErrSuperseded), "first call: %v", firstErr)
	assert.Equal(t, 1, geo.suggests)
	assert.Equal(t, "sess", geo.lastSuggest.SessionToken)
}

func TestSelect_ReturnsCoordinatesAndAddress(t *testing.T) {
	f := poiFeature("poi.1", "Pilot", -79.45, 43.65)
	f.Properties["full_address"] = "1 Pilot Street, Toronto"
	f.Properties["context"] = map[string]any{"place": map[string]any{"name": "Toronto"}}
	geo := &fakeGeo{features: map[string]*geojson.Feature{"poi.1": f}}
	q := newQueries(&fakeRepo{}, geo, nil, app.QueryOptions{})

	sel, err := q.Select(context.Background(), "s", "poi.1")
	require.NoError(t, err)
	assert.Equal(t, -79.45, sel.Longitude)
	assert.Equal(t, 43.65, sel.Latitude)
	assert.Equal(t, "1 Pilot Street, Toronto", sel.Address.FormattedAddress)
	assert.Equal(t, "Toronto", sel.Address.City)
	assert.Equal(t, 43.65, sel.Address.Lat)
}

func TestSelect_NonPointGeometry(t *testing.T) {
	geo := &fakeGeo{features: map[string]*geojson.Feature{
		"poi.1": geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}),
	}}
	q := newQueries(&fakeRepo{}, geo, nil, app.QueryOptions{})

	_, err := q.Select(context.Background(), "s", "poi.1")
	require.ErrorIs(t, err, domain.ErrNoGeometry)
}

func TestLocate_LatestWins(t *testing.T) {
	started := make(chan struct{})
	geo := &fakeGeo{reverse: func(ctx context.Context, lng, lat float64) (*geojson.Feature, error) {
		if lng == 1 {
			// slow first request: only returns once it is cancelled
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		f := geojson.NewFeature(orb.Point{lng, lat})
		f.Properties["full_address"] = "second"
		return f, nil
	}}
	q := newQueries(&fakeRepo{}, geo, nil, app.QueryOptions{})

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = q.Locate(context.Background(), "sess", 1, 1)
	}()
	<-started

	addr, err := q.Locate(context.Background(), "sess", 2, 2)
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, "second", addr.FormattedAddress)
	assert.ErrorIs(t, firstErr, domain.ErrSuperseded)
}

func TestMarkersAndMapConfig(t *testing.T) {
	cafes := []domain.Cafe{
		storedCafe("a", "A", 43.6, -79.4),
		{ID: "row-b", MapboxID: "b"},
	}
	fc := app.BuildMarkers(cafes)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, orb.Point{-79.4, 43.6}, fc.Features[0].Geometry)
	assert.Equal(t, "a", fc.Features[0].Properties["mapbox_id"])
	assert.Equal(t, "A", fc.Features[0].Properties["name"])

	q := newQueries(&fakeRepo{}, &fakeGeo{}, nil, app.QueryOptions{})
	cfg := q.MapConfig()
	assert.Equal(t, app.DefaultCenter, cfg.Center)
	assert.Equal(t, 13.0, cfg.Zoom)
}
