package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caffio/internal/app"
	"caffio/internal/domain"
)

type fakeImages struct {
	name, contentType string
	body              []byte
	err               error
}

func (f *fakeImages) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.name, f.contentType = name, contentType
	f.body, _ = io.ReadAll(r)
	return "https://cdn.test/cafe-images/" + name, nil
}

func TestCreateCafe_MissingMapboxID(t *testing.T) {
	repo := &fakeRepo{}
	c := app.NewCommandService(repo, &fakeGeo{}, nil, nil)

	_, err := c.CreateCafe(context.Background(), map[string]any{"mapbox_data": map[string]any{"a": 1.0}})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "mapbox_id", ve.Field)
	assert.Empty(t, repo.inserted)
}

func TestCreateCafe_MissingMapboxData(t *testing.T) {
	c := app.NewCommandService(&fakeRepo{}, &fakeGeo{}, nil, nil)
	_, err := c.CreateCafe(context.Background(), map[string]any{"mapbox_id": "poi.1"})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "mapbox_data", ve.Field)
}

func TestCreateCafe_MinimalPayloadDefaults(t *testing.T) {
	repo := &fakeRepo{}
	c := app.NewCommandService(repo, &fakeGeo{}, nil, nil)

	got, err := c.CreateCafe(context.Background(), map[string]any{
		"mapbox_id":   "poi.1",
		"mapbox_data": map[string]any{"type": "Feature"},
	})
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)

	nc := repo.inserted[0]
	assert.Equal(t, "poi.1", nc.MapboxID)
	assert.JSONEq(t, `{"type":"Feature"}`, string(nc.MapboxData))
	assert.Nil(t, nc.Name)
	assert.Nil(t, nc.Description)
	assert.Nil(t, nc.WebsiteURL)
	assert.Nil(t, nc.InstagramURL)
	assert.Nil(t, nc.HeroImageURL)
	assert.Nil(t, nc.GalleryImages)
	assert.Nil(t, nc.Latitude)
	assert.False(t, nc.Approved)
	assert.Equal(t, "poi.1", got.MapboxID)
}

func TestCreateCafe_CoercesFields(t *testing.T) {
	repo := &fakeRepo{}
	cache := &fakeCache{}
	c := app.NewCommandService(repo, &fakeGeo{}, nil, cache)

	_, err := c.CreateCafe(context.Background(), map[string]any{
		"mapbox_id":      "poi.2",
		"context_json":   map[string]any{"type": "Feature"},
		"latitude":       "43.65",
		"longitude":      -79.45,
		"approved":       "true",
		"description":    "  ",
		"website_url":    "https://pilot.coffee",
		"gallery_images": []any{"https://x/1.jpg", map[string]any{"url": "https://x/2.jpg"}},
	})
	require.NoError(t, err)

	nc := repo.inserted[0]
	require.NotNil(t, nc.Latitude)
	assert.Equal(t, 43.65, *nc.Latitude)
	assert.Equal(t, -79.45, *nc.Longitude)
	assert.True(t, nc.Approved)
	assert.Nil(t, nc.Description)
	assert.Equal(t, "https://pilot.coffee", *nc.WebsiteURL)
	assert.Equal(t, []string{"https://x/1.jpg", "https://x/2.jpg"}, nc.GalleryImages)
	assert.Contains(t, cache.dels, "poi:poi.2")
}

func TestCreateCafe_BadNumber(t *testing.T) {
	c := app.NewCommandService(&fakeRepo{}, &fakeGeo{}, nil, nil)
	_, err := c.CreateCafe(context.Background(), map[string]any{
		"mapbox_id": "poi.1", "mapbox_data": map[string]any{}, "latitude": "north",
	})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "latitude", ve.Field)
}

func TestCreateCafe_StoreErrorVerbatim(t *testing.T) {
	storeErr := errors.New(`duplicate key value violates unique constraint "cafes_mapbox_id_key"`)
	c := app.NewCommandService(&fakeRepo{insertErr: storeErr}, &fakeGeo{}, nil, nil)

	_, err := c.CreateCafe(context.Background(), map[string]any{
		"mapbox_id": "poi.1", "mapbox_data": map[string]any{"a": 1.0},
	})
	require.Error(t, err)
	assert.Equal(t, storeErr.Error(), err.Error())
}

func TestUploadImage_NamesObjectWithTimestamp(t *testing.T) {
	imgs := &fakeImages{}
	c := app.NewCommandService(&fakeRepo{}, &fakeGeo{}, imgs, nil)

	url, err := c.UploadImage(context.Background(), "latte art.png", "image/png", bytes.NewReader([]byte("png")))
	require.NoError(t, err)

	parts := strings.SplitN(imgs.name, "-", 2)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 13) // unix millis
	assert.Equal(t, "latte art.png", parts[1])
	assert.Equal(t, "image/png", imgs.contentType)
	assert.Equal(t, "png", string(imgs.body))
	assert.Equal(t, "https://cdn.test/cafe-images/"+imgs.name, url)
}

func TestUploadImage_Errors(t *testing.T) {
	c := app.NewCommandService(&fakeRepo{}, &fakeGeo{}, nil, nil)
	_, err := c.UploadImage(context.Background(), "a.png", "", strings.NewReader(""))
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)

	boom := errors.New("bucket full")
	c = app.NewCommandService(&fakeRepo{}, &fakeGeo{}, &fakeImages{err: boom}, nil)
	_, err = c.UploadImage(context.Background(), "a.png", "", strings.NewReader(""))
	require.ErrorIs(t, err, boom)
}

func TestRefreshCafe(t *testing.T) {
	repo := &fakeRepo{}
	cache := &fakeCache{}
	geo := &fakeGeo{features: map[string]*geojson.Feature{"poi.1": poiFeature("poi.1", "Fresh", -79.4, 43.6)}}
	c := app.NewCommandService(repo, geo, nil, cache)

	require.NoError(t, c.RefreshCafe(context.Background(), "poi.1"))
	snap, ok := repo.updated["poi.1"]
	require.True(t, ok)
	assert.Equal(t, "Fresh", *snap.Name)
	assert.Equal(t, 43.6, *snap.Latitude)

	var props struct {
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(snap.MapboxData, &props))
	assert.Equal(t, "Fresh", props.Properties["name"])
	assert.Contains(t, cache.dels, "poi:poi.1")

	// provider failure is returned so the job can count it
	require.Error(t, c.RefreshCafe(context.Background(), "poi.unknown"))
}
