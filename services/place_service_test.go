package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"travel-planner/models"
	"travel-planner/utils/errors"
)

var testCatalog = []CatalogEntry{
	{Candidate: models.Candidate{Name: "Obelisco de Rosario", Address: "Santa Fe 581", Lat: -32.94, Lng: -60.63}, City: "Rosario"},
	{Candidate: models.Candidate{Name: "Obelisco", Address: "Av. 9 de Julio", Lat: -34.6037, Lng: -58.3816}, City: "Buenos Aires"},
	{Candidate: models.Candidate{Name: "La Bombonera", Address: "Brandsen 805", Lat: -34.6356, Lng: -58.3647}, City: "Buenos Aires"},
}

type countingCatalog struct {
	Catalog
	calls int
}

func (c *countingCatalog) Search(ctx context.Context, query, location string, limit int) ([]models.Candidate, error) {
	c.calls++
	return c.Catalog.Search(ctx, query, location, limit)
}

func newTestService(t *testing.T) (*PlaceService, *countingCatalog, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	catalog := &countingCatalog{Catalog: NewMemoryCatalog(testCatalog)}
	return NewPlaceService(NewMemoryPlaceStore(), catalog, client, time.Minute, zaptest.NewLogger(t)), catalog, mr
}

func TestSearchRanksLocationFirst(t *testing.T) {
	svc, _, _ := newTestService(t)
	got, err := svc.SearchPlaces(context.Background(), "obelisco", "Buenos Aires")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Obelisco", got[0].Name)
	assert.Equal(t, "Obelisco de Rosario", got[1].Name)
}

func TestSearchIsCached(t *testing.T) {
	svc, catalog, mr := newTestService(t)
	ctx := context.Background()

	_, err := svc.SearchPlaces(ctx, "Bombonera", "Buenos Aires")
	require.NoError(t, err)
	got, err := svc.SearchPlaces(ctx, "bombonera", "buenos aires")
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.calls)
	require.Len(t, got, 1)
	assert.True(t, mr.Exists("search:buenos aires:bombonera"))

	mr.FastForward(2 * time.Minute)
	_, err = svc.SearchPlaces(ctx, "bombonera", "Buenos Aires")
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.calls)
}

func TestSearchWithoutCache(t *testing.T) {
	svc := NewPlaceService(NewMemoryPlaceStore(), NewMemoryCatalog(testCatalog), nil, 0, nil)
	got, err := svc.SearchPlaces(context.Background(), "brandsen", "")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.SearchPlaces(context.Background(), "  ", "")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestAddMarkDeletePlace(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.AddPlace(ctx, models.Place{Name: "Obelisco", Address: "Av. 9 de Julio", Lat: -34.6037, Lng: -58.3816})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	assert.False(t, p.Visited)

	require.NoError(t, svc.MarkPlace(ctx, models.PlaceUpdate{ID: p.ID, Visited: true, Category: "Ponto"}))
	stored, err := svc.GetPlace(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.Visited)
	assert.Equal(t, models.CategoryLandmark, stored.Category)

	// Marking without a category keeps the existing one.
	require.NoError(t, svc.MarkPlace(ctx, models.PlaceUpdate{ID: p.ID, Visited: false}))
	stored, _ = svc.GetPlace(ctx, p.ID)
	assert.False(t, stored.Visited)
	assert.Equal(t, models.CategoryLandmark, stored.Category)

	require.NoError(t, svc.DeletePlace(ctx, p.ID))
	require.NoError(t, svc.DeletePlace(ctx, p.ID), "delete is idempotent")
	_, err = svc.GetPlace(ctx, p.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestAddPlaceValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddPlace(ctx, models.Place{Name: ""})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = svc.AddPlace(ctx, models.Place{Name: "x", Lat: 100})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	p, err := svc.AddPlace(ctx, models.Place{Name: "x", Visited: true, Category: "museum"})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, p.Category)
}

func TestMarkPlaceErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	assert.ErrorIs(t, svc.MarkPlace(ctx, models.PlaceUpdate{}), errors.ErrInvalidInput)
	assert.ErrorIs(t, svc.MarkPlace(ctx, models.PlaceUpdate{ID: "nope"}), errors.ErrNotFound)
	assert.ErrorIs(t, svc.MarkPlace(ctx, models.PlaceUpdate{ID: "nope", Category: "museum"}), errors.ErrInvalidInput)
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"Obelisco","address":"Av. 9 de Julio","lat":-34.6037,"lng":-58.3816,"city":"Buenos Aires"}]`), 0o644))

	entries, err := LoadCatalogFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Obelisco", entries[0].Name)
	assert.Equal(t, "Buenos Aires", entries[0].City)

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
