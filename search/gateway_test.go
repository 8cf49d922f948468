package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-planner/models"
)

type searcherFunc func(ctx context.Context, query, location string) ([]models.Candidate, error)

func (f searcherFunc) Search(ctx context.Context, query, location string) ([]models.Candidate, error) {
	return f(ctx, query, location)
}

func TestShortQueriesSkipTheLedger(t *testing.T) {
	called := false
	g := NewGateway(searcherFunc(func(context.Context, string, string) ([]models.Candidate, error) {
		called = true
		return nil, nil
	}), "Buenos Aires", nil)

	for _, q := range []string{"", "ob", "  ab  ", "ñu"} {
		got, err := g.Search(context.Background(), q)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.False(t, called)
}

func TestSearchUsesDefaultLocation(t *testing.T) {
	var gotQuery, gotLocation string
	g := NewGateway(searcherFunc(func(_ context.Context, q, loc string) ([]models.Candidate, error) {
		gotQuery, gotLocation = q, loc
		return []models.Candidate{{Name: "Obelisco"}}, nil
	}), "Buenos Aires", nil)

	got, err := g.Search(context.Background(), " obelisco ")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "obelisco", gotQuery)
	assert.Equal(t, "Buenos Aires", gotLocation)

	_, err = g.SearchNear(context.Background(), "obelisco", "Rosario")
	require.NoError(t, err)
	assert.Equal(t, "Rosario", gotLocation)
}

func TestSearchPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	g := NewGateway(searcherFunc(func(context.Context, string, string) ([]models.Candidate, error) {
		return nil, boom
	}), "", nil)
	_, err := g.Search(context.Background(), "obelisco")
	assert.ErrorIs(t, err, boom)
}
