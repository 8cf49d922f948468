// Package search turns free-text queries into place candidates.
package search

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"travel-planner/models"
)

// MinQueryLength is the shortest query worth sending to the ledger.
const MinQueryLength = 3

// Searcher is the ledger's search operation.
type Searcher interface {
	Search(ctx context.Context, query, location string) ([]models.Candidate, error)
}

type Gateway struct {
	searcher        Searcher
	defaultLocation string
	logger          *zap.Logger
}

func NewGateway(searcher Searcher, defaultLocation string, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{searcher: searcher, defaultLocation: defaultLocation, logger: logger}
}

// Search returns candidates near the default location. Short queries return
// no candidates without a ledger call.
func (g *Gateway) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	return g.SearchNear(ctx, query, g.defaultLocation)
}

func (g *Gateway) SearchNear(ctx context.Context, query, location string) ([]models.Candidate, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []models.Candidate{}, nil
	}
	if location == "" {
		location = g.defaultLocation
	}
	candidates, err := g.searcher.Search(ctx, query, location)
	if err != nil {
		g.logger.Warn("place search failed", zap.String("query", query), zap.Error(err))
		return nil, err
	}
	g.logger.Debug("place search", zap.String("query", query), zap.Int("results", len(candidates)))
	return candidates, nil
}
