package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"travel-planner/models"
	"travel-planner/utils/errors"
)

const searchLimit = 20

// PlaceService is the ledger: it owns place records and answers searches.
type PlaceService struct {
	places   PlaceStore
	catalog  Catalog
	cache    *redis.Client // optional search cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewPlaceService(places PlaceStore, catalog Catalog, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *PlaceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlaceService{places: places, catalog: catalog, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// SearchPlaces checks Redis first, then the catalog, caching what it finds.
func (s *PlaceService) SearchPlaces(ctx context.Context, query, location string) ([]models.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Validation("query is required")
	}

	key := searchCacheKey(query, location)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil {
			var candidates []models.Candidate
			if err := json.Unmarshal([]byte(cached), &candidates); err == nil {
				return candidates, nil
			}
			s.logger.Warn("failed to unmarshal cached search", zap.String("key", key))
		} else if err != redis.Nil {
			s.logger.Warn("search cache read failed", zap.Error(err))
		}
	}

	candidates, err := s.catalog.Search(ctx, query, location, searchLimit)
	if err != nil {
		return nil, errors.Wrap(err, "SEARCH_ERROR", "place search failed", errors.ErrInternal.Status)
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}

	if s.cache != nil {
		if raw, err := json.Marshal(candidates); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("search cache write failed", zap.Error(err))
			}
		}
	}
	s.logger.Debug("searched catalog", zap.String("query", query), zap.Int("results", len(candidates)))
	return candidates, nil
}

// AddPlace assigns an id and records p.
func (s *PlaceService) AddPlace(ctx context.Context, p models.Place) (models.Place, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return models.Place{}, errors.Validation("name is required")
	}
	if !models.ValidCoordinates(p.Lat, p.Lng) {
		return models.Place{}, errors.Validation("invalid coordinates: lat=%f, lng=%f", p.Lat, p.Lng)
	}
	if p.Visited {
		p.Category = models.NormalizeCategory(string(p.Category))
	} else if c, ok := models.ParseCategory(string(p.Category)); ok {
		p.Category = c
	} else {
		p.Category = models.CategoryNone
	}

	p.ID = uuid.NewString()
	if err := s.places.Insert(ctx, p); err != nil {
		return models.Place{}, err
	}
	s.logger.Info("place added", zap.String("id", p.ID), zap.String("name", p.Name), zap.Bool("visited", p.Visited))
	return p, nil
}

// MarkPlace sets the visited flag and, when given, the category.
func (s *PlaceService) MarkPlace(ctx context.Context, u models.PlaceUpdate) error {
	if u.ID == "" {
		return errors.Validation("id is required")
	}
	if u.Category != models.CategoryNone {
		c, ok := models.ParseCategory(string(u.Category))
		if !ok {
			return errors.Validation("unknown category %q", u.Category)
		}
		u.Category = c
	}
	if err := s.places.Mark(ctx, u); err != nil {
		return err
	}
	s.logger.Info("place marked", zap.String("id", u.ID), zap.Bool("visited", u.Visited))
	return nil
}

// DeletePlace removes id. Deleting an unknown id succeeds.
func (s *PlaceService) DeletePlace(ctx context.Context, id string) error {
	if id == "" {
		return errors.Validation("id is required")
	}
	if err := s.places.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("place deleted", zap.String("id", id))
	return nil
}

func (s *PlaceService) GetPlace(ctx context.Context, id string) (models.Place, error) {
	return s.places.Get(ctx, id)
}

func searchCacheKey(query, location string) string {
	return "search:" + strings.ToLower(strings.TrimSpace(location)) + ":" + strings.ToLower(query)
}
