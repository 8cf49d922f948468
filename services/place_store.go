package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"travel-planner/models"
	"travel-planner/utils/errors"
)

// PlaceStore is the authoritative record of managed places.
type PlaceStore interface {
	Insert(ctx context.Context, p models.Place) error
	Get(ctx context.Context, id string) (models.Place, error)
	Mark(ctx context.Context, update models.PlaceUpdate) error
	Delete(ctx context.Context, id string) error
}

// Catalog answers free-text place searches.
type Catalog interface {
	Search(ctx context.Context, query, location string, limit int) ([]models.Candidate, error)
}

// CatalogEntry is a searchable place with the city it belongs to.
type CatalogEntry struct {
	models.Candidate `bson:",inline"`
	City             string `json:"city" bson:"city"`
}

// MemoryPlaceStore keeps places in a map; used when MongoDB is not configured.
type MemoryPlaceStore struct {
	mu     sync.RWMutex
	places map[string]models.Place
}

func NewMemoryPlaceStore() *MemoryPlaceStore {
	return &MemoryPlaceStore{places: map[string]models.Place{}}
}

func (s *MemoryPlaceStore) Insert(_ context.Context, p models.Place) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.places[p.ID]; ok {
		return errors.Conflict("place %s already exists", p.ID)
	}
	s.places[p.ID] = p
	return nil
}

func (s *MemoryPlaceStore) Get(_ context.Context, id string) (models.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.places[id]
	if !ok {
		return models.Place{}, errors.NotFound("place %s", id)
	}
	return p, nil
}

func (s *MemoryPlaceStore) Mark(_ context.Context, u models.PlaceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.places[u.ID]
	if !ok {
		return errors.NotFound("place %s", u.ID)
	}
	p.Visited = u.Visited
	if u.Category != models.CategoryNone {
		p.Category = u.Category
	}
	s.places[u.ID] = p
	return nil
}

func (s *MemoryPlaceStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.places, id)
	return nil
}

// MemoryCatalog does substring matching over a fixed set of entries.
type MemoryCatalog struct {
	entries []CatalogEntry
}

func NewMemoryCatalog(entries []CatalogEntry) *MemoryCatalog {
	return &MemoryCatalog{entries: entries}
}

func (c *MemoryCatalog) Search(_ context.Context, query, location string, limit int) ([]models.Candidate, error) {
	q := strings.ToLower(query)
	var matches []CatalogEntry
	for _, e := range c.entries {
		if strings.Contains(strings.ToLower(e.Name), q) || strings.Contains(strings.ToLower(e.Address), q) {
			matches = append(matches, e)
		}
	}
	return rankByLocation(matches, location, limit), nil
}

// rankByLocation puts entries in location first, keeping relative order.
func rankByLocation(entries []CatalogEntry, location string, limit int) []models.Candidate {
	loc := strings.ToLower(strings.TrimSpace(location))
	inLocation := func(e CatalogEntry) bool {
		return loc != "" && (strings.Contains(strings.ToLower(e.City), loc) || strings.Contains(strings.ToLower(e.Address), loc))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return inLocation(entries[i]) && !inLocation(entries[j])
	})
	out := make([]models.Candidate, 0, len(entries))
	for _, e := range entries {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, e.Candidate)
	}
	return out
}
