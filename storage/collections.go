// Package storage holds the local durable cache of the two place collections.
//
// The cache is not authoritative: every save writes both collections in full,
// and unreadable data loads as empty collections.
package storage

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"travel-planner/models"
)

const (
	KeyWantToGo = "wantToGo"
	KeyVisited  = "visited"
)

// Store persists the wantToGo and visited collections.
type Store interface {
	LoadCollections(ctx context.Context) (wantToGo, visited []models.Place, err error)
	SaveCollections(ctx context.Context, wantToGo, visited []models.Place) error
}

func encodeList(places []models.Place) ([]byte, error) {
	if places == nil {
		places = []models.Place{}
	}
	return json.Marshal(places)
}

// decodeList treats missing and corrupt values as an empty collection.
func decodeList(logger *zap.Logger, key string, raw []byte) []models.Place {
	if len(raw) == 0 {
		return []models.Place{}
	}
	var places []models.Place
	if err := json.Unmarshal(raw, &places); err != nil {
		logger.Warn("discarding corrupt collection", zap.String("key", key), zap.Error(err))
		return []models.Place{}
	}
	if places == nil {
		places = []models.Place{}
	}
	return places
}

// MemoryStore keeps the encoded collections in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
	saves  int
	logger *zap.Logger
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string][]byte{}, logger: zap.NewNop()}
}

func (s *MemoryStore) LoadCollections(_ context.Context) ([]models.Place, []models.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeList(s.logger, KeyWantToGo, s.values[KeyWantToGo]), decodeList(s.logger, KeyVisited, s.values[KeyVisited]), nil
}

func (s *MemoryStore) SaveCollections(_ context.Context, wantToGo, visited []models.Place) error {
	w, err := encodeList(wantToGo)
	if err != nil {
		return err
	}
	v, err := encodeList(visited)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[KeyWantToGo] = w
	s.values[KeyVisited] = v
	s.saves++
	return nil
}

// Raw returns the stored bytes for key.
func (s *MemoryStore) Raw(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.values[key]...)
}

// SetRaw overwrites key with arbitrary bytes.
func (s *MemoryStore) SetRaw(key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
}

// Saves counts completed SaveCollections calls.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
