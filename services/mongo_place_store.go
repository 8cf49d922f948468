package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"travel-planner/models"
	"travel-planner/utils/errors"
)

// MongoPlaceStore keeps managed places in the "places" collection and the
// searchable catalog in "catalog".
type MongoPlaceStore struct {
	client  *mongo.Client
	places  *mongo.Collection
	catalog *mongo.Collection
	logger  *zap.Logger
}

func NewMongoPlaceStore(ctx context.Context, uri, database string, logger *zap.Logger) (*MongoPlaceStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connection failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	logger.Info("connected to mongodb", zap.String("database", database))

	db := client.Database(database)
	s := &MongoPlaceStore{
		client:  client,
		places:  db.Collection("places"),
		catalog: db.Collection("catalog"),
		logger:  logger,
	}

	indexModel := mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}, {Key: "city", Value: 1}}}
	if _, err := s.catalog.Indexes().CreateOne(ctx, indexModel); err != nil {
		logger.Warn("failed to create catalog index", zap.Error(err))
	}
	return s, nil
}

func (s *MongoPlaceStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoPlaceStore) Insert(ctx context.Context, p models.Place) error {
	if _, err := s.places.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Conflict("place %s already exists", p.ID)
		}
		return errors.Wrap(err, "DB_ERROR", "failed to create place", http.StatusInternalServerError)
	}
	return nil
}

func (s *MongoPlaceStore) Get(ctx context.Context, id string) (models.Place, error) {
	var p models.Place
	err := s.places.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return models.Place{}, errors.NotFound("place %s", id)
	}
	if err != nil {
		return models.Place{}, errors.Wrap(err, "DB_ERROR", "failed to load place", http.StatusInternalServerError)
	}
	return p, nil
}

func (s *MongoPlaceStore) Mark(ctx context.Context, u models.PlaceUpdate) error {
	set := bson.M{"visited": u.Visited}
	if u.Category != models.CategoryNone {
		set["category"] = u.Category
	}
	res, err := s.places.UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": set})
	if err != nil {
		return errors.Wrap(err, "DB_ERROR", "failed to update place", http.StatusInternalServerError)
	}
	if res.MatchedCount == 0 {
		return errors.NotFound("place %s", u.ID)
	}
	return nil
}

func (s *MongoPlaceStore) Delete(ctx context.Context, id string) error {
	if _, err := s.places.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(err, "DB_ERROR", "failed to delete place", http.StatusInternalServerError)
	}
	return nil
}

// Search matches query against name and address, case-insensitively.
func (s *MongoPlaceStore) Search(ctx context.Context, query, location string, limit int) ([]models.Candidate, error) {
	pattern := containsPattern(query)
	filter := bson.M{"$or": bson.A{
		bson.M{"name": pattern},
		bson.M{"address": pattern},
	}}
	// Over-fetch so location ranking has something to reorder.
	cursor, err := s.catalog.Find(ctx, filter, options.Find().SetLimit(int64(limit*3)))
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "catalog search failed", http.StatusInternalServerError)
	}
	defer cursor.Close(ctx)

	var entries []CatalogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to decode catalog entries", http.StatusInternalServerError)
	}
	return rankByLocation(entries, location, limit), nil
}

// SeedCatalog loads entries from a JSON file when the catalog is empty.
func (s *MongoPlaceStore) SeedCatalog(ctx context.Context, path string) error {
	count, err := s.catalog.CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to count catalog documents: %w", err)
	}
	if count > 0 {
		s.logger.Info("catalog already seeded", zap.Int64("count", count))
		return nil
	}

	entries, err := LoadCatalogFile(path)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	docs := make([]any, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, e)
	}
	result, err := s.catalog.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	s.logger.Info("seeded catalog", zap.Int("count", len(result.InsertedIDs)))
	return nil
}

// LoadCatalogFile reads a JSON array of catalog entries.
func LoadCatalogFile(path string) ([]CatalogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer file.Close()

	var entries []CatalogEntry
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode catalog file: %w", err)
	}
	return entries, nil
}

func containsPattern(query string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}
}
