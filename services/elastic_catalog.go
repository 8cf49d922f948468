package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"

	"travel-planner/models"
)

const catalogMapping = `{
	"mappings": {
		"properties": {
			"name":     {"type": "text"},
			"address":  {"type": "text"},
			"city":     {"type": "text"},
			"location": {"type": "geo_point"}
		}
	}
}`

// ElasticCatalog searches places with fuzzy full-text matching.
type ElasticCatalog struct {
	client *elastic.Client
	index  string
	logger *zap.Logger
}

type catalogDoc struct {
	Name     string           `json:"name"`
	Address  string           `json:"address"`
	City     string           `json:"city"`
	Location elastic.GeoPoint `json:"location"`
}

func NewElasticCatalog(url, index string, logger *zap.Logger) (*ElasticCatalog, error) {
	client, err := elastic.NewClient(elastic.SetURL(url), elastic.SetSniff(false))
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return &ElasticCatalog{client: client, index: index, logger: logger}, nil
}

func (c *ElasticCatalog) Stop() {
	c.client.Stop()
}

// EnsureIndex creates the index and bulk-loads entries if it does not exist yet.
func (c *ElasticCatalog) EnsureIndex(ctx context.Context, entries []CatalogEntry) error {
	exists, err := c.client.IndexExists(c.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("checking index %s: %w", c.index, err)
	}
	if exists {
		c.logger.Info("catalog index already exists", zap.String("index", c.index))
		return nil
	}

	created, err := c.client.CreateIndex(c.index).BodyString(catalogMapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("creating index %s: %w", c.index, err)
	}
	if !created.Acknowledged {
		c.logger.Warn("create index was not acknowledged", zap.String("index", c.index))
	}
	if len(entries) == 0 {
		return nil
	}

	bulk := c.client.Bulk().Index(c.index)
	for _, e := range entries {
		bulk.Add(elastic.NewBulkIndexRequest().Doc(catalogDoc{
			Name:     e.Name,
			Address:  e.Address,
			City:     e.City,
			Location: elastic.GeoPoint{Lat: e.Lat, Lon: e.Lng},
		}))
	}
	resp, err := bulk.Refresh("true").Do(ctx)
	if err != nil {
		return fmt.Errorf("bulk loading catalog: %w", err)
	}
	for _, failed := range resp.Failed() {
		c.logger.Warn("catalog document rejected", zap.String("reason", failed.Error.Reason))
	}
	c.logger.Info("catalog index loaded", zap.Int("count", len(entries)))
	return nil
}

func (c *ElasticCatalog) Search(ctx context.Context, query, location string, limit int) ([]models.Candidate, error) {
	q := elastic.NewBoolQuery().
		Must(elastic.NewMultiMatchQuery(query, "name^3", "address").Fuzziness("AUTO"))
	if location != "" {
		q = q.Should(elastic.NewMatchQuery("city", location).Boost(2))
	}

	result, err := c.client.Search().
		Index(c.index).
		Query(q).
		Size(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		var doc catalogDoc
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			c.logger.Warn("skipping undecodable catalog hit", zap.String("id", hit.Id), zap.Error(err))
			continue
		}
		candidates = append(candidates, models.Candidate{
			Name:    doc.Name,
			Address: doc.Address,
			Lat:     doc.Location.Lat,
			Lng:     doc.Location.Lon,
		})
	}
	return candidates, nil
}
