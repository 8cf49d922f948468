package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"travel-planner/config"
	"travel-planner/handlers"
	"travel-planner/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	places, catalog, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise stores", zap.Error(err))
	}
	defer cleanup()

	// Redis only caches searches here; the server runs without it.
	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := cache.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, search cache disabled", zap.Error(err))
			cache.Close()
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	placeService := services.NewPlaceService(places, catalog, cache, cfg.SearchTTL, logger)
	placeHandler := handlers.NewPlaceHandler(placeService, logger)
	r := handlers.NewRouter(placeHandler, cfg.AllowedOrigins, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// buildStores picks MongoDB for places when configured, and the best
// available search backend: Elasticsearch, then MongoDB, then the catalog file.
func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (services.PlaceStore, services.Catalog, func(), error) {
	cleanup := func() {}
	var places services.PlaceStore = services.NewMemoryPlaceStore()
	var catalog services.Catalog

	if cfg.MongoURI != "" {
		mongoStore, err := services.NewMongoPlaceStore(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, nil, cleanup, err
		}
		cleanup = func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoStore.Close(closeCtx)
		}
		if err := mongoStore.SeedCatalog(ctx, cfg.CatalogFile); err != nil {
			logger.Warn("catalog seeding skipped", zap.Error(err))
		}
		places, catalog = mongoStore, mongoStore
	}

	if cfg.ElasticURL != "" {
		elastic, err := services.NewElasticCatalog(cfg.ElasticURL, "places", logger)
		if err != nil {
			return nil, nil, cleanup, err
		}
		entries, err := services.LoadCatalogFile(cfg.CatalogFile)
		if err != nil {
			logger.Warn("catalog file unreadable, using existing index", zap.Error(err))
		}
		if err := elastic.EnsureIndex(ctx, entries); err != nil {
			elastic.Stop()
			return nil, nil, cleanup, err
		}
		prev := cleanup
		cleanup = func() {
			elastic.Stop()
			prev()
		}
		catalog = elastic
	}

	if catalog == nil {
		entries, err := services.LoadCatalogFile(cfg.CatalogFile)
		if err != nil {
			logger.Warn("catalog file unreadable, search will return nothing", zap.Error(err))
		}
		catalog = services.NewMemoryCatalog(entries)
	}
	return places, catalog, cleanup, nil
}
