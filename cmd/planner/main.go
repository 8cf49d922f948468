// Package main is the planner command line client: it keeps the want-to-go
// and visited collections locally and reconciles them with the ledger.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"travel-planner/config"
	"travel-planner/ledger"
	"travel-planner/registry"
	"travel-planner/search"
	"travel-planner/storage"
)

var (
	cfg      config.Config
	logger   *zap.Logger
	backend  string
	verbose  bool
	timeout  time.Duration
	reg      *registry.Registry
	gateway  *search.Gateway
	closeAll []func() error
)

var rootCmd = &cobra.Command{
	Use:           "planner",
	Short:         "Plan places to visit and track the ones you have been to",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		if logger, err = config.NewLogger(level); err != nil {
			return err
		}
		return openRegistry(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "sqlite", "Local store: sqlite or redis")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Time allowed for pending ledger calls")

	rootCmd.AddCommand(searchCmd, addCmd, listCmd, moveCmd, categorizeCmd, deleteCmd, reconcileCmd, markersCmd)
}

func main() {
	if err := execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// execute runs one command and always closes what PersistentPreRunE opened,
// so confirmed ledger ids reach the local store even when the command fails.
func execute(args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if closeErr := shutdown(); err == nil {
		err = closeErr
	}
	return err
}

func shutdown() error {
	var firstErr error
	for i := len(closeAll) - 1; i >= 0; i-- {
		if err := closeAll[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	closeAll = nil
	if logger != nil {
		_ = logger.Sync()
	}
	return firstErr
}

func openRegistry(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var store storage.Store
	switch backend {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil {
			return fmt.Errorf("creating store directory: %w", err)
		}
		sqlite, err := storage.OpenSQLiteStore(ctx, cfg.StorePath, logger)
		if err != nil {
			return err
		}
		closeAll = append(closeAll, sqlite.Close)
		store = sqlite
	case "redis":
		if cfg.RedisAddr == "" {
			return fmt.Errorf("--backend redis needs REDIS_ADDR")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("connecting to redis: %w", err)
		}
		closeAll = append(closeAll, client.Close)
		store = storage.NewRedisStore(client, cfg.StorePrefix, logger)
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}

	client, err := ledger.New(cfg.LedgerURL,
		ledger.WithHTTPClient(&http.Client{Timeout: cfg.LedgerTimeout}),
		ledger.WithLogger(logger),
		ledger.WithRetry(200*time.Millisecond, 3),
	)
	if err != nil {
		return err
	}
	gateway = search.NewGateway(client, cfg.DefaultLocation, logger)

	reg = registry.New(client, store,
		registry.WithLogger(logger),
		registry.WithRequestTimeout(cfg.LedgerTimeout),
		registry.WithEventSink(func(ev registry.Event) {
			if ev.Kind == registry.EventNotification {
				fmt.Fprintf(os.Stderr, "warning: %s: %v\n", ev.Key, ev.Err)
			}
		}),
	)
	closeAll = append(closeAll, func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return reg.Close(closeCtx)
	})

	if err := reg.Hydrate(ctx); err != nil {
		return fmt.Errorf("loading collections: %w", err)
	}
	return nil
}
