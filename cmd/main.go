package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/jmv4/ghlkit/internal/config"
	"github.com/jmv4/ghlkit/internal/ghl"
	"github.com/jmv4/ghlkit/internal/logging"
	"github.com/jmv4/ghlkit/internal/metrics"
	"github.com/jmv4/ghlkit/internal/query"
	"github.com/jmv4/ghlkit/internal/server"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "GHLKIT", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	storeLogger := logger.With(slog.String("agent", "snapshot_factory"))
	snapshots := buildSnapshotStore(storeLogger, cfg.Cache.Snapshot)

	cache := query.New(query.Options{
		Logger:      logger,
		Metrics:     metricsRecorder,
		GracePeriod: cfg.Cache.GraceDuration(),
		Snapshots:   snapshots,
		SnapshotTTL: cfg.Cache.Snapshot.TTLDuration(),
	})
	defer cache.Close()

	client, err := ghl.NewClient(ghl.ClientConfig{
		BaseURL:    cfg.GHL.BaseURL,
		Token:      cfg.GHL.Token,
		APIVersion: cfg.GHL.APIVersion,
		Timeout:    cfg.GHL.TimeoutDuration(),
	})
	if err != nil {
		logger.Error("unable to construct platform client", slog.Any("error", err))
		os.Exit(1)
	}

	hooks := ghl.NewHooks(cache, client, ghl.HookOptions{
		DefaultLocation: cfg.GHL.LocationID,
		Tuning:          hookTuning(cfg.Hooks),
	})

	if cfg.GHL.LocationID != "" && cfg.GHL.Token != "" {
		warmup(ctx, logger, hooks)
	}

	var hooksWatcher *config.HooksWatcher
	if *configFile != "" {
		current := cfg.Hooks
		watcher, err := loader.WatchHooks(ctx, func(tunings map[string]config.HookTuning) {
			hooks.SetTuning(hookTuning(tunings))
			if changed := changedResources(current, tunings); len(changed) > 0 {
				cache.Invalidate(ctx, changed...)
			}
			current = tunings
			logger.Info("hook tuning reloaded", slog.Int("resources", len(tunings)))
		}, func(err error) {
			if err != nil {
				logger.Error("hooks watcher error", slog.Any("error", err))
			}
		})
		if err != nil {
			logger.Error("hooks watcher setup failed", slog.Any("error", err))
		} else {
			hooksWatcher = watcher
			defer hooksWatcher.Stop()
		}
	}

	api, err := server.NewAPI(hooks, cache, logger)
	if err != nil {
		logger.Error("unable to construct hook api", slog.Any("error", err))
		os.Exit(1)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsRecorder.Handler())
	mux.Handle("/", server.NewHookHandler(api))

	srv, err := server.New(cfg, logger, mux)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// buildSnapshotStore picks the L2 seed backend, falling back to running
// without one when the configured backend cannot start. A broken snapshot
// store should never block serving.
func buildSnapshotStore(logger *slog.Logger, cfg config.SnapshotConfig) query.SnapshotStore {
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	switch backend {
	case "", "none":
		return nil
	case "memory":
		if logger != nil {
			logger.Info("using memory snapshot store", slog.Duration("ttl", cfg.TTLDuration()))
		}
		return query.NewMemorySnapshots(cfg.TTLDuration())
	case "valkey":
		store, err := query.NewValkeySnapshots(query.ValkeyConfig{
			Address:  cfg.Valkey.Address,
			Username: cfg.Valkey.Username,
			Password: cfg.Valkey.Password,
			DB:       cfg.Valkey.DB,
			TLS: query.ValkeyTLSConfig{
				Enabled: cfg.Valkey.TLS.Enabled,
				CAFile:  cfg.Valkey.TLS.CAFile,
			},
		})
		if err != nil {
			if logger != nil {
				logger.Error("valkey snapshot store initialization failed", slog.Any("error", err))
				logger.Info("continuing without a snapshot store")
			}
			return nil
		}
		if logger != nil {
			logger.Info("using valkey snapshot store", slog.String("address", cfg.Valkey.Address))
		}
		return store
	default:
		if logger != nil {
			logger.Warn("unsupported snapshot backend, continuing without one", slog.String("backend", cfg.Backend))
		}
		return nil
	}
}

// hookTuning converts the config representation into the hook layer's
// duration-based one.
func hookTuning(src map[string]config.HookTuning) map[string]ghl.Tuning {
	out := make(map[string]ghl.Tuning, len(src))
	for name, t := range src {
		out[name] = ghl.Tuning{
			RefetchInterval: t.Interval(),
			Enabled:         t.Enabled,
		}
	}
	return out
}

// changedResources lists the key prefixes whose tuning differs between two
// reloads, so cached entries refresh under the new cadence instead of aging
// out under the old one.
func changedResources(before, after map[string]config.HookTuning) []query.Key {
	var prefixes []query.Key
	for name, tuning := range after {
		old, ok := before[name]
		if !ok || old.Interval() != tuning.Interval() || old.IsEnabled() != tuning.IsEnabled() {
			prefixes = append(prefixes, query.K(name))
		}
	}
	for name := range before {
		if _, ok := after[name]; !ok {
			prefixes = append(prefixes, query.K(name))
		}
	}
	return prefixes
}

// warmup primes the hottest caches concurrently so the first real requests
// land on warm entries. Failures are logged and otherwise ignored; startup
// must not depend on the platform being reachable.
func warmup(ctx context.Context, logger *slog.Logger, hooks *ghl.Hooks) {
	g, warmCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h := hooks.Contacts(ghl.ContactSearchParams{}, query.QueryOptions{})
		defer h.Close()
		_, res := h.Wait(warmCtx)
		return res.Err
	})
	g.Go(func() error {
		h := hooks.Opportunities(ghl.OpportunitySearchParams{}, query.QueryOptions{})
		defer h.Close()
		_, _, res := h.WaitPage(warmCtx)
		return res.Err
	})
	if err := g.Wait(); err != nil {
		logger.Warn("cache warmup incomplete", slog.Any("error", err))
	}
}
