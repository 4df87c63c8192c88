package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comic-edge/internal/api"
	"comic-edge/internal/backoff"
	"comic-edge/internal/caps"
	"comic-edge/internal/config"
	"comic-edge/internal/edge"
	"comic-edge/internal/logs"
	"comic-edge/internal/metrics"
	"comic-edge/internal/origin"
	"comic-edge/internal/otruyen"
	"comic-edge/internal/persist"
	"comic-edge/internal/prefetch"
	"comic-edge/internal/store"
	"comic-edge/internal/ttl"
)

const envFile = ".env"

func main() {
	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Root context, cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logger
	logger := logs.NewLogger(cfg.LogHistory, logs.ParseLevel(cfg.LogLevel)).WithOutput(os.Stdout)
	logger.Infof("config loaded: %s", cfg)

	// Metrics
	metricsRegistry := metrics.NewRegistry()

	// Tiered cache
	backend, err := persist.Open(ctx, persist.Config{
		Backend:    cfg.CacheBackend,
		SQLitePath: cfg.CacheSQLitePath,
		Redis: persist.RedisConfig{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
		},
		Retry: backoff.DefaultPolicy(),
	}, logger)
	if err != nil {
		logger.Errorf("persistent cache unavailable, serving from memory only: %v", err)
	}

	opts := []store.Option{
		store.WithMemoryItems(cfg.CacheMemoryItems),
		store.WithDefaultTTL(cfg.CacheDefaultTTL),
	}
	if backend != nil {
		defer backend.Close()
		opts = append(opts, store.WithPersistent(backend))
	}
	cache := store.NewTiered(metricsRegistry, logger, opts...)

	// TTL cleaner
	ttlCleaner := ttl.NewCleaner(cache, cfg.CacheCleanupInterval, logger, metricsRegistry)
	go ttlCleaner.Start(ctx)

	// Comic API client
	capabilities := caps.Detect(cfg.PrefetchIdle, cfg.ImageWebP)
	logger.Infof("capabilities: %s", capabilities)

	comics, err := otruyen.New(otruyen.Config{
		BaseURL:  cfg.APIBaseURL,
		ImageCDN: cfg.CDNImageURL,
	}, cache, capabilities, metricsRegistry, logger)
	if err != nil {
		log.Fatalf("otruyen: %v", err)
	}

	// Edge asset cache
	routes, _ := cfg.Routes() // checked by config.Validate
	edgeCache, err := edge.New(ctx, edge.Config{
		Origin:            cfg.OriginURL,
		Routes:            routes,
		PopularCategories: cfg.PopularCategories(),
		MaxBodyBytes:      cfg.EdgeMaxBodyBytes,
		BucketLimits: edge.BucketLimits{
			MaxEntries: cfg.EdgeBucketMaxEntries,
			MaxBytes:   cfg.EdgeBucketMaxBytes,
		},
	}, metricsRegistry, logger)
	if err != nil {
		log.Fatalf("edge: %v", err)
	}
	if err := edgeCache.Install(ctx); err != nil {
		logger.Warnf("edge: app shell not installed, continuing: %v", err)
	}
	edgeCache.Activate()

	// Upstream health
	originCfg := origin.DefaultConfig()
	originCfg.Probe.Interval = cfg.OriginProbeInterval
	tracker := origin.NewTracker(originCfg, metricsRegistry)
	tracker.Add("site", cfg.OriginURL)
	tracker.Add("api", cfg.APIBaseURL)
	go origin.NewProber(tracker, originCfg, metricsRegistry, logger).Start(ctx)

	// Prefetch queue
	inflight := &api.InFlight{}
	allowed := append([]string{cfg.APIBaseURL, cfg.CDNImageURL}, otruyen.DefaultChapterHosts()...)
	targets, err := prefetch.NewTargets(cfg.OriginURL, allowed...)
	if err != nil {
		log.Fatalf("prefetch: %v", err)
	}
	dispatcher := prefetch.NewDispatcher(edgeCache, nil, targets)
	queueOpts := []prefetch.Option{prefetch.WithSeenTTL(cfg.PrefetchSeenTTL)}
	if capabilities.IdleScheduling {
		queueOpts = append(queueOpts, prefetch.WithIdleGate(inflight, 0))
	}
	queue := prefetch.NewQueue(dispatcher, metricsRegistry, logger, queueOpts...)
	go queue.Run(ctx)

	// Live config reload
	watcher := config.NewWatcher(envFile, logger, func(next *config.Config) {
		logger.SetLevel(logs.ParseLevel(next.LogLevel))
		if routes, err := next.Routes(); err == nil {
			edgeCache.SetRoutes(routes)
		}
		edgeCache.SetPopularCategories(next.PopularCategories())
	})
	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.Warnf("config: not watching %s: %v", envFile, err)
		}
	}()

	// API
	handler := api.NewHandler(api.Deps{
		Cache:   cache,
		Edge:    edgeCache,
		Queue:   queue,
		Targets: targets,
		Comics:  comics,
		Origins: tracker,
		Cleaner: ttlCleaner,
		Metrics: metricsRegistry,
		Logger:  logger,
	})
	mux := http.NewServeMux()
	httpHandler := api.RegisterRoutes(mux, handler, inflight, logger)

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("server started on %s", cfg.AppAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	edgeCache.Wait()
}
