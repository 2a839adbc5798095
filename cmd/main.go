package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"

	"github.com/kumma49/kuaishou-topn-downloader/internal/api"
	"github.com/kumma49/kuaishou-topn-downloader/internal/browser"
	"github.com/kumma49/kuaishou-topn-downloader/internal/config"
	"github.com/kumma49/kuaishou-topn-downloader/internal/discovery"
	"github.com/kumma49/kuaishou-topn-downloader/internal/filter"
	"github.com/kumma49/kuaishou-topn-downloader/internal/model"
	"github.com/kumma49/kuaishou-topn-downloader/internal/output"
	"github.com/kumma49/kuaishou-topn-downloader/internal/resolver"
	"github.com/kumma49/kuaishou-topn-downloader/internal/search"
	"github.com/kumma49/kuaishou-topn-downloader/pkg/logger"
)

const serpSiteScope = "kuaishou.com/short-video"

func main() {
	cfg := config.Load()
	logger.Init(logger.IsDev())
	log := logger.Log

	// Result sinks. Stdout always; Mongo and NATS when configured.
	sinks := []output.Sink{output.StdoutSink{}}
	if cfg.MongoURL != "" {
		mongoSink, err := output.NewMongoSink(cfg.MongoURL, cfg.MongoDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to MongoDB")
		}
		defer mongoSink.Close()
		sinks = append(sinks, mongoSink)
		log.Info().Str("db", cfg.MongoDB).Msg("mongo sink enabled")
	}
	if cfg.NatsURL != "" {
		natsSink, err := output.NewNatsSink(cfg.NatsURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer natsSink.Close()
		sinks = append(sinks, natsSink)
	}
	sink := output.NewMultiSink(log, sinks...)

	artifacts, err := output.NewFSStore(cfg.ArtifactsDir, log)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.ArtifactsDir).Msg("failed to create artifacts store")
	}
	var media output.BlobStore
	if cfg.DownloadMedia {
		media = artifacts
	}

	// External search backends for the SERP fallback, declaration order is
	// merge order.
	var backends []search.Backend
	if cfg.SerpFallback {
		if cfg.SerpAPIURL != "" {
			backends = append(backends, search.NewSerpBackend(cfg.SerpAPIURL, cfg.SerpAPIKey))
		}
		if cfg.BingEnabled {
			backends = append(backends, search.NewBingBackend())
		}
		if cfg.MeiliURL != "" {
			meili, err := search.NewMeiliBackend(cfg.MeiliURL, cfg.MeiliAPIKey)
			if err != nil {
				log.Warn().Err(err).Msg("meilisearch backend unavailable, continuing without it")
			} else {
				backends = append(backends, meili)
			}
		}
	}
	var agg *search.Aggregator
	if len(backends) > 0 {
		agg = search.NewAggregator(backends, serpSiteScope, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := browser.New(ctx, browser.Options{
		MaxTabs:      cfg.MaxTabs,
		NavTimeout:   cfg.NavTimeout,
		SettleDelay:  cfg.SettleDelay,
		NavPerMinute: cfg.NavPerMinute,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start browser")
	}
	defer b.Close()

	discOpen := func(ctx context.Context) (discovery.Session, error) {
		t, err := b.NewTab(ctx)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	resOpen := func(ctx context.Context) (resolver.Session, error) {
		t, err := b.NewTab(ctx)
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	waterfall := discovery.NewWaterfall(discOpen, agg, cfg.PrimaryHost, cfg.MirrorHost, cfg.ScrollSteps, artifacts, log)
	res := resolver.New(resOpen, waterfall, sink, artifacts, media, resolver.Options{
		Limit:         cfg.Limit,
		AcceptStream:  cfg.AcceptStream,
		DownloadMedia: cfg.DownloadMedia,
	}, log)
	pool := resolver.NewPool(res, cfg.WorkerCount, cfg.ItemTimeout, log)

	// One-shot mode: resolve the configured inputs, drain, exit.
	if cfg.Keyword != "" || len(cfg.URLs) > 0 {
		go pool.Run(ctx)

		if cfg.Keyword != "" {
			pool.Submit(model.WorkItem{Search: &model.SearchRequest{Keyword: cfg.Keyword}})
		}
		for _, u := range filter.Dedupe(cfg.URLs) {
			if !filter.IsDetailURL(u) {
				log.Warn().Str("url", u).Msg("skipping non-detail url")
				continue
			}
			pool.Submit(model.WorkItem{Detail: &model.DetailRequest{URL: u}})
		}

		pool.Drain()
		log.Info().Msg("one-shot run finished")
		return
	}

	// Server mode.
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             1 * 1024 * 1024,
	})
	api.NewHandler(pool, log).SetupRoutes(app)
	go func() {
		addr := ":" + cfg.HTTPPort
		log.Info().Str("addr", addr).Msg("HTTP API server starting")
		if err := app.Listen(addr); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down")
		_ = app.Shutdown()
		cancel()
	}()

	log.Info().
		Int("workers", cfg.WorkerCount).
		Str("primary_host", cfg.PrimaryHost).
		Int("search_backends", len(backends)).
		Msg("resolver started")

	if err := pool.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("worker pool error")
	}
}
