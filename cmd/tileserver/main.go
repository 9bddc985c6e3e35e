package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gbif/mvt-tile-server/internal/assembler"
	"github.com/gbif/mvt-tile-server/internal/core/config"
	"github.com/gbif/mvt-tile-server/internal/core/health"
	"github.com/gbif/mvt-tile-server/internal/core/httpclient"
	"github.com/gbif/mvt-tile-server/internal/core/observability"
	"github.com/gbif/mvt-tile-server/internal/core/server"
	"github.com/gbif/mvt-tile-server/internal/logger"
	"github.com/gbif/mvt-tile-server/internal/metastore"
	"github.com/gbif/mvt-tile-server/internal/search"
	"github.com/gbif/mvt-tile-server/internal/store"
	"github.com/gbif/mvt-tile-server/internal/store/redisstore"
	"github.com/gbif/mvt-tile-server/pkg/metawatch/kafka"
)

var version = "dev"

func main() {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{Level: cfg.LogLevel, Component: "tileserver"}, os.Stdout)
	log := logger.NewSlog(&zl)
	log.Info("starting tileserver", "addr", cfg.Addr, "admin_addr", cfg.AdminAddr, "version", version)

	observability.ExposeBuildInfo(version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := redisstore.New(ctx, cfg.RedisAddr, redisstore.WithPoolSize(cfg.RedisPoolSize))
	if err != nil {
		log.Error("redis connect failed", "err", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	storeAdapter, err := store.NewAdapter(redisClient, cfg.StoreL1Size, cfg.StoreWorkers)
	if err != nil {
		log.Error("store adapter init failed", "err", err)
		os.Exit(1)
	}

	searchAdapter, err := search.New(httpclient.NewOutbound(), cfg.SearchBackendURL)
	if err != nil {
		log.Error("search adapter init failed", "err", err)
		os.Exit(1)
	}

	var meta metastore.Metastore
	var ready health.ReadinessReporter
	if cfg.MetastoreWatch.Enabled {
		watched := metastore.NewWatched(cfg.Tables, cfg.MetastoreWatch, kafka.Options{Logger: log})
		go func() {
			if err := watched.Start(ctx); err != nil {
				log.Error("metastore watcher stopped", "err", err)
			}
		}()
		defer watched.Stop()
		meta = watched
		ready = watched
	} else {
		meta = metastore.NewStatic(cfg.Tables)
	}

	asm := &assembler.Assembler{
		Meta:        meta,
		Store:       storeAdapter,
		Search:      searchAdapter,
		SaltModulus: cfg.StoreSaltMod,
		TileSize:    cfg.TileSize,
		BufferSize:  cfg.BufferSize,
	}

	if err := server.Run(ctx, cfg, log, asm, ready); err != nil {
		log.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("tileserver stopped")
}
