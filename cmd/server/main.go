package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/touristquiz/api/internal/config"
	"github.com/touristquiz/api/internal/database"
	"github.com/touristquiz/api/internal/images"
	"github.com/touristquiz/api/internal/migrations"
	"github.com/touristquiz/api/internal/rank"
	"github.com/touristquiz/api/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Redis (leaderboard mirror) ---
	rdb, err := openRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, leaderboard served from sqlite", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
		logger.Info("connected to redis")
	}

	// --- Media storage ---
	media, err := images.NewLocalStore(cfg.MediaDir, cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("preparing media dir: %w", err)
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, db, rdb, media, cfg.LeaderboardLimit)

	if err := server.SeedDemo(ctx, logger, server.NewDocStore(db)); err != nil {
		return fmt.Errorf("seeding demo data: %w", err)
	}

	if rdb != nil {
		if err := server.SyncLeaderboard(ctx, server.NewDocStore(db), rank.New(rdb), cfg.LeaderboardLimit); err != nil {
			logger.Warn("rebuilding leaderboard mirror failed", "error", err)
		}
	}

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
