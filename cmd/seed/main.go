// Command seed fills the database with demo users, courses, videos,
// reviews and news for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"lectern/internal/cache"
	"lectern/internal/config"
	"lectern/internal/database"
	"lectern/internal/middleware"
	"lectern/internal/seed"
	"lectern/internal/storage"
)

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	defaults := seed.DefaultOptions()
	opts := seed.Options{}
	flag.IntVar(&opts.Users, "users", defaults.Users, "Number of learners to create")
	flag.IntVar(&opts.Courses, "courses", defaults.Courses, "Number of courses to create")
	flag.IntVar(&opts.VideosPerCourse, "videos", defaults.VideosPerCourse, "Videos per course")
	flag.BoolVar(&opts.Clean, "clean", defaults.Clean, "Remove demo data before seeding")
	flag.Int64Var(&opts.RandSeed, "rand-seed", defaults.RandSeed, "Random seed for generated content")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.IsProduction() {
		return errors.New("refusing to seed a production database")
	}
	middleware.SetupLogger(cfg.Env, os.Stderr)

	ctx := context.Background()
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	// The server's catalog cache lives in Redis; seeding writes behind it.
	if cfg.RedisURL != "" {
		cache.InitRedis(cfg.RedisURL)
	}
	store, err := storage.FromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	if _, err := seed.NewSeeder(db, store, opts).Run(ctx); err != nil {
		return err
	}
	return nil
}
