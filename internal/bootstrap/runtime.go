// Package bootstrap connects the process to its backing services.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"lectern/internal/cache"
	"lectern/internal/config"
	"lectern/internal/database"
	"lectern/internal/events"
	"lectern/internal/mailer"
	"lectern/internal/middleware"
	"lectern/internal/models"
	"lectern/internal/repository"
	"lectern/internal/seed"
	"lectern/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs migrations or AutoMigrate per DB_SCHEMA_MODE.
	ApplySchema bool
}

// Runtime is the set of initialized backing services.
type Runtime struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Store     storage.Store
	Publisher events.Publisher
	Mailer    mailer.Mailer
}

// InitRuntime connects to the database, Redis, blob storage, the event
// broker and the mail provider.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("apply schema: %w", err)
		}
		if err := seed.Defaults(ctx, db); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("default settings: %w", err)
		}
	}

	// Redis is optional; a nil client falls back to in-process state.
	cache.InitRedis(cfg.RedisURL)

	store, err := storage.FromConfig(ctx, cfg)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	if err := EnsureDevAdmin(ctx, cfg, repository.NewUserRepository(db)); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	return &Runtime{
		DB:        db,
		Redis:     cache.GetClient(),
		Store:     store,
		Publisher: events.New(cfg.KafkaBrokerList(), cfg.KafkaAuditTopic),
		Mailer:    mailer.New(cfg, middleware.Logger),
	}, nil
}

// Close releases the database and Redis connections.
func (r *Runtime) Close() error {
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.DB != nil {
		errs = append(errs, database.Close(r.DB))
	}
	return errors.Join(errs...)
}

// EnsureDevAdmin makes DEV_ADMIN_EMAIL an admin in development. A missing
// user is created so the first Google sign-in with that address links to it.
func EnsureDevAdmin(ctx context.Context, cfg *config.Config, users repository.UserRepository) error {
	if cfg == nil || !cfg.DevBootstrapAdmin || !strings.EqualFold(cfg.Env, "development") {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.DevAdminEmail))
	if email == "" {
		return errors.New("DEV_ADMIN_EMAIL must be set when DEV_BOOTSTRAP_ADMIN is enabled")
	}

	user, err := users.GetByEmail(ctx, email)
	switch {
	case err != nil:
		return err
	case user == nil:
		user = &models.User{Email: email, Name: "Development Admin", IsAdmin: true}
		if err := users.Create(ctx, user); err != nil {
			return err
		}
	case !user.IsAdmin:
		if err := users.SetAdmin(ctx, user.ID, true); err != nil {
			return err
		}
	}

	middleware.Logger.InfoContext(ctx, "development admin ensured",
		slog.Uint64("user_id", uint64(user.ID)), slog.String("email", email))
	return nil
}
