// Command server runs the movie record HTTP API.
//
// Startup order: .env → config → logging → tracing → store (open, migrate,
// optional demo seed) → accounts → Gin router → HTTP server. SIGINT/SIGTERM
// trigger a graceful shutdown bounded by shutdownTimeout.
//
//	@title						Movies API
//	@version					1.0
//	@description				Movie records with Basic authentication and role-based access.
//	@BasePath					/api/v1
//	@securityDefinitions.basic	BasicAuth
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-movies-backend/docs"
	"github.com/tbourn/go-movies-backend/internal/auth"
	"github.com/tbourn/go-movies-backend/internal/config"
	httpapi "github.com/tbourn/go-movies-backend/internal/http"
	"github.com/tbourn/go-movies-backend/internal/observability"
	"github.com/tbourn/go-movies-backend/internal/repo"
	"github.com/tbourn/go-movies-backend/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = time.Hour
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName)
	zerolog.DefaultContextLogger = &log.Logger

	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	log.Info().
		Str("version", ver).
		Str("db_driver", cfg.DB.Driver).
		Str("id_format", cfg.IDFormat).
		Str("base_path", cfg.APIBasePath).
		Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	users, err := auth.ParseUsers(cfg.Auth.Users, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("AUTH_USERS: %w", err)
	}
	log.Info().Strs("accounts", users.Names()).Msg("accounts loaded")

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		docs.SwaggerInfo.Version = ver
	}
	httpapi.RegisterRoutes(r, db, users, cfg)

	go purgeIdempotency(ctx, db, purgeInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("stopped")
	return nil
}

// openStore connects to the configured backend, migrates the schema,
// selects the id format, and seeds demo movies into an empty store when
// SEED_DEMO_DATA is set.
func openStore(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	db, err := repo.Open(repo.Options{
		Driver:  cfg.DB.Driver,
		Path:    cfg.DB.Path,
		DSN:     cfg.DB.DSN,
		Tracing: cfg.DB.Tracing,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DB.Driver, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := repo.SetIDFormat(cfg.IDFormat); err != nil {
		return nil, err
	}
	if cfg.SeedDemo {
		n, err := repo.SeedDemoMovies(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		log.Info().Int("inserted", n).Msg("demo movies seeded")
	}
	return db, nil
}

// purgeIdempotency removes expired Idempotency-Key records every interval
// until ctx is done.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("idempotency purge")
			}
		}
	}
}
