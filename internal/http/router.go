// Package httpapi wires the HTTP transport (Gin) to the movie service,
// middleware, and route handlers. It centralizes cross-cutting concerns:
// tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, authentication, idempotency, and rate
// limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-movies-backend/docs"
	"github.com/tbourn/go-movies-backend/internal/auth"
	"github.com/tbourn/go-movies-backend/internal/config"
	"github.com/tbourn/go-movies-backend/internal/domain"
	"github.com/tbourn/go-movies-backend/internal/http/handlers"
	"github.com/tbourn/go-movies-backend/internal/http/middleware"
	"github.com/tbourn/go-movies-backend/internal/repo"
	"github.com/tbourn/go-movies-backend/internal/services"
)

// movieRepoShim adapts the repository free functions to the services.MovieRepo
// interface expected by the MovieService.
type movieRepoShim struct{}

// CreateMovie proxies repo.CreateMovie.
func (movieRepoShim) CreateMovie(ctx context.Context, db *gorm.DB, m *domain.Movie) error {
	return repo.CreateMovie(ctx, db, m)
}

// SaveMovie proxies repo.SaveMovie.
func (movieRepoShim) SaveMovie(ctx context.Context, db *gorm.DB, m *domain.Movie) error {
	return repo.SaveMovie(ctx, db, m)
}

// GetMovie proxies repo.GetMovie.
func (movieRepoShim) GetMovie(ctx context.Context, db *gorm.DB, id string) (*domain.Movie, error) {
	return repo.GetMovie(ctx, db, id)
}

// MovieTitleExists proxies repo.MovieTitleExists.
func (movieRepoShim) MovieTitleExists(ctx context.Context, db *gorm.DB, title string) (bool, error) {
	return repo.MovieTitleExists(ctx, db, title)
}

// ListMovies proxies repo.ListMovies.
func (movieRepoShim) ListMovies(ctx context.Context, db *gorm.DB) ([]domain.Movie, error) {
	return repo.ListMovies(ctx, db)
}

// DeleteMovie proxies repo.DeleteMovie.
func (movieRepoShim) DeleteMovie(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteMovie(ctx, db, id)
}

// idempotencyStore persists Idempotency-Key outcomes with a fixed TTL and
// answers the middleware's lookups.
type idempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// Record implements handlers.IdempotencyRecorder. A concurrent retry that
// already stored the same key is not an error.
func (s idempotencyStore) Record(ctx context.Context, userID, scope, key, resourceID string, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, scope, key, resourceID, status, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Lookup implements middleware.IdempotencyLookup.
func (s idempotencyStore) Lookup(ctx context.Context, userID, scope, key string, now time.Time) (string, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, userID, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.ResourceID, true, nil
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: observability, CORS and security headers, health, metrics and docs
// endpoints, and the authenticated movie API under cfg.APIBasePath.
//
// Global middleware order:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: access logs with PII scrubbing, request-scoped logger
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip (except /metrics, which compresses itself)
//  8. CORS and Security headers
//
// The API group then runs BasicAuth → Authorize → Idempotency validator →
// Rate limiter, so limits and idempotency keys are per principal and
// replays skip the limiter.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, users middleware.Authenticator, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 8) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", health(db))

	// API docs
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: handlers ← services ← repo/db
	idem := idempotencyStore{db: db, ttl: cfg.IdempotencyTTL}
	if idem.ttl <= 0 {
		idem.ttl = 24 * time.Hour
	}
	movieSvc := services.NewMovieService(db, movieRepoShim{})
	h := handlers.New(movieSvc, idem)

	realm := cfg.Auth.Realm
	if realm == "" {
		realm = "movies"
	}
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	api.Use(
		middleware.BasicAuth(users, realm),
		middleware.Authorize(auth.DefaultPolicy(apiBase)),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idem.Lookup),
		rl.Handler(),
	)
	{
		// Greetings (one role each)
		api.Any("/movies/hello/user", h.Hello)
		api.Any("/movies/hello/admin", h.Hello)
		api.Any("/movies/hello/root", h.Hello)

		// Structured create/update
		api.POST("/movies/dto", h.CreateMovie)
		api.PUT("/movies/dto", h.UpdateMovie)

		// Raw record access
		api.GET("/movies", h.ListMovies)
		api.GET("/movies/:id", h.GetMovie)
		api.POST("/movies", h.AddMovie)
		api.PUT("/movies/:id", h.ReplaceMovie)
		api.DELETE("/movies/:id", h.DeleteMovie)
	}
}

// health reports liveness plus store reachability.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("health: store unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
