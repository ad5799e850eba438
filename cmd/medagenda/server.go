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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medagenda/medagenda/internal/config"
	"github.com/medagenda/medagenda/internal/domain/appointment"
	"github.com/medagenda/medagenda/internal/domain/team"
	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/auth"
	"github.com/medagenda/medagenda/internal/platform/codegen"
	"github.com/medagenda/medagenda/internal/platform/db"
	"github.com/medagenda/medagenda/internal/platform/guard"
	"github.com/medagenda/medagenda/internal/platform/jobs"
	"github.com/medagenda/medagenda/internal/platform/middleware"
	"github.com/medagenda/medagenda/internal/platform/notification"
	"github.com/medagenda/medagenda/internal/platform/telemetry"
	"github.com/medagenda/medagenda/internal/platform/upstream"
)

// server holds the wired dependencies of a running instance.
type server struct {
	cfg       *config.Config
	logger    zerolog.Logger
	echo      *echo.Echo
	registry  *prometheus.Registry
	metrics   *telemetry.Metrics
	pool      *pgxpool.Pool
	redis     *redis.Client
	team      *team.Service
	scheduler *jobs.Scheduler
}

// newServer connects the configured backing services and builds the router.
// Without DATABASE_URL the stores live in memory; without REDIS_URL the
// attempt guard does too.
func newServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &server{cfg: cfg, logger: logger, registry: telemetry.NewRegistry()}
	s.metrics = telemetry.NewMetrics(s.registry)

	var (
		teamRepo team.Repository
		aptRepo  appointment.Repository
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		s.pool = pool
		teamRepo = team.NewPGRepository(pool)
		aptRepo = appointment.NewPGRepository(pool)
		logger.Info().Msg("connected to database")
	} else {
		teamRepo = team.NewMemoryRepository()
		var seed []appointment.Appointment
		if cfg.SeedFixtures {
			seed = appointment.Fixtures(time.Now())
		}
		aptRepo = appointment.NewMemoryRepository(seed...)
		logger.Warn().Int("appointments", len(seed)).Msg("DATABASE_URL not set; using in-memory storage")
	}

	var (
		store    guard.Store
		counters *guard.MemoryStore
	)
	if cfg.RedisURL == "" {
		counters = guard.NewMemoryStore()
		store = counters
	} else {
		client, err := guard.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.redis = client
		store = guard.NewRedisStore(client)
	}
	joinGuard := guard.New(store, guard.Config{Scope: "join", MaxAttempts: cfg.GuardMaxAttempts, Window: cfg.GuardWindow}, logger, s.metrics)
	presenceGuard := guard.New(store, guard.Config{Scope: "presence", MaxAttempts: cfg.GuardMaxAttempts, Window: cfg.GuardWindow}, logger, s.metrics)

	var sender notification.EmailSender = notification.NewLogSender(logger)
	if sg := notification.NewSendGridSender(notification.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	}
	mailer := notification.NewInviteMailer(sender, notification.NewTemplateEngine(), cfg.FrontendURL)

	s.team = team.NewService(teamRepo, codegen.Default(), team.Config{
		JoinCodeTTL:        cfg.JoinCodeTTL,
		InviteTTL:          cfg.InviteTTL,
		DefaultUses:        cfg.JoinCodeUses,
		DoctorTeamCodes:    cfg.DoctorTeamCodes,
		DoctorTeamRedirect: cfg.DoctorTeamRedirect,
		SecretaryRedirect:  cfg.SecretaryRedirect,
	}, team.WithNotifier(mailer), team.WithLogger(logger), team.WithMetrics(s.metrics))
	apts := appointment.NewService(aptRepo, appointment.WithLogger(logger), appointment.WithMetrics(s.metrics))

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})

	s.scheduler = jobs.NewScheduler(logger)
	if err := s.scheduler.Add(jobs.Job{Name: "expire-join-codes", Schedule: cfg.SweepSchedule, Timeout: time.Minute, Run: s.team.SweepExpired}); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.scheduler.Add(jobs.Job{Name: "prune-rate-limiters", Schedule: "@every 1m", Run: func(context.Context) (int, error) {
		return limiter.Prune(), nil
	}}); err != nil {
		s.Close()
		return nil, err
	}
	// Redis expires its counters on its own.
	if counters != nil {
		if err := s.scheduler.Add(jobs.Job{Name: "prune-attempt-counters", Schedule: "@every 1m", Run: func(context.Context) (int, error) {
			return counters.Prune(), nil
		}}); err != nil {
			s.Close()
			return nil, err
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	// Metrics wraps Logger so it sees the rendered status.
	e.Use(middleware.RequestID())
	e.Use(middleware.Metrics(s.metrics))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderAccept, middleware.RequestIDHeader},
	}))
	e.Use(limiter.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.pool != nil {
		e.GET("/health/db", db.HealthHandler(s.pool))
	} else {
		e.GET("/health/db", db.HealthHandler(nil))
	}
	e.GET("/metrics", telemetry.Handler(s.registry))

	api := e.Group("/api", middleware.RequestTimeout(cfg.RequestTimeout))

	jwtCfg := auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: []byte(cfg.AuthSigningKey)}
	authMW := auth.JWTMiddleware(jwtCfg)
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtCfg)
	}
	team.NewHandler(s.team, joinGuard).RegisterRoutes(api.Group("/team", authMW))
	appointment.NewHandler(apts, presenceGuard).RegisterRoutes(api)

	proxy := upstream.New(upstream.Config{BaseURL: cfg.BackendAPIURL, Timeout: cfg.UpstreamTimeout}, logger, s.metrics)
	api.Any("", proxy.Handle)
	api.Any("/*", proxy.Handle)

	s.echo = e
	return s, nil
}

// Close releases backing connections.
func (s *server) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing redis")
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func runServer(cfg *config.Config) error {
	logger := newLogger(cfg)

	ctx := context.Background()
	s, err := newServer(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}
	defer s.Close()

	s.scheduler.Start()
	defer s.scheduler.Stop()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
