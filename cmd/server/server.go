package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nwthomas/deep-learning-research-agent/api/handlers"
	"github.com/nwthomas/deep-learning-research-agent/internal/agent"
	"github.com/nwthomas/deep-learning-research-agent/internal/config"
	"github.com/nwthomas/deep-learning-research-agent/internal/db"
	"github.com/nwthomas/deep-learning-research-agent/internal/metrics"
	"github.com/nwthomas/deep-learning-research-agent/internal/repository"
	"github.com/nwthomas/deep-learning-research-agent/internal/session"
	"github.com/nwthomas/deep-learning-research-agent/internal/ws"
)

const (
	shutdownTimeout = 15 * time.Second
	drainPoll       = 50 * time.Millisecond
)

func runServer(ctx context.Context, v *viper.Viper, configPath string) error {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Serve(ctx)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Debug {
		zcfg.Development = true
		zcfg.Encoding = "console"
	}
	log, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log.With(zap.String("service", cfg.AppName)), nil
}

// app is the wired server: registry, session driver, journal and router.
type app struct {
	cfg      *config.Config
	router   *gin.Engine
	registry *ws.Registry
	db       *sql.DB
	logger   *zap.Logger
}

func newApp(ctx context.Context, cfg *config.Config, reg *prometheus.Registry, log *zap.Logger) (*app, error) {
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	registry, err := ws.NewRegistry(cfg.MaxConnections, m, log.Named("registry"))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, registry: registry, logger: log}

	var repo *repository.ResearchRepository
	if cfg.DBPath != "" {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.db = database
		repo = repository.NewResearchRepository(database)

		n, err := repo.MarkInterrupted(ctx, "server restarted")
		if err != nil {
			database.Close()
			return nil, err
		}
		if n > 0 {
			log.Warn("marked interrupted sessions as failed", zap.Int64("count", n))
		}
	}

	builder := agent.NewBuilder(agent.BuilderConfig{
		Supervisor:                 cfg.Supervisor,
		Researcher:                 cfg.Researcher,
		MaxSupervisorIterations:    cfg.MaxSupervisorIterations,
		MaxResearcherIterations:    cfg.MaxResearcherIterations,
		MaxConcurrentResearchUnits: cfg.MaxConcurrentResearchUnits,
		Logger:                     log.Named("agent"),
	})

	driverCfg := session.Config{
		Factory:       builder,
		Releaser:      registry,
		TranscriptDir: cfg.LogDir,
		Metrics:       m,
		Logger:        log.Named("session"),
	}
	if repo != nil {
		driverCfg.Journal = repo
	}
	driver := session.NewDriver(driverCfg)

	router, err := newRouter(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	handlers.NewHealthHandler(registry, cfg.AppName, cfg.AppVersion).RegisterRoutes(&router.RouterGroup)
	handlers.NewWebSocketHandler(ws.NewHandler(registry, driver, log.Named("ws"))).RegisterRoutes(&router.RouterGroup)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	api := router.Group("/api")
	{
		handlers.NewResearchHandler(driver, log.Named("http")).RegisterRoutes(api)
		if repo != nil {
			handlers.NewSessionHandler(repo, cfg.LogDir, log.Named("http")).RegisterRoutes(api)
		}
	}

	a.router = router
	return a, nil
}

func newRouter(cfg *config.Config, log *zap.Logger) (*gin.Engine, error) {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(requestLogger(log.Named("http")), gin.Recovery())

	if len(cfg.CORSAllowedOrigins) > 0 {
		corsConfig, err := newCORSConfig(cfg.CORSAllowedOrigins)
		if err != nil {
			return nil, err
		}
		router.Use(cors.New(corsConfig))
	}
	return router, nil
}

func newCORSConfig(origins []string) (cors.Config, error) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWebSockets = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}

	for _, origin := range origins {
		if origin == "*" {
			corsConfig.AllowAllOrigins = true
			return corsConfig, nil
		}
	}
	for _, origin := range origins {
		if !hasAnyPrefix(origin, "http://", "https://", "ws://", "wss://") {
			return cors.Config{}, fmt.Errorf("invalid CORS origin %q: must include a scheme", origin)
		}
	}
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	return corsConfig, nil
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// requestLogger logs one line per request. Websocket requests are logged
// when their session ends.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// Serve listens until ctx is done, then shuts the server down and waits for
// in-flight sessions to release their slots.
func (a *app) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		// hijacked websocket sessions are canceled through the base context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting server", zap.String("addr", srv.Addr),
			zap.Int("max_connections", a.cfg.MaxConnections))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return a.drain(shutdownCtx)
	})
	return g.Wait()
}

// drain waits for every admitted connection to be released.
func (a *app) drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for {
		active := a.registry.Stats().Active
		if active == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d sessions still active after shutdown: %w", active, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close releases the journal database.
func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
}
