package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/johnrirwin/feedformatter/internal/cache"
	"github.com/johnrirwin/feedformatter/internal/config"
	"github.com/johnrirwin/feedformatter/internal/formatter"
	"github.com/johnrirwin/feedformatter/internal/httpapi"
	"github.com/johnrirwin/feedformatter/internal/logging"
	"github.com/johnrirwin/feedformatter/internal/metrics"
	"github.com/johnrirwin/feedformatter/internal/registry"
	"github.com/johnrirwin/feedformatter/internal/render"
	"github.com/johnrirwin/feedformatter/internal/sources"
)

// App holds all application dependencies
type App struct {
	Config     *config.Config
	Logger     *logging.Logger
	Cache      cache.Cache[formatter.Entry]
	Registry   *registry.Registry
	Formatter  *formatter.Service
	Metrics    *metrics.Metrics
	HTTPServer *httpapi.Server

	promRegistry *prometheus.Registry
	logFile      *os.File
	redisCache   *cache.RedisCache[formatter.Entry]
}

// New creates and initializes a new App instance
func New(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	logger, err := app.initLogger()
	if err != nil {
		return nil, err
	}
	app.Logger = logger

	reg, err := registry.New(cfg.Feeds, cfg.FeedDefaults)
	if err != nil {
		app.closeLog()
		return nil, fmt.Errorf("build feed registry: %w", err)
	}
	app.Registry = reg

	if info, err := os.Stat(cfg.TemplatesDir); err != nil || !info.IsDir() {
		app.closeLog()
		return nil, fmt.Errorf("templates directory %q is not readable", cfg.TemplatesDir)
	}

	app.initMetrics()
	app.Cache = app.initCache()

	fetcher := sources.NewHTTPFetcher(sources.FetcherConfig{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	})

	app.Formatter = formatter.New(reg, fetcher, render.NewTemplateStore(cfg.TemplatesDir), app.Logger.Named("formatter")).
		WithCache(app.Cache).
		WithMetrics(app.Metrics)

	app.HTTPServer = httpapi.New(app.Formatter, app.Logger).
		WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout).
		WithMetricsHandler(promhttp.HandlerFor(app.promRegistry, promhttp.HandlerOpts{}))

	app.Logger.Info("Feed registry loaded", logging.WithFields(map[string]interface{}{
		"feeds":     reg.Len(),
		"templates": cfg.TemplatesDir,
		"cache":     cfg.Cache.Enabled(),
	}))

	return app, nil
}

// Run serves HTTP until the server is shut down.
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info("Starting HTTP server", logging.WithField("addr", a.Config.Server.Addr()))
	return a.HTTPServer.Start(a.Config.Server.Addr())
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.Logger.Error("Redis close error", logging.WithField("error", err.Error()))
		}
	}

	a.closeLog()
	return nil
}

func (a *App) initLogger() (*logging.Logger, error) {
	level, err := logging.ParseLevel(a.Config.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}

	var out io.Writer = os.Stdout
	if a.Config.Logging.File != "" {
		f, openErr := os.OpenFile(a.Config.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if openErr != nil {
			return nil, fmt.Errorf("open log file: %w", openErr)
		}
		a.logFile = f
		out = f
	}

	logger := logging.NewWithWriter(level, out)
	if err != nil {
		logger.Warn("Unknown log level, using info", logging.WithField("level", a.Config.Logging.Level))
	}
	return logger, nil
}

func (a *App) initMetrics() {
	a.promRegistry = prometheus.NewRegistry()
	a.promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.promRegistry)
}

// initCache returns nil when caching is disabled, which skips the cache
// stages of the pipeline.
func (a *App) initCache() cache.Cache[formatter.Entry] {
	cfg := a.Config.Cache
	if !cfg.Enabled() {
		a.Logger.Info("Response cache disabled")
		return nil
	}

	switch cfg.Backend {
	case config.CacheBackendRedis:
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", cfg.RedisAddr))
		redisCache, err := cache.NewRedis[formatter.Entry](cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, cfg.MaxAge())
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			return cache.NewMemory[formatter.Entry](cfg.MaxAge())
		}
		a.redisCache = redisCache.WithLogger(a.Logger.Named("cache"))
		return a.redisCache
	default:
		a.Logger.Info("Using in-memory cache backend", logging.WithField("max_age", cfg.MaxAge().String()))
		return cache.NewMemory[formatter.Entry](cfg.MaxAge())
	}
}

func (a *App) closeLog() {
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}
