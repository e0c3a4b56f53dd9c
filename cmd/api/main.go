package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spacegrid/internal/api"
	"spacegrid/internal/config"
	"spacegrid/internal/database"
	"spacegrid/internal/domain"
	"spacegrid/internal/events"
	"spacegrid/internal/logging"
	"spacegrid/internal/metrics"
	"spacegrid/internal/models"
	"spacegrid/internal/repository"
	"spacegrid/internal/seed"
	"spacegrid/internal/service"
	"spacegrid/internal/slots"
	"spacegrid/internal/ticks"
	"spacegrid/internal/timeutil"
	"spacegrid/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus()
	spaces := service.NewSpaceService(db, bus, &logger)
	if err := seedSpaces(ctx, cfg, spaces, &logger); err != nil {
		return err
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	cache := initGridCache(ctx, cfg, redisClient, &logger)

	schedule := service.NewScheduleService(db, cache, service.ScheduleOptions{
		Policy: slots.Policy{BookingOverridesBlackout: cfg.Engine.BookingOverridesBlackout},
		Ticks: ticks.Options{
			FallbackZone: cfg.Engine.FallbackZone,
			RangeStart:   cfg.Engine.DefaultRangeStart,
			RangeEnd:     cfg.Engine.DefaultRangeEnd,
		},
	}, &logger)
	bookings := service.NewBookingService(db, bus, &logger)
	defaultSlot := models.SlotMinutes(cfg.Engine.DefaultSlotMinutes)

	startWarmer(ctx, cfg, schedule, bus, defaultSlot, &logger)
	startBackups(ctx, cfg, db, &logger)
	startMetrics(ctx, cfg, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, db, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go grpcServer.WatchHealth(ctx, 15*time.Second)
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Spaces:   spaces,
		Bookings: bookings,
		Schedule: schedule,
		Health:   db.PingContext,
	}, defaultSlot, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func seedSpaces(ctx context.Context, cfg *config.Config, spaces *service.SpaceService, logger *zerolog.Logger) error {
	path := os.Getenv("SPACES_PATH")
	if path == "" {
		path = cfg.SpacesFile
	}
	if path == "" {
		return nil
	}

	catalog, err := seed.LoadSpacesFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("spaces_path", path).Msg("spaces file not found, skipping seed")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("spaces_path", path).Msg("load spaces")
		return err
	}

	res, err := seed.Apply(ctx, spaces, catalog)
	if err != nil {
		return fmt.Errorf("seed spaces: %w", err)
	}
	logger.Info().Int("created", res.Created).Int("updated", res.Updated).Msg("spaces seeded")
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initGridCache returns nil when caching is off, in-memory without Redis,
// and Redis with in-memory failover otherwise.
func initGridCache(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.GridCache {
	if !cfg.Cache.Enabled {
		return nil
	}

	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	memory := repository.NewMemoryGridCache(ttl)
	go sweepMemoryCache(ctx, memory, ttl, logger)

	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverGridCache(repository.NewRedisGridCache(redisClient, ttl), memory, logger)
}

func sweepMemoryCache(ctx context.Context, cache *repository.MemoryGridCache, every time.Duration, logger *zerolog.Logger) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := cache.Sweep(); n > 0 {
				logger.Debug().Int("removed", n).Msg("grid cache swept")
			}
		}
	}
}

func startWarmer(
	ctx context.Context,
	cfg *config.Config,
	schedule *service.ScheduleService,
	bus *events.EventBus,
	minutes models.SlotMinutes,
	logger *zerolog.Logger,
) {
	if !cfg.Warmer.Enabled || !cfg.Cache.Enabled {
		return
	}

	warmer := worker.NewGridWarmer(schedule, cfg.Warmer, minutes, logger)
	warmer.Subscribe(bus)
	go warmer.Start(ctx)

	if loc, err := timeutil.LoadZone(cfg.Engine.FallbackZone); err == nil {
		warmer.WarmAhead(timeutil.DateOf(time.Now(), loc))
	}
}

func startBackups(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) {
	if !cfg.Backup.Enabled {
		return
	}
	go database.NewBackupService(db, cfg.Backup, logger).Start(ctx)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("grpc_port", cfg.API.GRPC.Port).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
