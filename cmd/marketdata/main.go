package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/zebutrade/papertrade/internal/marketdata/application"
	"github.com/zebutrade/papertrade/internal/marketdata/domain"
	"github.com/zebutrade/papertrade/internal/marketdata/infrastructure/alphavantage"
	"github.com/zebutrade/papertrade/internal/marketdata/infrastructure/messaging"
	"github.com/zebutrade/papertrade/internal/marketdata/infrastructure/persistence/postgres"
	persistence_redis "github.com/zebutrade/papertrade/internal/marketdata/infrastructure/persistence/redis"
	httpserver "github.com/zebutrade/papertrade/internal/marketdata/interfaces/http"
	"github.com/zebutrade/papertrade/pkg/cache"
	"github.com/zebutrade/papertrade/pkg/config"
	"github.com/zebutrade/papertrade/pkg/db"
	"github.com/zebutrade/papertrade/pkg/logger"
	"github.com/zebutrade/papertrade/pkg/metrics"
	"github.com/zebutrade/papertrade/pkg/middleware"
	"github.com/zebutrade/papertrade/pkg/mq"
	"github.com/zebutrade/papertrade/pkg/ratelimit"
)

var configPath = flag.String("config", "configs/marketdata/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	ctx := context.Background()

	// 3. Metrics
	m := metrics.New(cfg.ServiceName)
	if err := m.Register(); err != nil {
		logger.Error(ctx, "failed to register metrics", "error", err)
		os.Exit(1)
	}
	if cfg.Metrics.Enabled {
		metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// 4. Database
	database, err := db.Init(db.Config{
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Error(ctx, "failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(&postgres.PriceModel{}, &postgres.WatchlistModel{}); err != nil {
			logger.Error(ctx, "failed to migrate database", "error", err)
		}
	}

	// 5. Redis
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Error(ctx, "failed to connect redis", "error", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	// 6. Repositories, provider client and the tiered adapter
	priceRepo := postgres.NewPriceRepository(database.DB)
	watchlistRepo := postgres.NewWatchlistRepository(database.DB)
	priceCache := persistence_redis.NewPriceCache(redisCache.GetClient())

	quotaLimiter := ratelimit.NewRedisQuotaLimiter(redisCache.GetClient(), "alphavantage", ratelimit.Quota{
		PerMinute: cfg.AlphaVantage.CallsPerMinute,
		PerDay:    cfg.AlphaVantage.CallsPerDay,
	})
	calendar := domain.NewMarketCalendar()

	avClient := alphavantage.NewClient(alphavantage.ClientConfig{
		APIKey:  cfg.AlphaVantage.APIKey,
		BaseURL: cfg.AlphaVantage.BaseURL,
		Timeout: time.Duration(cfg.AlphaVantage.TimeoutSeconds) * time.Second,
	})
	adapter := alphavantage.NewAdapter(avClient, priceCache, priceRepo, quotaLimiter, calendar, m,
		alphavantage.Config{
			CacheTTL:           cfg.AlphaVantage.CacheTTL(),
			CurrentPriceMaxAge: cfg.AlphaVantage.CurrentPriceMaxAge(),
		})

	// 7. Event publisher
	var publisher domain.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Error(ctx, "failed to build kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = messaging.NewKafkaPublisher(producer)
	} else {
		publisher = messaging.NewNoopPublisher()
	}

	// 8. Application services
	priceService := application.NewMarketDataService(adapter, calendar)
	watchlistService := application.NewWatchlistService(
		watchlistRepo, adapter, publisher, m, cfg.Kafka.Topic,
		time.Duration(cfg.Watchlist.DefaultRefreshMinutes)*time.Minute,
	)

	// 9. Watchlist refresh scheduler
	scheduler := cron.New()
	if cfg.Watchlist.Enabled {
		_, err := scheduler.AddFunc(cfg.Watchlist.CronSpec, func() {
			sweepCtx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
			defer cancel()
			if _, err := watchlistService.RefreshDue(sweepCtx); err != nil {
				logger.Error(sweepCtx, "watchlist sweep failed", "error", err)
			}
		})
		if err != nil {
			logger.Error(ctx, "failed to schedule watchlist sweep", "error", err)
			os.Exit(1)
		}
		scheduler.Start()
	}

	// 10. HTTP server
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.RequestMetrics(m))
	if cfg.RateLimit.Enabled {
		httpLimiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		r.Use(middleware.RateLimit(httpLimiter, middleware.RateLimitConfig{
			Enabled: cfg.RateLimit.Enabled,
			QPS:     cfg.RateLimit.QPS,
			Burst:   cfg.RateLimit.Burst,
		}))
	}
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Valuation stays unrouted until a holdings provider is deployed
	// alongside this service.
	handler := httpserver.NewMarketDataHandler(priceService, watchlistService, nil)
	handler.RegisterRoutes(r.Group("/api"))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 11. Start
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(ctx, "HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info(ctx, "shutting down servers")
		case <-gctx.Done():
			logger.Info(ctx, "context cancelled, shutting down")
		}

		if cfg.Watchlist.Enabled {
			<-scheduler.Stop().Done()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "server exited with error", "error", err)
	}
}
