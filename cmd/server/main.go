package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"merch-service/internal/config"
	handlers "merch-service/internal/controllers/http"
	"merch-service/internal/infra"
	"merch-service/internal/infra/cache"
	"merch-service/internal/infra/database"
	"merch-service/internal/infra/rabbitmq"
	"merch-service/internal/infra/tracing"
	"merch-service/internal/logger"
	"merch-service/internal/notify"
	"merch-service/internal/repository"
	"merch-service/internal/repository/gormdb"
	"merch-service/internal/repository/memory"
	"merch-service/internal/services"
)

type repositories struct {
	store    repository.Store
	products repository.ProductRepository
	orders   repository.OrderRepository
	users    repository.UserRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.LogLevel, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("init tracing")
	}
	tracer := tp.Tracer(cfg.ServiceName)

	repos, err := openRepositories(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database")
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("record store ready")

	var redisClient *redis.Client
	if cfg.UseRedis {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("parse REDIS_URL")
		}
		opts.DialTimeout = 2 * time.Second
		opts.ReadTimeout = 500 * time.Millisecond
		opts.WriteTimeout = 500 * time.Millisecond
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}
	accel := cache.New(ctx, redisClient, "merch", log)

	sender, closeSender := newSender(cfg, log)
	defer closeSender()
	dispatcher := notify.NewDispatcher(sender, cfg.NotifyWorkers, cfg.NotifyBuffer, log)
	dispatcher.Start(ctx)

	ledger := services.NewLedger(tracer)
	catalog := services.NewProductService(repos.products, repos.store, ledger, accel, cfg.CacheTTL(), tracer, log)
	orders := services.NewOrderService(repos.store, repos.orders, ledger, dispatcher, services.OrderServiceOptions{
		Retry: services.RetryPolicy{
			MaxAttempts:     cfg.CheckoutMaxAttempts,
			InitialInterval: cfg.RetryInitial(),
			MaxInterval:     cfg.RetryMax(),
		},
		DefaultContact: cfg.NotifyDefaultContact,
	}, tracer, log)
	auth := services.NewAuthService(repos.users, cfg.JWTSecret, cfg.TokenTTL(), log)

	if cfg.AdminUsername != "" {
		if err := auth.EnsureUser(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			log.Fatal().Err(err).Msg("bootstrap admin user")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(handlers.RequestID(), handlers.RequestLogger(log))
	handlers.NewHandler(catalog, orders, auth, log).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting merch service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("notification drain")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracer flush")
	}
}

func openRepositories(cfg *config.Config) (*repositories, error) {
	if cfg.DBDriver == "memory" {
		s := memory.NewStore()
		return &repositories{store: s, products: s.Products(), orders: s.Orders(), users: s.Users()}, nil
	}

	db, err := database.Open(database.Options{
		Driver:       cfg.DBDriver,
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return nil, err
	}
	return &repositories{
		store:    gormdb.NewStore(db),
		products: gormdb.NewProductRepository(db),
		orders:   gormdb.NewOrderRepository(db),
		users:    gormdb.NewUserRepository(db),
	}, nil
}

// newSender picks the broker when configured, then the webhook, then plain
// logging.
func newSender(cfg *config.Config, log zerolog.Logger) (notify.Sender, func()) {
	if cfg.RabbitMQURL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init publisher")
		}
		return notify.NewPublisherSender(publisher), publisher.Close
	}
	if cfg.NotifyWebhookURL != "" {
		return infra.NewWebhookClient(cfg.NotifyWebhookURL, 5*time.Second), func() {}
	}
	return notify.NewLogSender(log), func() {}
}
