package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"coldchain/internal/admin"
	directoryhandler "coldchain/internal/directory/handler"
	directoryservice "coldchain/internal/directory/service"
	directorystore "coldchain/internal/directory/store"
	envloghandler "coldchain/internal/envlog/handler"
	envlogservice "coldchain/internal/envlog/service"
	envlogstore "coldchain/internal/envlog/store"
	"coldchain/internal/escrow"
	"coldchain/internal/escrow/settlement"
	escrowstore "coldchain/internal/escrow/store"
	jwttoken "coldchain/internal/jwt_token"
	"coldchain/internal/platform/config"
	"coldchain/internal/platform/httpserver"
	"coldchain/internal/platform/logger"
	"coldchain/internal/platform/metrics"
	"coldchain/internal/platform/middleware"
	redisplatform "coldchain/internal/platform/redis"
	producthandler "coldchain/internal/product/handler"
	productservice "coldchain/internal/product/service"
	productstore "coldchain/internal/product/store"
	httptransport "coldchain/internal/transport/http"
	audit "coldchain/pkg/platform/audit"
	auditoutbox "coldchain/pkg/platform/audit/outbox"
	auditpublisher "coldchain/pkg/platform/audit/publisher"
	auditmemory "coldchain/pkg/platform/audit/store/memory"
	auditpostgres "coldchain/pkg/platform/audit/store/postgres"
	"coldchain/pkg/platform/tx"
)

// main wires configuration, storage, domain services and transport, then
// supervises the server and background workers until a shutdown signal.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	capability, err := admin.NewCapability(cfg.AdminToken)
	if err != nil {
		return fmt.Errorf("init admin capability: %w", err)
	}
	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "coldchain", "coldchain")

	// Storage. POSTGRES_URL selects the durable stores; without it everything
	// runs in memory, which is enough for local development and tests.
	var (
		db             *sql.DB
		runner         tx.Runner
		directoryStore directorystore.Backend
		productStore   productservice.Store
		trailStore     productservice.TrailStore
		ledger         escrow.Ledger
		readingStore   envlogservice.Store
		auditStore     audit.Store
		health         = map[string]httptransport.HealthChecker{}
	)
	if cfg.PostgresURL != "" {
		db, err = sql.Open("pgx", cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}

		dirPG := directorystore.NewPostgres(db)
		prodPG := productstore.NewPostgres(db)
		trailPG := productstore.NewTrailPostgres(db)
		escrowPG := escrowstore.NewPostgres(db)
		envPG := envlogstore.NewPostgres(db)
		auditPG := auditpostgres.New(db)
		for _, ensure := range []func(context.Context) error{
			dirPG.EnsureSchema, prodPG.EnsureSchema, trailPG.EnsureSchema,
			escrowPG.EnsureSchema, envPG.EnsureSchema, auditPG.EnsureSchema,
		} {
			if err := ensure(ctx); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}

		runner = tx.NewSQL(db)
		directoryStore = dirPG
		productStore = prodPG
		trailStore = trailPG
		ledger = escrowPG
		readingStore = envPG
		auditStore = auditPG
		health["postgres"] = db.PingContext
		log.Info("using postgres stores")
	} else {
		runner = tx.NewSerial()
		directoryStore = directorystore.NewInMemory()
		productStore = productstore.NewInMemory()
		trailStore = productstore.NewTrailInMemory()
		ledger = escrowstore.NewInMemory()
		readingStore = envlogstore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	// Redis fronts directory lookups; every lifecycle operation hits the
	// directory, so this is the hottest read path.
	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		directoryStore = directorystore.NewRedisCache(directoryStore, redisClient.Client, cfg.Redis.RoleCacheTTL)
		health["redis"] = redisClient.Health
		log.Info("directory read cache enabled")
	}

	publisher := auditpublisher.NewPublisher(auditStore,
		auditpublisher.WithAsyncBuffer(256),
		auditpublisher.WithLogger(log),
	)
	defer publisher.Close()

	directoryService := directoryservice.New(directoryStore,
		directoryservice.WithLogger(log),
		directoryservice.WithAuditPublisher(publisher),
		directoryservice.WithMetrics(m),
	)
	productService := productservice.New(productStore, trailStore, directoryService, ledger, settlement.NewBank(),
		productservice.WithLogger(log),
		productservice.WithAuditPublisher(publisher),
		productservice.WithMetrics(m),
		productservice.WithTxRunner(runner),
	)
	envlogService := envlogservice.New(readingStore, directoryService, productService,
		envlogservice.WithLogger(log),
		envlogservice.WithAuditPublisher(publisher),
		envlogservice.WithMetrics(m),
	)

	validator := tokenValidator{service: jwtService}
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:  log,
		Metrics: m,
		Handlers: []httptransport.Registrant{
			directoryhandler.New(directoryService, capability, validator, log),
			producthandler.New(productService, capability, validator, log),
			envloghandler.New(envlogService, validator, log),
			httptransport.NewAuthHandler(jwtService, directoryService, capability, publisher, log),
		},
		Health: health,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting coldchain server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// The outbox relay needs both a durable outbox and a broker to relay to.
	if db != nil && len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err := kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
		if err != nil {
			return fmt.Errorf("init kafka client: %w", err)
		}
		defer kafkaClient.Close()
		if err := auditoutbox.EnsureTopic(ctx, kafkaClient, cfg.Kafka.Topic, cfg.Kafka.Partitions); err != nil {
			return fmt.Errorf("ensure kafka topic: %w", err)
		}
		worker := auditoutbox.NewWorker(db, kafkaClient, cfg.Kafka.Topic, log)
		g.Go(func() error {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox worker: %w", err)
			}
			return nil
		})
		log.Info("outbox relay enabled", "topic", cfg.Kafka.Topic)
	}

	return g.Wait()
}

// tokenValidator adapts the JWT service to the middleware contract.
type tokenValidator struct {
	service *jwttoken.JWTService
}

func (v tokenValidator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{Identity: claims.Identity}, nil
}
