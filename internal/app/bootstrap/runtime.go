package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	cacheadapter "github.com/viralforge/stakeshare/internal/adapters/cache"
	eventadapter "github.com/viralforge/stakeshare/internal/adapters/events"
	grpcadapter "github.com/viralforge/stakeshare/internal/adapters/grpc"
	httpadapter "github.com/viralforge/stakeshare/internal/adapters/http"
	"github.com/viralforge/stakeshare/internal/adapters/memory"
	metricsadapter "github.com/viralforge/stakeshare/internal/adapters/metrics"
	payoutadapter "github.com/viralforge/stakeshare/internal/adapters/payout"
	"github.com/viralforge/stakeshare/internal/adapters/postgres"
	"github.com/viralforge/stakeshare/internal/adapters/security"
	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/ports"
)

// stores is the storage backend chosen by StorageDriver.
type stores struct {
	links        ports.LinkRepository
	conversions  ports.ConversionRepository
	settlements  ports.SettlementRepository
	payouts      ports.PayoutRepository
	terminations ports.TerminationRepository
	outbox       ports.OutboxRepository
	programs     ports.ProgramReader
	creators     ports.CreatorReader
	contracts    ports.ContractReader
	directory    ports.DirectoryWriter
	ping         func(context.Context) error
	close        func()
}

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	httpServer *http.Server
	grpcServer *grpc.Server
	outbox     *eventadapter.OutboxWorker
	directory  *eventadapter.DirectorySync
	cleanupFn  func()
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)
	logger.Info("bootstrapping referral settlement service",
		"storage_driver", cfg.StorageDriver,
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
	)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closers := []func(){st.close}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Runtime, error) {
		cleanup()
		return nil, err
	}

	var attribution ports.AttributionStore
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		attribution = cacheadapter.NewRedisAttributionStore(redisClient, nil)
	} else {
		logger.Warn("no redis configured; attribution tokens are process-local")
		attribution = memory.NewAttributionStore(nil)
	}

	var publisher ports.EventPublisher = eventadapter.NewLoggingPublisher(logger)
	var directorySync *eventadapter.DirectorySync
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, nil)
		if err != nil {
			return fail(fmt.Errorf("init kafka publisher: %w", err))
		}
		closers = append(closers, func() { _ = kafkaPub.Close() })
		publisher = kafkaPub

		consumer, err := eventadapter.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, eventadapter.DirectoryTopics())
		if err != nil {
			return fail(fmt.Errorf("init kafka consumer: %w", err))
		}
		closers = append(closers, func() { _ = consumer.Close() })
		directorySync = eventadapter.NewDirectorySync(logger, consumer, st.directory, 100)
	}

	var payoutClient ports.PayoutClient
	if cfg.PayoutBaseURL != "" {
		client, err := payoutadapter.NewHTTPClient(cfg.PayoutBaseURL, cfg.PayoutAPIKey, cfg.PayoutTimeout)
		if err != nil {
			return fail(fmt.Errorf("init payout client: %w", err))
		}
		payoutClient = client
	} else {
		logger.Warn("no payout base url configured; payout dispatch is disabled")
	}

	verifier, err := security.NewHMACVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return fail(fmt.Errorf("init jwt verifier: %w", err))
	}
	metrics := metricsadapter.NewPrometheus(cfg.MetricsNamespace)

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:                cfg.ServiceID,
			DefaultCurrency:            cfg.DefaultCurrency,
			ZeroRevenueConversionTypes: cfg.ZeroRevenueConversionTypes,
			SettleInline:               cfg.SettleInline,
			InlineSettleRetries:        uint64(cfg.InlineSettleRetries),
			SettlementMaxAttempts:      cfg.SettlementMaxAttempts,
			SettlementBatchSize:        cfg.SettlementBatchSize,
			PayoutMaxAttempts:          cfg.PayoutMaxAttempts,
			PayoutBatchSize:            cfg.PayoutBatchSize,
			PayoutClaimTTL:             cfg.PayoutClaimTTL,
			RetryInitialInterval:       cfg.RetryInitialInterval,
			RetryMaxInterval:           cfg.RetryMaxInterval,
		},
		Links:        st.links,
		Conversions:  st.conversions,
		Settlements:  st.settlements,
		Payouts:      st.payouts,
		Terminations: st.terminations,
		Programs:     st.programs,
		Creators:     st.creators,
		Contracts:    st.contracts,
		Attribution:  attribution,
		PayoutAPI:    payoutClient,
		Metrics:      metrics,
		Logger:       logger,
	})

	ready := func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.ping(pingCtx); err != nil {
			return err
		}
		if redisClient != nil {
			return redisClient.Ping(pingCtx).Err()
		}
		return nil
	}
	handler := httpadapter.NewHandler(svc, httpadapter.Options{
		WebhookSecret:       cfg.WebhookSecret,
		FallbackRedirectURL: cfg.FallbackRedirectURL,
		CookieDomain:        cfg.CookieDomain,
		CookieSecure:        cfg.CookieSecure,
		Limiter:             httpadapter.NewKeyedLimiter(cfg.ClickRateLimitPerMinute, cfg.ClickRateLimitBurst),
		Verifier:            verifier,
		Observer:            metrics,
		MetricsHandler:      metrics.Handler(),
		Ready:               ready,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           otelhttp.NewHandler(httpadapter.NewRouter(handler), cfg.ServiceID),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		otelgrpc.UnaryServerInterceptor(),
		grpcadapter.LoggingInterceptor(logger),
	))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewReferralInternalServer(svc))

	outbox := eventadapter.NewOutboxWorker(logger, st.outbox, publisher, eventadapter.OutboxWorkerConfig{
		Interval:   cfg.OutboxPollInterval,
		BatchSize:  cfg.OutboxBatchSize,
		ClaimTTL:   cfg.OutboxClaimTTL,
		MaxRetries: cfg.OutboxMaxRetries,
		DLQTopic:   contracts.TopicReferralDLQ,
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		service:    svc,
		httpServer: httpServer,
		grpcServer: grpcServer,
		outbox:     outbox,
		directory:  directorySync,
		cleanupFn:  cleanup,
	}, nil
}

func openStores(ctx context.Context, cfg Config) (stores, error) {
	switch cfg.StorageDriver {
	case StorageMemory:
		repos := memory.NewRepositories()
		return stores{
			links:        repos.Links,
			conversions:  repos.Conversions,
			settlements:  repos.Settlements,
			payouts:      repos.Payouts,
			terminations: repos.Terminations,
			outbox:       repos.Outbox,
			programs:     repos.Directory,
			creators:     repos.Directory,
			contracts:    repos.Directory,
			directory:    repos.Directory,
			ping:         func(context.Context) error { return nil },
			close:        func() {},
		}, nil
	case StorageSQLite, StoragePostgres:
	default:
		return stores{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	var (
		db  *gorm.DB
		err error
	)
	if cfg.StorageDriver == StorageSQLite {
		db, err = postgres.ConnectSQLite(ctx, cfg.SQLitePath)
	} else {
		db, err = postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err == nil {
			if err = postgres.RunMigrations(ctx, db); err != nil {
				if sqlDB, dbErr := db.DB(); dbErr == nil {
					_ = sqlDB.Close()
				}
				err = fmt.Errorf("run migrations: %w", err)
			}
		}
	}
	if err != nil {
		return stores{}, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return stores{}, fmt.Errorf("gorm sql db: %w", err)
	}
	repos := postgres.NewRepositories(db)
	return stores{
		links:        repos.Links,
		conversions:  repos.Conversions,
		settlements:  repos.Settlements,
		payouts:      repos.Payouts,
		terminations: repos.Terminations,
		outbox:       repos.Outbox,
		programs:     repos.Directory,
		creators:     repos.Directory,
		contracts:    repos.Directory,
		directory:    repos.Directory,
		ping:         sqlDB.PingContext,
		close:        func() { _ = sqlDB.Close() },
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanupFn()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", lis.Addr().String())
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	return runErr
}

// RunWorker drives settlement retries, payout dispatch, outbox relay and, when
// Kafka is configured, the program/creator/contract directory sync.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanupFn()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.poll(ctx, "process_settlement_tasks", r.cfg.SettlementPollInterval, r.service.ProcessSettlementTasks)
	})
	g.Go(func() error {
		return r.poll(ctx, "process_payouts", r.cfg.PayoutPollInterval, r.service.ProcessPayouts)
	})
	g.Go(func() error { return r.outbox.Run(ctx) })
	if r.directory != nil {
		g.Go(func() error { return r.directory.Run(ctx) })
	}
	r.logger.Info("worker started", "directory_sync", r.directory != nil)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// poll runs fn every interval. After a failure the next run waits on an
// exponential backoff instead, which resets on the first success.
func (r *Runtime) poll(ctx context.Context, operation string, interval time.Duration, fn func(context.Context) (int, error)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0

	wait := interval
	for {
		n, err := fn(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			wait = b.NextBackOff()
			r.logger.ErrorContext(ctx, "worker iteration failed",
				"module", "worker",
				"layer", "bootstrap",
				"operation", operation,
				"outcome", "failure",
				"retry_in_ms", wait.Milliseconds(),
				"error", err,
			)
		case err == nil:
			b.Reset()
			wait = interval
			if n > 0 {
				r.logger.InfoContext(ctx, "worker iteration completed",
					"module", "worker",
					"layer", "bootstrap",
					"operation", operation,
					"outcome", "success",
					"processed", n,
				)
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
