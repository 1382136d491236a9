package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	jwttoken "onboard/internal/jwt_token"
	"onboard/internal/onboarding/batch"
	"onboard/internal/onboarding/handler"
	"onboard/internal/onboarding/provider"
	"onboard/internal/onboarding/provider/mock"
	"onboard/internal/onboarding/service"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
	"onboard/internal/platform/httpserver"
	"onboard/internal/platform/kafka"
	"onboard/internal/platform/lock"
	"onboard/internal/platform/logger"
	"onboard/internal/platform/metrics"
	platformredis "onboard/internal/platform/redis"
	httptransport "onboard/internal/transport/http"
	"onboard/pkg/platform/audit/publisher"
	auditpg "onboard/pkg/platform/audit/store/postgres"
	"onboard/pkg/platform/audit/worker"
)

// main wires the dependencies and runs the HTTP server, the audit outbox
// relay and the reconciliation jobs under one lifecycle. Business logic
// lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(&cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	stores := store.NewPostgres(db).Stores()

	auditStore := auditpg.New(db)
	auditor := publisher.NewPublisher(auditStore, publisher.WithLogger(log))
	defer auditor.Close()

	var locks lock.Service
	var redisClient *platformredis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = platformredis.New(cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		locks = lock.NewRedis(redisClient)
	} else {
		log.Warn("redis not configured, job leases are process-local")
		locks = lock.NewMemory()
	}

	producer, err := kafka.NewProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
	}

	registry := provider.NewRegistry()
	registry.RegisterDocument(mock.Name, mock.DocumentProvider{})
	registry.RegisterPresence(mock.Name, mock.PresenceProvider{})
	registry.RegisterOnboarding(mock.Name, mock.OnboardingAdapter{})

	documentProvider, err := registry.Document(cfg.Providers.Document)
	if err != nil {
		return err
	}
	presenceProvider, err := registry.Presence(cfg.Providers.Presence)
	if err != nil {
		return err
	}
	onboardingAdapter, err := registry.Onboarding(cfg.Providers.Onboarding)
	if err != nil {
		return err
	}

	m := metrics.New()

	limits := service.NewLimitService(stores, cfg, auditor, m, log)
	documents := service.NewDocumentService(db, stores, documentProvider, limits, cfg, auditor, m, log)
	verify := service.NewVerificationService(db, stores, documentProvider, limits, cfg, auditor, m, log)
	presence := service.NewPresenceService(db, stores, presenceProvider, documentProvider, limits, cfg, auditor, m, log)
	otps := service.NewOtpService(db, stores, onboardingAdapter, redisClient, limits, cfg, auditor, m, log)
	processes := service.NewProcessService(db, stores, cfg, auditor, log)
	precheck := service.NewPrecompleteCheck(stores.Documents, stores.Otps, stores.ScaResults, mock.ActivationClient{}, cfg.Identity)
	evaluations := service.NewEvaluationService(db, stores, onboardingAdapter, limits, cfg, auditor, m, log)
	cleaning := service.NewCleaningService(db, stores, cfg, auditor, log)
	identity := service.NewIdentityService(db, stores, documents, verify, presence, otps, processes, precheck, cfg, auditor, m, log)

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "onboard", "onboard")
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	api := handler.New(processes, identity, documents, log, m, validator)
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(api))

	runner := batch.NewRunner(locks, cfg.Batch.LockMaxHold, m, log)
	runner.Add(batch.StandardJobs(cfg, batch.Services{
		Stores:      stores,
		Identity:    identity,
		Documents:   documents,
		Verify:      verify,
		Evaluations: evaluations,
		Cleaning:    cleaning,
	}, log)...)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting onboarding server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return runner.Run(ctx)
	})

	if producer != nil {
		relay := worker.NewRelay(auditStore, producer, log)
		g.Go(func() error {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
