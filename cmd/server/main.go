package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"recrusearch/internal/audit"
	auditHandler "recrusearch/internal/audit/handler"
	"recrusearch/internal/consent"
	"recrusearch/internal/consent/cache"
	consentHandler "recrusearch/internal/consent/handler"
	"recrusearch/internal/funds"
	fundsHandler "recrusearch/internal/funds/handler"
	"recrusearch/internal/jwttoken"
	"recrusearch/internal/ledger"
	"recrusearch/internal/minting"
	"recrusearch/internal/participant"
	participantHandler "recrusearch/internal/participant/handler"
	"recrusearch/internal/platform/config"
	"recrusearch/internal/platform/database"
	"recrusearch/internal/platform/httpserver"
	"recrusearch/internal/platform/logger"
	"recrusearch/internal/platform/metrics"
	"recrusearch/internal/platform/middleware"
	redisplatform "recrusearch/internal/platform/redis"
	"recrusearch/internal/reward"
	rewardHandler "recrusearch/internal/reward/handler"
	"recrusearch/internal/study"
	studyHandler "recrusearch/internal/study/handler"
	httptransport "recrusearch/internal/transport/http"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	m := metrics.New()

	// Stores: Postgres when configured, otherwise the in-memory ledger
	// simulator. The tx runner must match the store family so the consent
	// and reward state machines commit atomically.
	var (
		studyStore       study.Store
		participantStore participant.Store
		consentStore     consent.Store
		fundsStore       funds.Store
		txRunner         ledger.TxRunner
	)
	if cfg.DatabaseURL != "" {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		studyStore = study.NewPostgresStore(pool)
		participantStore = participant.NewPostgresStore(pool)
		consentStore = consent.NewPostgresStore(pool)
		fundsStore = funds.NewPostgresStore(pool)
		txRunner = ledger.NewPostgresTx(pool)
		log.Info("using postgres ledger")
	} else {
		studyStore = study.NewInMemoryStore()
		participantStore = participant.NewInMemoryStore()
		consentStore = consent.NewInMemoryStore()
		fundsStore = funds.NewInMemoryStore()
		txRunner = ledger.NewShardedTx()
		log.Info("using in-memory ledger simulator")
	}

	group, ctx := errgroup.WithContext(ctx)

	// Audit trail: Kafka sink when brokers are configured, otherwise an
	// in-process worker draining to the memory store (which also backs the
	// operator audit endpoint).
	var (
		auditor    audit.Emitter
		auditStore *audit.InMemoryStore
	)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			return err
		}
		defer kafkaPublisher.Close()
		auditor = kafkaPublisher
		log.Info("audit events flowing to kafka", "topic", cfg.AuditTopic)
	} else {
		auditStore = audit.NewInMemoryStore()
		inbox := make(chan audit.Event, 256)
		auditor = audit.NewChannelPublisher(inbox)
		worker := audit.NewWorker(auditStore, inbox)
		group.Go(func() error { return worker.Run(ctx) })
	}

	health := []httptransport.HealthChecker{}

	// Optional consent-status cache.
	var consentOpts []consent.Option
	consentOpts = append(consentOpts, consent.WithAuditor(auditor))
	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		consentOpts = append(consentOpts, consent.WithCache(
			cache.NewStatusCache(redisClient, cfg.ConsentCacheTTL)))
		health = append(health, func(r *http.Request) error {
			return redisClient.Health(r.Context())
		})
		log.Info("consent status cache enabled")
	}

	studySvc := study.NewService(studyStore, fundsStore, txRunner, auditor, m, log)
	participantSvc := participant.NewService(participantStore, auditor, m, log)
	consentSvc := consent.NewService(
		consentStore, studyStore, participantStore,
		minting.NewUUIDMinter(), txRunner, m, log, consentOpts...)
	rewardSvc := reward.NewService(consentStore, studyStore, fundsStore, txRunner, auditor, m, log)

	jwtService := jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer)

	fundsH := fundsHandler.New(fundsStore, log)
	routerCfg := httptransport.RouterConfig{
		Logger:       log,
		Metrics:      m,
		JWTValidator: jwttoken.NewMiddlewareAdapter(jwtService),
		Handlers: []httptransport.Registrar{
			studyHandler.New(studySvc, log),
			participantHandler.New(participantSvc, log),
			consentHandler.New(consentSvc, log),
			rewardHandler.New(rewardSvc, log),
			fundsH,
		},
		Health: health,
	}
	if cfg.AdminAPIKey != "" {
		hash, err := middleware.HashAdminKey(cfg.AdminAPIKey)
		if err != nil {
			return err
		}
		routerCfg.AdminKeyHash = hash
		routerCfg.AdminHandlers = []httptransport.AdminRegistrar{fundsH}
		if auditStore != nil {
			routerCfg.AdminHandlers = append(routerCfg.AdminHandlers,
				auditHandler.New(auditStore, log))
		}
	}

	server := httpserver.New(cfg.Addr, httptransport.NewRouter(routerCfg))

	group.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
