package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"trustee/internal/platform/config"
	"trustee/internal/platform/httpserver"
	"trustee/internal/platform/logger"
	platformredis "trustee/internal/platform/redis"
	"trustee/internal/token"
	httptransport "trustee/internal/transport/http"
	"trustee/internal/vesting"
	vestinghandler "trustee/internal/vesting/handler"
	vestingmetrics "trustee/internal/vesting/metrics"
	id "trustee/pkg/domain"
	"trustee/pkg/platform/audit"
	auditmemory "trustee/pkg/platform/audit/store/memory"
	auditpostgres "trustee/pkg/platform/audit/store/postgres"
	"trustee/pkg/platform/audit/relay"
	auditworker "trustee/pkg/platform/audit/worker"
	"trustee/pkg/platform/middleware/auth"
	"trustee/pkg/platform/middleware/idempotency"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	owner, err := id.ParseAddress(cfg.Owner)
	if err != nil {
		log.Error("invalid TRUSTEE_OWNER", "error", err)
		os.Exit(1)
	}
	reserveAddr, err := id.ParseAddress(cfg.Reserve)
	if err != nil {
		log.Error("invalid TRUSTEE_RESERVE", "error", err)
		os.Exit(1)
	}
	asset := id.ZeroAddress
	if cfg.Asset != "" {
		if asset, err = id.ParseAddress(cfg.Asset); err != nil {
			log.Error("invalid TRUSTEE_ASSET", "error", err)
			os.Exit(1)
		}
	}

	// Stores: postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		grantStore vesting.GrantStore
		auditStore audit.Store
		outbox     *auditpostgres.Store
		db         *sql.DB
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pg := vesting.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Error("grant store migration failed", "error", err)
			os.Exit(1)
		}
		outbox = auditpostgres.New(db)
		if err := outbox.Migrate(ctx); err != nil {
			log.Error("audit outbox migration failed", "error", err)
			os.Exit(1)
		}
		grantStore = pg
		auditStore = outbox
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		grantStore = vesting.NewInMemoryStore()
		auditStore = auditmemory.New()
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisAddr)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledger := token.NewLedger()
	ledger.SetTransfersEnabled(true)
	if cfg.ReserveFund != "" {
		fund, err := id.ParseAmount(cfg.ReserveFund)
		if err != nil {
			log.Error("invalid TRUSTEE_RESERVE_FUND", "error", err)
			os.Exit(1)
		}
		ledger.Mint(reserveAddr, fund)
	}
	reserve := token.NewReserve(ledger, reserveAddr)

	publisher := audit.NewPublisher(0, log)
	metrics := vestingmetrics.New()

	svc, err := vesting.New(grantStore, reserve, owner, asset,
		vesting.WithLogger(log),
		vesting.WithAuditPublisher(publisher),
		vesting.WithMetrics(metrics),
		vesting.WithAssets(token.NewRegistry()),
	)
	if err != nil {
		log.Error("failed to build vesting service", "error", err)
		os.Exit(1)
	}

	verifier := auth.NewVerifier(cfg.JWTSigningKey)
	var idem func(http.Handler) http.Handler
	if redisClient != nil {
		idem = idempotency.Middleware(redisClient.Client, log)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Vesting:     vestinghandler.New(svc, log),
		Verifier:    verifier,
		Idempotency: idem,
		Logger:      log,
		Health: func() error {
			if db != nil {
				return db.Ping()
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)
	worker := auditworker.NewWorker(auditStore, publisher.Events(), log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(ctx)
	})
	if outbox != nil && len(cfg.KafkaBrokers) > 0 {
		auditRelay, err := relay.New(outbox, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("failed to build audit relay", "error", err)
			os.Exit(1)
		}
		if err := auditRelay.EnsureTopic(ctx); err != nil {
			log.Error("failed to ensure audit topic", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			defer auditRelay.Close()
			return auditRelay.Run(ctx)
		})
	}
	g.Go(func() error {
		log.Info("starting trustee", "addr", cfg.Addr)
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

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
