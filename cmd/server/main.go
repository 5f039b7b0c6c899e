package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accounthandler "tally/internal/account/handler"
	accountservice "tally/internal/account/service"
	accountstore "tally/internal/account/store"
	"tally/internal/account/throttle"
	inventoryhandler "tally/internal/inventory/handler"
	inventoryservice "tally/internal/inventory/service"
	inventorystore "tally/internal/inventory/store"
	jwttoken "tally/internal/jwt_token"
	ledgerhandler "tally/internal/ledger/handler"
	ledgerservice "tally/internal/ledger/service"
	ledgerstore "tally/internal/ledger/store"
	"tally/internal/overview"
	"tally/internal/platform/config"
	"tally/internal/platform/httpserver"
	"tally/internal/platform/logger"
	"tally/internal/platform/metrics"
	"tally/internal/platform/postgres"
	platformredis "tally/internal/platform/redis"
)

// main wires configuration, storage, services and transport. Business logic
// lives in the internal service packages; this file only connects them.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, "tally", "tally-api")
	validator := jwttoken.NewJWTServiceAdapter(tokens)

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable, continuing without cache and throttling", "error", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var (
		accountStore accountservice.Store
		ledgerStore  ledgerservice.Store
		ledgerTx     ledgerservice.StoreTx
		invStore     inventoryservice.Store
		invTx        inventoryservice.StoreTx
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		accountStore = accountstore.NewPostgres(db)
		ledgerStore = ledgerstore.NewPostgres(db)
		ledgerTx = newLedgerPostgresTx(db)
		invStore = inventorystore.NewPostgres(db)
		invTx = newInventoryPostgresTx(db)
		log.Info("using postgres storage")
	} else {
		// In-memory storage keeps local development free of infrastructure.
		// All data is lost on restart.
		ledgerMem := ledgerstore.NewMemory()
		invMem := inventorystore.NewMemory()
		accountStore = accountstore.NewMemory()
		ledgerStore = ledgerMem
		ledgerTx = ledgerstore.NewMemoryTx(ledgerMem)
		invStore = invMem
		invTx = inventorystore.NewMemoryTx(invMem)
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	accountOpts := []accountservice.Option{
		accountservice.WithLogger(log),
		accountservice.WithMetrics(m),
	}
	if rdb != nil {
		accountOpts = append(accountOpts, accountservice.WithThrottle(throttle.New(rdb.Client)))
	}
	accounts := accountservice.New(accountStore, tokens, accountOpts...)

	ledger := ledgerservice.New(ledgerStore, ledgerTx,
		ledgerservice.WithLogger(log),
		ledgerservice.WithMetrics(m),
	)
	inventory := inventoryservice.New(invStore, invTx,
		inventoryservice.WithLogger(log),
		inventoryservice.WithMetrics(m),
	)

	overviewOpts := []overview.Option{overview.WithLogger(log)}
	if rdb != nil {
		overviewOpts = append(overviewOpts, overview.WithCache(newRedisCache(rdb.Client), config.OverviewCacheTTL))
	}
	dashboard := overview.New(ledger, inventory, overviewOpts...)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/api", func(api chi.Router) {
		accounthandler.New(accounts, log, m, validator).Register(api)
		ledgerhandler.New(ledger, log, m, validator).Register(api)
		inventoryhandler.New(inventory, log, m, validator).Register(api)
		overview.NewHandler(dashboard, log, m, validator).Register(api)
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting tally", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
