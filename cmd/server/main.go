// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
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

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"corebank/internal/account/handler"
	"corebank/internal/account/service"
	"corebank/internal/account/store"
	"corebank/internal/audit"
	"corebank/internal/device"
	"corebank/internal/ledger"
	"corebank/internal/lockout"
	"corebank/internal/platform/config"
	"corebank/internal/platform/httpserver"
	"corebank/internal/platform/kafka"
	"corebank/internal/platform/logger"
	"corebank/internal/platform/metrics"
	"corebank/internal/platform/redis"
	"corebank/internal/registry"
	"corebank/internal/session"
	"corebank/internal/verifier"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	accountStore, reservationStore, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	lockoutStore, err := buildLockoutStore(cfg, log)
	if err != nil {
		log.Error("lockout store initialization failed", "error", err)
		os.Exit(1)
	}

	var sink audit.Sink
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("kafka initialization failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		sink = producer
		log.Info("audit events publishing to kafka", "topic", cfg.AuditTopic)
	}

	reg := registry.New(reservationStore, log)
	sessions := session.NewIssuer(cfg.JWTSigningKey, "corebank", cfg.SessionTTL)
	publisher := audit.NewPublisher(256, log)
	worker := audit.NewWorker(audit.NewInMemoryStore(), sink, publisher.Inbox(), log)

	svc := service.New(service.Deps{
		Store:    accountStore,
		Registry: reg,
		Verifier: verifier.New(accountStore, reg, cfg.BcryptCost),
		Ledger:   ledger.New(accountStore, log, m),
		Sessions: sessions,
		Lockout:  lockout.New(lockoutStore, cfg.Lockout, lockout.WithLogger(log)),
		Audit:    publisher,
		Devices:  device.NewService(cfg.DeviceFingerprint),
		Metrics:  m,
		Logger:   log,
	})

	router := handler.NewRouter(handler.New(svc, log), sessions, log, m)
	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("corebank listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		err := worker.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("corebank stopped")
}

// buildStores picks Postgres when a DSN is configured, in-memory otherwise.
func buildStores(ctx context.Context, cfg config.Server) (store.AccountStore, registry.ReservationStore, func(), error) {
	if cfg.PostgresDSN == "" {
		return store.NewInMemoryAccountStore(), registry.NewInMemoryReservationStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	accounts := store.NewPostgres(pool)
	if err := accounts.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	reservations := registry.NewPostgres(db)
	if err := reservations.Migrate(ctx); err != nil {
		pool.Close()
		db.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		db.Close()
	}
	return accounts, reservations, cleanup, nil
}

// buildLockoutStore uses Redis when configured so failure counts survive
// restarts and are shared across replicas.
func buildLockoutStore(cfg config.Server, log *slog.Logger) (lockout.Store, error) {
	client, err := redis.New(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return lockout.NewInMemoryStore(), nil
	}
	log.Info("lockout state backed by redis")
	return lockout.NewRedisStore(client), nil
}
