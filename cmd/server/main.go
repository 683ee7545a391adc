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

	"github.com/prometheus/client_golang/prometheus"

	"condosync/internal/condo"
	"condosync/internal/httpapi"
	"condosync/internal/identity"
	"condosync/internal/ledger"
	"condosync/internal/notify"
	"condosync/internal/platform/config"
	"condosync/internal/platform/httpserver"
	"condosync/internal/platform/logger"
	"condosync/internal/platform/metrics"
	platformredis "condosync/internal/platform/redis"
	"condosync/internal/remote"
	"condosync/internal/remote/memory"
	"condosync/internal/remote/postgres"
	"condosync/internal/remote/redispush"
	"condosync/internal/subscription"
	"condosync/internal/views"
)

// main wires the adapter, domain services, notification pipeline and HTTP
// surface, then runs until interrupted. Business logic lives in the internal
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	adapter, cleanup, err := buildAdapter(cfg, log)
	if err != nil {
		log.Error("adapter setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	deps := condo.Deps{
		Adapter:  adapter,
		Identity: identity.ContextProvider{},
		Ledger:   ledger.NewMembership(adapter, m),
		Metrics:  m,
		Logger:   log,
	}

	var sink notify.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := notify.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka producer setup failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := producer.EnsureTopic(ctx, 3); err != nil {
			log.Warn("kafka topic ensure failed", "topic", cfg.Kafka.Topic, "error", err)
		}
		cancel()
		sink = producer
	}
	deps.Notifier = notify.NewNotifier(adapter, sink, m, log)

	inbox := make(chan notify.Notification, 256)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go func() {
		_ = notify.NewWorker(deps.Notifier, inbox, log).Run(workerCtx)
	}()

	users := condo.NewUsers(deps)
	suggestions := condo.NewSuggestions(deps)
	packages := condo.NewPackages(deps)
	debtors := condo.NewDebtors(deps)
	meetings := condo.NewMeetings(deps)
	problems := condo.NewProblems(deps)

	// Keep the server-side caches hot off the push channel, so reads serve
	// fresh snapshots without a fetch per request.
	subCtx, stopSubs := context.WithCancel(context.Background())
	defer stopSubs()
	subs := subscription.NewManager(adapter, m, log)
	pushQuery := remote.Query{OrderBy: remote.FieldCreatedAt, Desc: true}
	for collection, apply := range map[string]remote.SnapshotFunc{
		users.Collection():       users.ApplySnapshot,
		suggestions.Collection(): suggestions.ApplySnapshot,
		packages.Collection():    packages.ApplySnapshot,
		debtors.Collection():     debtors.ApplySnapshot,
		meetings.Collection():    meetings.ApplySnapshot,
		problems.Collection():    problems.ApplySnapshot,
	} {
		cancel := subs.Subscribe(subCtx, collection, "server-cache", pushQuery, apply)
		defer cancel()
	}

	router := httpapi.NewRouter(httpapi.Services{
		Suggestions: suggestions,
		Packages:    packages,
		Debtors:     debtors,
		Meetings:    meetings,
		Users:       users,
		Notifier:    deps.Notifier,
		Inbox:       inbox,
		Community: &views.Community{
			Users:       users,
			Debtors:     debtors,
			Problems:    problems,
			Packages:    packages,
			Suggestions: suggestions,
			Meetings:    meetings,
		},
		TokenVerifier: identity.NewTokenValidator(cfg.JWTSigningKey),
		Logger:        log,
		Registry:      registry,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting condosync", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("condosync stopped")
}

// buildAdapter selects the remote store: Postgres when a DSN is configured,
// the in-memory store otherwise. With Redis configured the adapter is wrapped
// in the pub/sub push bridge so subscriptions work across processes.
func buildAdapter(cfg config.Server, log *slog.Logger) (remote.Adapter, func(), error) {
	cleanup := func() {}

	var adapter remote.Adapter
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, cleanup, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = postgres.EnsureSchema(ctx, db)
		cancel()
		if err != nil {
			db.Close()
			return nil, cleanup, err
		}
		adapter = postgres.New(db, cfg.PostgresDSN)
		cleanup = func() { db.Close() }
		log.Info("using postgres adapter")
	} else {
		adapter = memory.New()
		log.Info("using in-memory adapter; data is not persisted")
	}

	if cfg.Redis.URL != "" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, cleanup, err
		}
		if client != nil {
			prev := cleanup
			cleanup = func() {
				client.Close()
				prev()
			}
			adapter = redispush.New(adapter, client.Client)
			log.Info("redis push bridge enabled")
		}
	}

	return adapter, cleanup, nil
}
