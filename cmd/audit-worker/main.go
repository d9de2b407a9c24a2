// The audit worker batch-consumes audit-queue and materializes entries into
// PostgreSQL with an idempotent insert, so redelivered batches are harmless.
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"hrms/internal/audit"
	"hrms/internal/platform/config"
	"hrms/internal/platform/httpserver"
	"hrms/internal/platform/kafka/admin"
	"hrms/internal/platform/kafka/consumer"
	"hrms/internal/platform/kafka/dlq"
	"hrms/internal/platform/kafka/producer"
	"hrms/internal/platform/logger"
	"hrms/internal/platform/metrics"
	"hrms/pkg/events"
)

func main() {
	cfg, err := config.FromEnv("audit-service")
	log := logger.New("audit-worker")
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := admin.EnsureTopics(ctx, &cfg.Kafka, log, events.TopicAudit); err != nil {
		log.Error("topic bootstrap failed", "error", err)
		os.Exit(1)
	}

	prod := producer.New(&cfg.Kafka, producer.WithLogger(log))
	if err := prod.Start(ctx); err != nil {
		log.Error("starting dead-letter producer failed", "error", err)
		os.Exit(1)
	}

	var store audit.Store
	if cfg.PostgresDSN != "" {
		pg, err := audit.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres setup failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("audit schema setup failed", "error", err)
			os.Exit(1)
		}
		store = pg
	} else {
		log.Warn("POSTGRES_DSN not set, audit entries stay in memory")
		store = audit.NewMemoryStore()
	}

	handler, err := audit.NewHandler(store, audit.WithLogger(log))
	if err != nil {
		log.Error("handler setup failed", "error", err)
		os.Exit(1)
	}

	cons := consumer.New(&cfg.Kafka, []string{events.TopicAudit.String()},
		consumer.WithLogger(log),
		consumer.WithDeadLetterer(dlq.NewRouter(prod, cfg.Kafka.GroupID, log)),
	)
	if err := cons.Start(ctx); err != nil {
		log.Error("starting consumer failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	consumeBatch := func(ctx context.Context, msgs []*consumer.Message) error {
		timer := m.TimeHandler()
		err := handler.HandleBatch(ctx, msgs)
		timer.ObserveDuration()
		m.ObserveBatch(events.TopicAudit.String(), len(msgs), err)
		return err
	}

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if cons.State() != consumer.StateRunning {
			http.Error(w, cons.State().String(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	srv := httpserver.New(cfg.HTTPAddr, router)

	log.Info("audit worker starting",
		"brokers", cfg.Kafka.Brokers, "group", cfg.Kafka.GroupID,
		"batch_size", cfg.Kafka.BatchSize, "http", cfg.HTTPAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cons.ConsumeBatch(gctx, consumeBatch, cfg.Kafka.BatchSize)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		if err := cons.Stop(shutdownCtx); err != nil {
			log.Error("consumer shutdown failed", "error", err)
		}
		if err := prod.Stop(shutdownCtx); err != nil {
			log.Error("producer shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("audit worker exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("audit worker stopped")
}
