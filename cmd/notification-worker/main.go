// The notification worker consumes notification-queue and sends one email
// per event, deduplicating by event id so redeliveries are harmless.
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

	"hrms/internal/notification"
	"hrms/internal/platform/config"
	"hrms/internal/platform/httpserver"
	"hrms/internal/platform/kafka/admin"
	"hrms/internal/platform/kafka/consumer"
	"hrms/internal/platform/kafka/dlq"
	"hrms/internal/platform/kafka/producer"
	"hrms/internal/platform/logger"
	"hrms/internal/platform/metrics"
	platformredis "hrms/internal/platform/redis"
	"hrms/pkg/events"
)

func main() {
	cfg, err := config.FromEnv("notification-service")
	log := logger.New("notification-worker")
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := admin.EnsureTopics(ctx, &cfg.Kafka, log, events.TopicNotification); err != nil {
		log.Error("topic bootstrap failed", "error", err)
		os.Exit(1)
	}

	// The producer serves only the dead-letter path here.
	prod := producer.New(&cfg.Kafka, producer.WithLogger(log))
	if err := prod.Start(ctx); err != nil {
		log.Error("starting dead-letter producer failed", "error", err)
		os.Exit(1)
	}

	var mailer notification.Mailer
	if cfg.SMTP.Addr != "" {
		mailer, err = notification.NewSMTPMailer(notification.SMTPConfig{
			Addr:     cfg.SMTP.Addr,
			From:     cfg.SMTP.From,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
		if err != nil {
			log.Error("smtp mailer setup failed", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("SMTP_ADDR not set, emails go to the log")
		mailer = &notification.LogMailer{Logger: log}
	}

	handlerOpts := []notification.Option{notification.WithLogger(log)}
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		handlerOpts = append(handlerOpts, notification.WithDedupe(notification.NewRedisDedupe(redisClient.Client)))
	} else {
		log.Warn("REDIS_URL not set, event dedupe is process-local")
	}

	handler, err := notification.NewHandler(mailer, handlerOpts...)
	if err != nil {
		log.Error("handler setup failed", "error", err)
		os.Exit(1)
	}

	cons := consumer.New(&cfg.Kafka, []string{events.TopicNotification.String()},
		consumer.WithLogger(log),
		consumer.WithDeadLetterer(dlq.NewRouter(prod, cfg.Kafka.GroupID, log)),
	)
	if err := cons.Start(ctx); err != nil {
		log.Error("starting consumer failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	consume := func(ctx context.Context, msg *consumer.Message) error {
		timer := m.TimeHandler()
		err := handler.Handle(ctx, msg)
		timer.ObserveDuration()
		m.ObserveMessage(msg.Topic, err)
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

	log.Info("notification worker starting",
		"brokers", cfg.Kafka.Brokers, "group", cfg.Kafka.GroupID, "http", cfg.HTTPAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cons.Consume(gctx, consume)
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
		log.Error("notification worker exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("notification worker stopped")
}
