package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/bacembenakkari/TalentCloud/internal/config"
	"github.com/bacembenakkari/TalentCloud/internal/database"
	"github.com/bacembenakkari/TalentCloud/internal/dedupe"
	"github.com/bacembenakkari/TalentCloud/internal/dispatch"
	"github.com/bacembenakkari/TalentCloud/internal/handler"
	"github.com/bacembenakkari/TalentCloud/internal/identity"
	"github.com/bacembenakkari/TalentCloud/internal/kafka"
	"github.com/bacembenakkari/TalentCloud/internal/metrics"
	"github.com/bacembenakkari/TalentCloud/internal/middleware"
	"github.com/bacembenakkari/TalentCloud/internal/notification"
	"github.com/bacembenakkari/TalentCloud/internal/ratelimit"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	log.Info("Starting TalentCloud notifier...")

	var rec metrics.Recorder = metrics.Noop{}
	if cfg.Metrics.Enabled {
		provider, err := metrics.NewProvider(os.Stdout, cfg.Metrics.Interval)
		if err != nil {
			log.WithError(err).Fatal("Failed to create metrics provider")
		}
		otel.SetMeterProvider(provider)
		defer provider.Shutdown(context.Background())

		rec, err = metrics.New(otel.GetMeterProvider())
		if err != nil {
			log.WithError(err).Fatal("Failed to create metrics")
		}
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		// Only dedupe needs Redis; the limiter fails open.
		if cfg.Dedupe.Enabled {
			log.WithError(err).Fatal("Redis is required when DEDUPE_ENABLED is set")
		}
		log.WithError(err).Warn("Redis unavailable, rate limiting will fail open")
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	}
	defer rdb.Close()

	lookup := identity.NewHTTPClient(cfg.Identity.BaseURL, cfg.Identity.Timeout)
	resolver := identity.NewResolver(lookup, cfg.Identity.FallbackDomain, log, rec)

	notifications := database.NewNotificationRepository(db.DB)
	executor := notification.NewExecutor(
		notifications,
		notification.NewSender(cfg.Mail, log),
		cfg.Identity.FallbackDomain,
		cfg.Mail.SendTimeout,
		log,
		rec,
	)
	handlers := notification.NewHandlers(resolver, executor, log)

	opts := []dispatch.Option{dispatch.WithMetrics(rec)}
	if cfg.Dedupe.Enabled {
		opts = append(opts, dispatch.WithDeduplicator(dedupe.NewStore(rdb, cfg.Dedupe.TTL)))
	}
	policy := dispatch.RetryPolicy{
		MaxAttempts: cfg.Consumer.MaxAttempts,
		Backoff:     cfg.Consumer.Backoff,
	}

	var consumers []*kafka.Consumer
	for _, sub := range cfg.Subscriptions {
		dispatcher := dispatch.New(policy, log.WithField("group", sub.Group), opts...)
		handlers.Register(dispatcher)
		for _, topic := range sub.Topics {
			dispatcher.BindTopic(topic, sub.EventType)
		}

		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.Kafka.Brokers,
			ClientID:      cfg.Kafka.ClientID,
			Group:         sub.Group,
			Topics:        sub.Topics,
			InitialOffset: cfg.Kafka.InitialOffset,
		}, dispatcher, log)
		if err != nil {
			log.WithError(err).WithField("group", sub.Group).Fatal("Failed to create consumer")
		}
		consumers = append(consumers, consumer)
	}

	var group errgroup.Group
	for _, consumer := range consumers {
		consumer := consumer
		group.Go(func() error {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	limiter := ratelimit.NewSlidingWindow(rdb, ratelimit.SlidingWindowConfig{
		WindowSize:  cfg.HTTP.RateLimitWindow,
		MaxRequests: cfg.HTTP.RateLimit,
	})

	r := mux.NewRouter()
	r.Use(middleware.Recovery(log), middleware.Logging(log), middleware.CORS)
	r.Use(middleware.NewRateLimit(limiter, log).Middleware)
	handler.NewHandler(notification.NewInbox(notifications, lookup, log), log).Register(r)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("Inbox API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down notifier...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	cancel()
	for _, consumer := range consumers {
		if err := consumer.Close(); err != nil {
			log.WithError(err).Error("Failed to close consumer")
		}
	}
	if err := group.Wait(); err != nil {
		log.WithError(err).Error("Consumer stopped with error")
	}

	log.Info("Notifier exited")
}
