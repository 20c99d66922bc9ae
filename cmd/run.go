// Package cmd wires the application together and owns its lifecycle.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"predmarket/api"
	"predmarket/cache"
	"predmarket/config"
	"predmarket/currency"
	"predmarket/database"
	"predmarket/events"
	"predmarket/metrics"
	"predmarket/repository"
	"predmarket/service"
	"predmarket/telegram"
	"predmarket/worker"
)

// Run starts every component and blocks until ctx is cancelled, then shuts
// everything down in reverse order.
func Run(ctx context.Context, cfg *config.Config) error {
	if err := database.RunMigrationsWithURL(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	bus := events.NewBus()

	var kafkaBridge *events.KafkaBridge
	if len(cfg.KafkaBrokers) > 0 {
		kafkaBridge = events.NewKafkaBridge(cfg.KafkaBrokers, cfg.KafkaTopic)
		kafkaBridge.Attach(bus)
		defer func() {
			if err := kafkaBridge.Close(); err != nil {
				log.WithError(err).Warn("Kafka bridge close failed")
			}
		}()
		log.WithField("topic", cfg.KafkaTopic).Info("Kafka event bridge enabled")
	}

	m := metrics.New()
	bus.Subscribe(events.EventTypeBetPlaced, func(events.Event) { m.BetsPlaced.Inc() })
	bus.Subscribe(events.EventTypeMarketResolved, func(events.Event) { m.MarketsResolved.Inc() })

	uowFactory := repository.NewUnitOfWorkFactory(db, bus)

	var standingsCache service.StandingsCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisClient.Close()
		standingsCache = cache.NewStandingsCache(redisClient)
		log.WithField("addr", cfg.RedisAddr).Info("Redis standings cache enabled")
	}

	var sender *telegram.Sender
	if cfg.BotToken != "" {
		sender, err = telegram.NewSender(cfg.BotToken)
		if err != nil {
			return fmt.Errorf("telegram sender failed: %w", err)
		}
	}

	var subscriptionChecker service.SubscriptionChecker
	if sender != nil {
		subscriptionChecker = sender
	}

	userService := service.NewUserService(uowFactory, cfg)
	marketService := service.NewMarketService(uowFactory, cfg)
	leaderboardService := service.NewLeaderboardService(uowFactory, standingsCache, cfg.QueueMaxAttempts)
	missionService := service.NewMissionService(uowFactory, subscriptionChecker)
	notificationService := service.NewNotificationService(uowFactory, cfg.QueueMaxAttempts)

	converter, err := currency.NewConverter(cfg.TonToPredRate)
	if err != nil {
		return fmt.Errorf("currency converter failed: %w", err)
	}

	var cleanups []func()

	if sender != nil {
		deliveryWorker := worker.NewDeliveryWorker(notificationService, sender, worker.DeliveryConfig{
			PollInterval:       cfg.QueuePollInterval,
			BatchSize:          cfg.QueueBatchSize,
			SendDelay:          cfg.SendDelay,
			BatchPauseEvery:    cfg.BatchPauseEvery,
			BatchPauseDuration: cfg.BatchPauseDuration,
		}, m)
		cleanups = append(cleanups, deliveryWorker.Start(ctx))
	} else {
		log.Warn("No bot token configured, delivery worker disabled")
	}

	scheduler := worker.NewScheduler()
	worker.RegisterJobs(scheduler, cfg, missionService, leaderboardService, notificationService, m)
	cleanups = append(cleanups, scheduler.Start(ctx))

	metricsServer := metrics.NewServer(cfg.MetricsPort)
	go metricsServer.Start()

	apiServer := api.NewServer(cfg.HTTPPort, api.NewRouter(&api.Handlers{
		Users:         userService,
		Markets:       marketService,
		Leaderboard:   leaderboardService,
		Missions:      missionService,
		Notifications: notificationService,
		Converter:     converter,
		MinDepositTon: cfg.MinDepositTon,
		MaxDepositTon: cfg.MaxDepositTon,
	}))
	go apiServer.Start()

	log.Info("All components started")
	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("API server shutdown failed")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Metrics server shutdown failed")
	}
	for _, cleanup := range cleanups {
		cleanup()
	}

	log.Info("Shutdown complete")
	return nil
}
