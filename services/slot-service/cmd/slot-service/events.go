package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/md-rashed-zaman/apptslots/libs/db"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/cache"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/config"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/events"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/storage"
)

// startInvalidation subscribes the caches to change events on the configured transport.
func startInvalidation(ctx context.Context, cfg config.Config, logger *slog.Logger, types *cache.TypeCache, intervals *cache.IntervalCache) {
	var evicter events.TypeEvicter
	if types != nil {
		evicter = types
	}
	var bumper events.IntervalBumper
	if intervals != nil {
		bumper = intervals
	}
	invalidator := events.NewInvalidator(evicter, bumper, logger)
	// The type cache is per process, so every replica needs every event.
	instance := instanceName()

	switch cfg.Events.Transport {
	case config.TransportKafka:
		consumer := events.NewConsumer(logger, events.ConsumerConfig{
			Brokers: cfg.Events.KafkaBrokers,
			GroupID: cfg.Events.KafkaGroupID + "." + instance,
			Topics:  []string{cfg.Events.TypeTopic, cfg.Events.CalendarTopic},
		}, invalidator)
		go consumer.Run(ctx)
		logger.Info("kafka invalidation consumer started", "topics", []string{cfg.Events.TypeTopic, cfg.Events.CalendarTopic})
	case config.TransportAMQP:
		listener, err := events.NewAMQPListener(events.AMQPConfig{
			URL:         cfg.Events.AMQPURL,
			Exchange:    cfg.Events.AMQPExchange,
			Queue:       cfg.Events.AMQPQueue + "." + instance,
			RoutingKeys: []string{cfg.Events.TypeTopic, cfg.Events.CalendarTopic},
		}, invalidator, logger)
		if err != nil {
			logger.Error("amqp listener unavailable, caches rely on ttl", "err", err)
			return
		}
		if err := listener.Start(ctx); err != nil {
			logger.Error("amqp listener failed to start", "err", err)
			_ = listener.Stop()
			return
		}
		go func() {
			<-ctx.Done()
			if err := listener.Stop(); err != nil {
				logger.Error("amqp listener stop failed", "err", err)
			}
		}()
	default:
		logger.Info("cache invalidation events disabled, caches rely on ttl")
	}
}

// startOutboxPublisher relays appointment type change events on the invalidation transport.
// With none configured the outbox rows stay unpublished and local eviction on upsert is the
// only invalidation.
func startOutboxPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger, pool *db.Pool, repo *storage.OutboxRepository) {
	var writer interface {
		events.MessageWriter
		Close() error
	}
	switch {
	case cfg.Events.Transport == config.TransportAMQP:
		w, err := events.NewAMQPWriter(cfg.Events.AMQPURL, cfg.Events.AMQPExchange)
		if err != nil {
			logger.Error("amqp outbox relay unavailable", "err", err)
			return
		}
		writer = w
	case len(cfg.Events.KafkaBrokers) > 0:
		writer = events.NewKafkaWriter(cfg.Events.KafkaBrokers)
	default:
		return
	}
	publisher := events.NewPublisher(pool, repo, writer, logger, events.PublisherConfig{
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go func() {
		publisher.Run(ctx)
		if err := writer.Close(); err != nil {
			logger.Error("outbox writer close failed", "err", err)
		}
	}()
}

func instanceName() string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "local"
}
