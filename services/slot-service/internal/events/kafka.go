package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptslots/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
}

// Consumer reads change events from Kafka and feeds them to an Invalidator. A failing
// message is retried with backoff before the next one is fetched, and its offset is committed
// only once it was handled or deliberately skipped. A new group starts at the newest offset
// since older invalidations predate the process caches.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler *Invalidator
	backoff backoff
}

func NewConsumer(logger *slog.Logger, cfg ConsumerConfig, handler *Invalidator) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{reader: reader, logger: logger, handler: handler, backoff: defaultBackoff}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.process(ctx, msg); err != nil {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// process handles msg, retrying until it succeeds. It fails only when ctx is done, in which
// case the offset must stay uncommitted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	return retry(ctx, c.backoff, func(ctx context.Context) error {
		return c.handle(ctx, msg)
	})
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	ctxSpan, span := otel.Tracer("kafka").Start(kafkax.ExtractTraceContext(ctx, msg), "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.message_id", meta.EventID),
		),
	)
	defer span.End()

	if err := c.handler.Handle(ctxSpan, meta.EventType, msg.Value); err != nil {
		c.logger.Error("event handler error", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
		span.RecordError(err)
		return err
	}
	return nil
}
