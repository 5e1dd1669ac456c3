package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/apptslots/libs/kafkax"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
)

type AMQPConfig struct {
	URL         string
	Exchange    string
	Queue       string
	RoutingKeys []string
}

// AMQPListener consumes change events from a per-instance queue bound to a topic exchange.
// The routing key carries the event type. The queue goes away with the instance, whose
// in-process caches start empty anyway.
type AMQPListener struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     AMQPConfig
	handler *Invalidator
	logger  *slog.Logger
	backoff backoff
}

func NewAMQPListener(cfg AMQPConfig, handler *Invalidator, logger *slog.Logger) (*AMQPListener, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	return &AMQPListener{conn: conn, channel: channel, cfg: cfg, handler: handler, logger: logger, backoff: defaultBackoff}, nil
}

// Start declares the topology and begins consuming in the background until ctx is done.
func (l *AMQPListener) Start(ctx context.Context) error {
	if err := l.channel.ExchangeDeclare(l.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", l.cfg.Exchange, err)
	}
	queue, err := l.channel.QueueDeclare(l.cfg.Queue, false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", l.cfg.Queue, err)
	}
	for _, key := range l.cfg.RoutingKeys {
		if err := l.channel.QueueBind(queue.Name, key, l.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	msgs, err := l.channel.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue.Name, err)
	}
	l.logger.Info("amqp listener started", "queue", queue.Name, "exchange", l.cfg.Exchange)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					l.logger.Warn("amqp delivery channel closed")
					return
				}
				l.deliver(ctx, msg)
			}
		}
	}()
	return nil
}

// deliver retries a failing message with backoff and acks it once handled. It is requeued
// only when the listener stops first.
func (l *AMQPListener) deliver(ctx context.Context, msg amqp.Delivery) {
	err := retry(ctx, l.backoff, func(ctx context.Context) error {
		err := l.handler.Handle(ctx, msg.RoutingKey, msg.Body)
		if err != nil {
			l.logger.Error("event handler error", "err", err, "routing_key", msg.RoutingKey)
		}
		return err
	})
	if err != nil {
		if nackErr := msg.Nack(false, true); nackErr != nil {
			l.logger.Error("amqp nack failed", "err", nackErr)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		l.logger.Error("amqp ack failed", "err", err)
	}
}

func (l *AMQPListener) Stop() error {
	if l == nil || l.channel == nil {
		return nil
	}
	if err := l.channel.Close(); err != nil {
		return err
	}
	return l.conn.Close()
}

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPWriter lets the outbox relay publish to a topic exchange. The message topic becomes
// the routing key and its headers are copied over.
type AMQPWriter struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	pub      amqpPublisher
	exchange string
}

func NewAMQPWriter(url, exchange string) (*AMQPWriter, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPWriter{conn: conn, channel: channel, pub: channel, exchange: exchange}, nil
}

func (w *AMQPWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		headers := amqp.Table{}
		for _, h := range m.Headers {
			headers[h.Key] = string(h.Value)
		}
		err := w.pub.PublishWithContext(ctx, w.exchange, m.Topic, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    kafkax.HeaderValue(m.Headers, kafkax.HeaderEventID),
			Type:         m.Topic,
			Headers:      headers,
			Body:         m.Value,
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", m.Topic, err)
		}
	}
	return nil
}

func (w *AMQPWriter) Close() error {
	if w.channel != nil {
		if err := w.channel.Close(); err != nil {
			return err
		}
	}
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}
