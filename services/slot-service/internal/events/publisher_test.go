package events

import (
	"context"
	"errors"
	"testing"

	"github.com/md-rashed-zaman/apptslots/libs/kafkax"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/storage"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestOutboxMessageCarriesMetaAndTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	rec := storage.OutboxRecord{
		ID:          7,
		EventID:     "evt-1",
		AggregateID: "consult",
		EventType:   TypeChanged,
		Payload:     []byte(`{"appointment_type_id":"consult"}`),
		Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}

	msg := outboxMessage(context.Background(), rec)
	if msg.Topic != TypeChanged || string(msg.Key) != "consult" {
		t.Fatalf("unexpected topic/key %q %q", msg.Topic, msg.Key)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != "evt-1" || meta.EventType != TypeChanged {
		t.Fatalf("unexpected meta %+v", meta)
	}
	sc := trace.SpanContextFromContext(kafkax.ExtractTraceContext(context.Background(), msg))
	if sc.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("expected trace id to survive, got %s", sc.TraceID())
	}
}

type publishRecorder struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (p *publishRecorder) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	p.exchange, p.key, p.msg = exchange, key, msg
	return p.err
}

func TestAMQPWriterRoutesByEventType(t *testing.T) {
	rec := &publishRecorder{}
	w := &AMQPWriter{pub: rec, exchange: "apptslots.events"}
	msg := outboxMessage(context.Background(), storage.OutboxRecord{
		EventID:     "evt-2",
		AggregateID: "consult",
		EventType:   TypeChanged,
		Payload:     []byte(`{"appointment_type_id":"consult"}`),
	})

	if err := w.WriteMessages(context.Background(), msg); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if rec.exchange != "apptslots.events" || rec.key != TypeChanged {
		t.Fatalf("expected routing key %s on apptslots.events, got %q on %q", TypeChanged, rec.key, rec.exchange)
	}
	if rec.msg.MessageId != "evt-2" || rec.msg.Headers[kafkax.HeaderEventType] != TypeChanged {
		t.Fatalf("unexpected publishing %+v", rec.msg)
	}
	if string(rec.msg.Body) != `{"appointment_type_id":"consult"}` {
		t.Fatalf("unexpected body %s", rec.msg.Body)
	}

	rec.err = errors.New("channel closed")
	if err := w.WriteMessages(context.Background(), msg); !errors.Is(err, rec.err) {
		t.Fatalf("expected publish error, got %v", err)
	}
}
