package events

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
)

// flakyBumper fails the first failures calls.
type flakyBumper struct {
	failures int
	calls    int
}

func (f *flakyBumper) Bump(_ context.Context, _ string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("redis down")
	}
	return nil
}

type ackRecorder struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func (a *ackRecorder) Reject(uint64, bool) error { return nil }

var fastBackoff = backoff{base: time.Millisecond, max: 2 * time.Millisecond}

func calendarMessage() kafka.Message {
	return kafka.Message{
		Topic: CalendarChanged,
		Value: []byte(`{"employee_id":"e1"}`),
	}
}

func TestConsumerRetriesFailedMessageBeforeCommit(t *testing.T) {
	bumper := &flakyBumper{failures: 3}
	c := &Consumer{logger: testLogger(), handler: NewInvalidator(nil, bumper, testLogger()), backoff: fastBackoff}

	if err := c.process(context.Background(), calendarMessage()); err != nil {
		t.Fatalf("expected message handled, got %v", err)
	}
	if bumper.calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", bumper.calls)
	}
}

func TestConsumerStopsRetryingOnShutdown(t *testing.T) {
	bumper := &flakyBumper{failures: 1 << 30}
	c := &Consumer{logger: testLogger(), handler: NewInvalidator(nil, bumper, testLogger()), backoff: fastBackoff}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.process(ctx, calendarMessage()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error so the offset stays uncommitted, got %v", err)
	}
	if bumper.calls < 2 {
		t.Fatalf("expected retries before shutdown, got %d calls", bumper.calls)
	}
}

func TestAMQPDeliverAcksAfterRetry(t *testing.T) {
	bumper := &flakyBumper{failures: 2}
	l := &AMQPListener{handler: NewInvalidator(nil, bumper, testLogger()), logger: testLogger(), backoff: fastBackoff}
	ack := &ackRecorder{}

	l.deliver(context.Background(), amqp.Delivery{Acknowledger: ack, RoutingKey: CalendarChanged, Body: []byte(`{"employee_id":"e1"}`)})
	if !ack.acked || ack.nacked {
		t.Fatalf("expected ack only, got %+v", ack)
	}
	if bumper.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", bumper.calls)
	}
}

func TestAMQPDeliverRequeuesOnShutdown(t *testing.T) {
	bumper := &flakyBumper{failures: 1 << 30}
	l := &AMQPListener{handler: NewInvalidator(nil, bumper, testLogger()), logger: testLogger(), backoff: fastBackoff}
	ack := &ackRecorder{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	l.deliver(ctx, amqp.Delivery{Acknowledger: ack, RoutingKey: CalendarChanged, Body: []byte(`{"employee_id":"e1"}`)})
	if ack.acked || !ack.nacked || !ack.requeue {
		t.Fatalf("expected requeue nack, got %+v", ack)
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	b := backoff{base: 100 * time.Millisecond, max: time.Second}
	cases := map[int]time.Duration{0: 100 * time.Millisecond, 1: 200 * time.Millisecond, 3: 800 * time.Millisecond, 4: time.Second, 60: time.Second}
	for attempt, want := range cases {
		if got := b.delay(attempt); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}
}
