package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Run("keys the message and injects trace context", func(t *testing.T) {
		writer := &fakeWriter{}
		events := NewOrderEvents(&Producer{writer: writer, topic: "order.completed"})

		event := domain.OrderCompletedEvent{Reference: "R1", Status: domain.OrderStatusCompleted, Total: 1000}
		if err := events.OrderCompleted(context.Background(), event); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(writer.msgs) != 1 {
			t.Fatalf("expected 1 message, got %d", len(writer.msgs))
		}
		msg := writer.msgs[0]
		if string(msg.Key) != "R1" {
			t.Errorf("expected key R1, got %s", msg.Key)
		}

		var decoded domain.OrderCompletedEvent
		if err := json.Unmarshal(msg.Value, &decoded); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.Reference != "R1" || decoded.Total != 1000 {
			t.Errorf("unexpected event %+v", decoded)
		}

		if carrierFor(&msg).Get("traceparent") == "" {
			t.Error("expected traceparent header")
		}
	})

	t.Run("wraps writer errors", func(t *testing.T) {
		boom := errors.New("broker down")
		producer := &Producer{writer: &fakeWriter{err: boom}, topic: "order.completed"}

		if err := producer.Publish(context.Background(), "R1", map[string]string{}); !errors.Is(err, boom) {
			t.Errorf("expected wrapped broker error, got %v", err)
		}
	})
}

func TestConsumer_Consume(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("retries a failing handler then commits", func(t *testing.T) {
		reader := &fakeReader{msgs: []kafka.Message{{Offset: 1, Value: []byte("a")}, {Offset: 2, Value: []byte("b")}}}
		consumer := &Consumer{reader: reader, topic: "t", groupID: "g", maxAttempts: 2, backoff: time.Millisecond, logger: logger}

		calls := map[string]int{}
		err := consumer.Consume(context.Background(), func(_ context.Context, payload []byte) error {
			calls[string(payload)]++
			if string(payload) == "a" && calls["a"] == 1 {
				return errors.New("transient")
			}
			return nil
		})

		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected reader error to end consumption, got %v", err)
		}
		if calls["a"] != 2 || calls["b"] != 1 {
			t.Errorf("unexpected handler calls %v", calls)
		}
		if len(reader.committed) != 2 {
			t.Errorf("expected both messages committed, got %v", reader.committed)
		}
	})

	t.Run("drops a message that keeps failing", func(t *testing.T) {
		reader := &fakeReader{msgs: []kafka.Message{{Offset: 7, Value: []byte("poison")}}}
		consumer := &Consumer{reader: reader, topic: "t", groupID: "g", maxAttempts: 3, backoff: time.Millisecond, logger: logger}

		calls := 0
		_ = consumer.Consume(context.Background(), func(context.Context, []byte) error {
			calls++
			return errors.New("permanent")
		})

		if calls != 3 {
			t.Errorf("expected 3 attempts, got %d", calls)
		}
		if len(reader.committed) != 1 || reader.committed[0] != 7 {
			t.Errorf("expected offset 7 committed, got %v", reader.committed)
		}
	})
}

func TestHeaderCarrier(t *testing.T) {
	msg := kafka.Message{}
	c := carrierFor(&msg)

	c.Set("traceparent", "one")
	c.Set("baggage", "k=v")
	c.Set("traceparent", "two")

	if got := c.Get("traceparent"); got != "two" {
		t.Errorf("expected overwritten value, got %q", got)
	}
	if len(msg.Headers) != 2 {
		t.Errorf("expected 2 headers, got %d", len(msg.Headers))
	}
	if keys := c.Keys(); len(keys) != 2 || keys[0] != "traceparent" || keys[1] != "baggage" {
		t.Errorf("unexpected keys %v", keys)
	}
	if c.Get("missing") != "" {
		t.Error("expected empty value for missing key")
	}
}
