package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []Message
	failFor  string
	failures int
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.To == f.failFor && f.failures > 0 {
		f.failures--
		return errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	to := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		to = append(to, m.To)
	}
	return to
}

func newTestService(t *testing.T, sender Sender) *Service {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	shop := ShopInfo{
		Title:            "Honey Shop",
		Address:          "honeyshop.example",
		OperatorEmail:    "shop@example.com",
		OrderSenderEmail: "orders@example.com",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(sender, NewRedisDeduper(client, 24*time.Hour), shop, logger)
}

func completedEvent() domain.OrderCompletedEvent {
	return domain.OrderCompletedEvent{
		Reference:   "AbCdEfGh12345678",
		Status:      domain.OrderStatusCompleted,
		Customer:    domain.Customer{FirstName: "Mari", LastName: "Maasikas", Email: "mari@example.com", Phone: "5550000"},
		Destination: "Tallinn Kristiine",
		Lines: []domain.CartLine{
			{Product: domain.Product{ID: "p1", Title: "Linden honey", Price: 500}, Quantity: 2, LineTotal: 1000},
		},
		Total: 1000,
	}
}

func TestService_OrderCompleted(t *testing.T) {
	ctx := context.Background()

	t.Run("mails operator and customer", func(t *testing.T) {
		sender := &fakeSender{}
		svc := newTestService(t, sender)

		require.NoError(t, svc.OrderCompleted(ctx, completedEvent()))

		require.Len(t, sender.sent, 2)
		operator, customer := sender.sent[0], sender.sent[1]

		assert.Equal(t, "shop@example.com", operator.To)
		assert.Equal(t, "orders@example.com", operator.From)
		assert.Equal(t, "Order AbCdEfGh12345678 | honeyshop.example", operator.Subject)
		assert.Contains(t, operator.HTML, "<strong>2x</strong> Linden honey (10.00€)")
		assert.Contains(t, operator.HTML, "Destination: Tallinn Kristiine")

		assert.Equal(t, "mari@example.com", customer.To)
		assert.Contains(t, customer.HTML, "Linden honey")
		assert.Contains(t, customer.HTML, "Tallinn Kristiine")
	})

	t.Run("repeated delivery sends nothing new", func(t *testing.T) {
		sender := &fakeSender{}
		svc := newTestService(t, sender)

		require.NoError(t, svc.OrderCompleted(ctx, completedEvent()))
		require.NoError(t, svc.OrderCompleted(ctx, completedEvent()))

		assert.Len(t, sender.sent, 2)
	})

	t.Run("failed email is retried on the next delivery", func(t *testing.T) {
		sender := &fakeSender{failFor: "mari@example.com", failures: 1}
		svc := newTestService(t, sender)

		assert.Error(t, svc.OrderCompleted(ctx, completedEvent()))
		assert.Equal(t, []string{"shop@example.com"}, sender.recipients())

		require.NoError(t, svc.OrderCompleted(ctx, completedEvent()))
		assert.Equal(t, []string{"shop@example.com", "mari@example.com"}, sender.recipients())
	})
}

func TestService_Contact(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(t, sender)

	require.NoError(t, svc.Contact(context.Background(), "visitor@example.com", "Do you ship to Tartu?"))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "visitor@example.com", msg.From)
	assert.Equal(t, "visitor@example.com", msg.ReplyTo)
	assert.Equal(t, "shop@example.com", msg.To)
	assert.Equal(t, "Email <visitor@example.com> | honeyshop.example", msg.Subject)
	assert.Contains(t, msg.HTML, "Do you ship to Tartu?")
}

func TestEventHandler_Handle(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(t, sender)
	handler := NewEventHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	t.Run("skips malformed payloads", func(t *testing.T) {
		assert.NoError(t, handler.Handle(context.Background(), []byte("not json")))
		assert.Empty(t, sender.sent)
	})

	t.Run("sends emails for a valid event", func(t *testing.T) {
		payload := []byte(`{"reference":"R1","status":"COMPLETED","customer":{"email":"c@example.com"},"destination":"Tartu","lines":[],"total":0}`)
		assert.NoError(t, handler.Handle(context.Background(), payload))
		assert.Equal(t, []string{"shop@example.com", "c@example.com"}, sender.recipients())
	})

	t.Run("returns delivery failures so the event is redelivered", func(t *testing.T) {
		failing := &fakeSender{failFor: "mari@example.com", failures: 1}
		h := NewEventHandler(newTestService(t, failing), slog.New(slog.NewTextHandler(io.Discard, nil)))
		payload := []byte(`{"reference":"R2","status":"COMPLETED","customer":{"email":"mari@example.com"},"destination":"Tartu","lines":[],"total":0}`)

		assert.Error(t, h.Handle(context.Background(), payload))
		assert.Equal(t, []string{"shop@example.com"}, failing.recipients())

		require.NoError(t, h.Handle(context.Background(), payload))
		assert.Equal(t, []string{"shop@example.com", "mari@example.com"}, failing.recipients())
	})
}
