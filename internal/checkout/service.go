package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/payment"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

var meter = otel.Meter("storefront/checkout")

type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByReference(ctx context.Context, reference string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, reference string, status domain.OrderStatus) error
}

type PaymentGateway interface {
	CreateTransaction(ctx context.Context, req payment.TransactionRequest) (*payment.Transaction, error)
}

// CompletionNotifier is told about every order that reaches COMPLETED.
type CompletionNotifier interface {
	OrderCompleted(ctx context.Context, event domain.OrderCompletedEvent) error
}

type Config struct {
	ShippingFee           int64
	Currency              string
	Country               string
	Locale                string
	UnselectedDestination string
	NotifyTimeout         time.Duration
}

// Service runs checkout submissions and applies payment notifications.
type Service struct {
	orders       OrderStore
	gateway      PaymentGateway
	selector     payment.MethodSelector
	notifier     CompletionNotifier
	cfg          Config
	form         *formValidator
	newReference func() string
	now          func() time.Time
	logger       *slog.Logger
	pending      sync.WaitGroup

	ordersCreated   metric.Int64Counter
	gatewayFailures metric.Int64Counter
	notifications   metric.Int64Counter
}

func NewService(store OrderStore, gateway PaymentGateway, selector payment.MethodSelector, notifier CompletionNotifier, cfg Config, logger *slog.Logger) *Service {
	if cfg.NotifyTimeout == 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}

	return &Service{
		orders:          store,
		gateway:         gateway,
		selector:        selector,
		notifier:        notifier,
		cfg:             cfg,
		form:            newFormValidator(cfg.UnselectedDestination),
		newReference:    NewReference,
		now:             time.Now,
		logger:          logger,
		ordersCreated:   telemetry.Int64Counter(meter, "storefront.orders.created", "Orders persisted at checkout"),
		gatewayFailures: telemetry.Int64Counter(meter, "storefront.gateway.failures", "Failed payment transaction requests"),
		notifications:   telemetry.Int64Counter(meter, "storefront.notifications.received", "Payment notifications by status"),
	}
}

func (s *Service) ValidateOrderForm(form OrderForm) (OrderForm, error) {
	return s.form.check(form)
}

func (s *Service) IsEmail(email string) bool {
	return s.form.IsEmail(email)
}

// PlaceOrder stores a PENDING order for cart, opens a gateway transaction for
// the cart total plus shipping and returns the payment page URL. The cart is
// never modified. A gateway failure leaves the PENDING order in place.
func (s *Service) PlaceOrder(ctx context.Context, cart *domain.Cart, form OrderForm, clientIP string) (string, error) {
	if cart.IsEmpty() {
		return "", ErrEmptyCart
	}

	form, err := s.ValidateOrderForm(form)
	if err != nil {
		return "", err
	}

	serialized, err := domain.SerializeCart(cart)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	order := &domain.Order{
		Reference: s.newReference(),
		Cart:      serialized,
		Status:    domain.OrderStatusPending,
		Customer: domain.Customer{
			FirstName: form.FirstName,
			LastName:  form.LastName,
			Email:     form.Email,
			Phone:     form.Phone,
		},
		Destination: form.Destination,
		Price:       cart.TotalPrice,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.ordersCreated.Add(ctx, 1)
	s.logger.Info("order created", "reference", order.Reference, "price", order.Price)

	tx, err := s.gateway.CreateTransaction(ctx, payment.TransactionRequest{
		Transaction: payment.TransactionDetails{
			Amount:    payment.FormatAmount(cart.TotalPrice + s.cfg.ShippingFee),
			Currency:  s.cfg.Currency,
			Reference: order.Reference,
		},
		Customer: payment.Customer{
			Email:   order.Customer.Email,
			IP:      clientIP,
			Country: s.cfg.Country,
			Locale:  s.cfg.Locale,
		},
	})
	if err != nil {
		s.gatewayFailures.Add(ctx, 1)
		return "", fmt.Errorf("%w: reference %s: %v", ErrGateway, order.Reference, err)
	}

	method, err := s.selector.Select(tx.PaymentMethods)
	if err != nil {
		s.gatewayFailures.Add(ctx, 1)
		return "", fmt.Errorf("%w: transaction %s: %v", ErrGateway, tx.ID, err)
	}

	s.logger.Info("transaction created", "transaction_id", tx.ID, "reference", order.Reference, "method", method.Name)
	return method.URL, nil
}

// Notification is the payload the gateway posts about a transaction.
type Notification struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

func ParseNotification(raw string) (Notification, error) {
	var n Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	if n.Reference == "" {
		return Notification{}, errors.New("decode notification: missing reference")
	}
	return n, nil
}

// HandleNotification overwrites the order status with the notified one. Any
// transition is accepted and redelivery is harmless. For COMPLETED the
// notifier is triggered in the background; its failures are only logged.
func (s *Service) HandleNotification(ctx context.Context, n Notification) error {
	status, err := domain.ParseOrderStatus(n.Status)
	if err != nil {
		return err
	}
	s.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))

	if err := s.orders.UpdateStatus(ctx, n.Reference, status); err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.logger.Info("order status updated", "reference", n.Reference, "status", status)

	if status != domain.OrderStatusCompleted {
		return nil
	}

	order, err := s.orders.GetByReference(ctx, n.Reference)
	if err != nil {
		s.logger.Error("failed to load completed order", "error", err, "reference", n.Reference)
		return nil
	}

	event, err := domain.NewOrderCompletedEvent(order, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to build order completed event", "error", err, "reference", n.Reference)
		return nil
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
		defer cancel()

		if err := s.notifier.OrderCompleted(notifyCtx, event); err != nil {
			s.logger.Error("failed to notify order completion", "error", err, "reference", event.Reference)
		}
	}()

	return nil
}

// Wait blocks until background notifications have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}
