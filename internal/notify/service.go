package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

var meter = otel.Meter("storefront/notify")

type ShopInfo struct {
	Title            string
	Address          string
	OperatorEmail    string
	OrderSenderEmail string
}

// Service renders and sends the shop's emails.
type Service struct {
	sender Sender
	dedup  Deduper
	shop   ShopInfo
	logger *slog.Logger

	emailsSent   metric.Int64Counter
	emailsFailed metric.Int64Counter
}

func NewService(sender Sender, dedup Deduper, shop ShopInfo, logger *slog.Logger) *Service {
	return &Service{
		sender:       sender,
		dedup:        dedup,
		shop:         shop,
		logger:       logger,
		emailsSent:   telemetry.Int64Counter(meter, "storefront.emails.sent", "Emails handed to the mail transport"),
		emailsFailed: telemetry.Int64Counter(meter, "storefront.emails.failed", "Emails the mail transport rejected"),
	}
}

// OrderCompleted sends the order summary to the operator and to the customer.
// Each email goes out at most once per reference and status.
func (s *Service) OrderCompleted(ctx context.Context, event domain.OrderCompletedEvent) error {
	data := orderEmailData{OrderCompletedEvent: event, Shop: s.shop}

	operatorHTML, err := render("order_operator.html", data)
	if err != nil {
		return err
	}
	customerHTML, err := render("order_customer.html", data)
	if err != nil {
		return err
	}

	messages := map[string]Message{
		"operator": {
			From:    s.shop.OrderSenderEmail,
			To:      s.shop.OperatorEmail,
			Subject: fmt.Sprintf("Order %s | %s", event.Reference, s.shop.Address),
			HTML:    operatorHTML,
		},
		"customer": {
			From:    s.shop.OrderSenderEmail,
			To:      event.Customer.Email,
			Subject: fmt.Sprintf("Your order %s | %s", event.Reference, s.shop.Title),
			HTML:    customerHTML,
		},
	}

	var errs []error
	for _, recipient := range []string{"operator", "customer"} {
		key := fmt.Sprintf("%s:%s:%s", event.Reference, event.Status, recipient)
		if err := s.sendOnce(ctx, key, messages[recipient]); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Service) sendOnce(ctx context.Context, key string, msg Message) error {
	claimed, err := s.dedup.Claim(ctx, key)
	if err != nil {
		return err
	}
	if !claimed {
		s.logger.Info("notification already sent", "key", key)
		return nil
	}

	if err := s.send(ctx, msg); err != nil {
		if releaseErr := s.dedup.Release(ctx, key); releaseErr != nil {
			s.logger.Error("failed to release notification claim", "error", releaseErr, "key", key)
		}
		return err
	}

	return nil
}

// Contact forwards a visitor's message to the operator.
func (s *Service) Contact(ctx context.Context, email, message string) error {
	html, err := render("contact.html", contactEmailData{Email: email, Message: message})
	if err != nil {
		return err
	}

	return s.send(ctx, Message{
		From:    email,
		To:      s.shop.OperatorEmail,
		ReplyTo: email,
		Subject: fmt.Sprintf("Email <%s> | %s", email, s.shop.Address),
		HTML:    html,
	})
}

func (s *Service) send(ctx context.Context, msg Message) error {
	if err := s.sender.Send(ctx, msg); err != nil {
		s.emailsFailed.Add(ctx, 1)
		return err
	}

	s.emailsSent.Add(ctx, 1)
	s.logger.Info("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}
