package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// EventHandler consumes order-completed events from the message bus.
type EventHandler struct {
	service *Service
	logger  *slog.Logger
}

func NewEventHandler(service *Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		logger:  logger,
	}
}

// Handle sends the notification emails for one event. Malformed payloads are
// logged and skipped; delivery failures are returned so the consumer retries.
func (h *EventHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("failed to decode order completed event", "error", err)
		return nil
	}

	h.logger.Info("processing order completed event", "reference", event.Reference, "status", event.Status)

	if err := h.service.OrderCompleted(ctx, event); err != nil {
		return fmt.Errorf("send order emails for %s: %w", event.Reference, err)
	}

	h.logger.Info("order emails processed", "reference", event.Reference)
	return nil
}
