package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/pos-register/internal/domain"
	pkgkafka "github.com/utafrali/pos-register/pkg/kafka"
)

// Kafka topics for register domain events.
var (
	TopicOrderCompleted = pkgkafka.Topic("order", "completed")
	TopicItemVoided     = pkgkafka.Topic("cart", "item_voided")
	TopicOrderVoided    = pkgkafka.Topic("cart", "order_voided")

	// TopicTaxRateChanged is consumed, not produced: the back office announces
	// tax configuration changes on it.
	TopicTaxRateChanged = pkgkafka.Topic("store", "tax_rate_changed")
)

// Aggregate types.
const (
	AggregateTypeOrder    = "order"
	AggregateTypeTerminal = "terminal"
)

// SourceRegisterService identifies events originating from this service.
const SourceRegisterService = "pos-register"

// OrderCompletedData is the payload for an order.completed event.
type OrderCompletedData struct {
	OrderID        string            `json:"order_id"`
	TerminalID     string            `json:"terminal_id"`
	CashierID      string            `json:"cashier_id"`
	CustomerID     *int64            `json:"customer_id"`
	Items          []domain.LineItem `json:"items"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	Tax            decimal.Decimal   `json:"tax"`
	Discount       decimal.Decimal   `json:"discount"`
	Total          decimal.Decimal   `json:"total"`
	PaymentMethod  string            `json:"payment_method"`
	AmountTendered decimal.Decimal   `json:"amount_tendered"`
	Change         decimal.Decimal   `json:"change"`
	CardBrand      string            `json:"card_brand,omitempty"`
	CompletedAt    time.Time         `json:"completed_at"`
}

// VoidData is the payload for item_voided and order_voided events. It is the
// audit entry as recorded.
type VoidData struct {
	domain.AuditEntry
}

// TaxRateChangedData is the payload of a tax_rate_changed event. Rate is kept
// as decoded and normalized by the consumer.
type TaxRateChangedData struct {
	RatePercent any `json:"rate_percent"`
}

// Producer publishes register domain events to Kafka.
type Producer struct {
	kafka  pkgkafka.Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the register service.
func NewProducer(kafka pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderCompleted publishes an order.completed event for a cart that
// was accepted by the back office.
func (p *Producer) PublishOrderCompleted(ctx context.Context, data OrderCompletedData) error {
	event, err := pkgkafka.NewEvent(TopicOrderCompleted, data.OrderID, AggregateTypeOrder, SourceRegisterService, data)
	if err != nil {
		return fmt.Errorf("create order.completed event: %w", err)
	}
	event.WithMetadata("terminal_id", data.TerminalID)

	if err := p.kafka.Publish(ctx, TopicOrderCompleted, event); err != nil {
		return fmt.Errorf("publish order.completed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.completed event",
		slog.String("order_id", data.OrderID),
		slog.String("terminal_id", data.TerminalID),
	)
	return nil
}

// PublishVoid publishes the event matching the audit entry's action.
func (p *Producer) PublishVoid(ctx context.Context, entry domain.AuditEntry) error {
	var topic string
	switch entry.Action {
	case domain.AuditActionVoidItem:
		topic = TopicItemVoided
	case domain.AuditActionVoidOrder:
		topic = TopicOrderVoided
	default:
		return fmt.Errorf("publish void: unknown audit action %q", entry.Action)
	}

	event, err := pkgkafka.NewEvent(topic, entry.TerminalID, AggregateTypeTerminal, SourceRegisterService, VoidData{AuditEntry: entry})
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	event.WithMetadata("terminal_id", entry.TerminalID).
		WithMetadata("user_id", entry.Actor.UserID)

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published void event",
		slog.String("topic", topic),
		slog.String("audit_id", entry.ID),
	)
	return nil
}
