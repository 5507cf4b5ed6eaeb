// Package notifications delivers best-effort customer notices. Dispatch is
// asynchronous and never fails the calling use case; a lost notice is
// acceptable, a failed checkout is not.
package notifications

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	ordersdomain "github.com/Apurer/go-commerce-api-server/internal/domains/orders/domain"
	ordersports "github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
	refundsdomain "github.com/Apurer/go-commerce-api-server/internal/domains/refunds/domain"
	refundsports "github.com/Apurer/go-commerce-api-server/internal/domains/refunds/ports"
	"github.com/Apurer/go-commerce-api-server/internal/platform/outbox"
	"github.com/Apurer/go-commerce-api-server/internal/shared/events"
)

var (
	_ ordersports.Notifier  = (*Dispatcher)(nil)
	_ refundsports.Notifier = (*Dispatcher)(nil)
)

const dispatchTimeout = 5 * time.Second

// Dispatcher logs notices and, where the triggering transaction did not
// already record an event, writes one to the outbox. db may be nil; then
// notices are log-only.
type Dispatcher struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewDispatcher(db *gorm.DB, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{db: db, logger: logger}
}

// OrderConfirmed logs the confirmation notice. The order.confirmed event was
// already written inside the checkout transaction.
func (d *Dispatcher) OrderConfirmed(_ context.Context, order *ordersdomain.Order) {
	go d.notify("order confirmation sent",
		slog.String("order.id", order.ID),
		slog.String("user.id", order.UserID),
		slog.String("order.total", order.Total.String()),
	)
}

// OrderCancelled logs the cancellation notice. The order.cancelled event was
// already written inside the cancellation transaction.
func (d *Dispatcher) OrderCancelled(_ context.Context, order *ordersdomain.Order) {
	go d.notify("order cancellation sent",
		slog.String("order.id", order.ID),
		slog.String("user.id", order.UserID),
	)
}

// OrderStatusChanged logs the notice and records a shipped or delivered
// event for downstream consumers.
func (d *Dispatcher) OrderStatusChanged(_ context.Context, order *ordersdomain.Order) {
	orderID, userID := order.ID, order.UserID
	status := order.Status
	tracking := order.TrackingNumber
	go func() {
		d.notify("order status notice sent",
			slog.String("order.id", orderID),
			slog.String("user.id", userID),
			slog.String("order.status", string(status)),
		)
		var eventType string
		switch status {
		case ordersdomain.StatusShipped:
			eventType = events.EventOrderShipped
		case ordersdomain.StatusDelivered:
			eventType = events.EventOrderDelivered
		default:
			return
		}
		d.record(events.Event{
			OrderID: orderID,
			UserID:  userID,
			Type:    eventType,
			Payload: map[string]any{"tracking_number": tracking},
		})
	}()
}

// RefundProcessed logs the notice and records the refund.processed event.
func (d *Dispatcher) RefundProcessed(_ context.Context, request *refundsdomain.Request) {
	requestID, orderID, userID := request.ID, request.OrderID, request.UserID
	amount := request.Amount
	go func() {
		d.notify("refund processed notice sent",
			slog.String("refund.id", requestID),
			slog.String("order.id", orderID),
			slog.String("user.id", userID),
			slog.String("refund.amount", amount.String()),
		)
		d.record(events.Event{
			OrderID: orderID,
			UserID:  userID,
			Type:    events.EventRefundProcessed,
			Payload: map[string]any{"refund_id": requestID, "amount": amount.String()},
		})
	}()
}

func (d *Dispatcher) notify(msg string, attrs ...slog.Attr) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	d.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (d *Dispatcher) record(event events.Event) {
	if d.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if err := outbox.Insert(d.db.WithContext(ctx), event); err != nil {
		d.logger.LogAttrs(ctx, slog.LevelError, "failed to record event",
			slog.String("event.type", event.Type),
			slog.String("order.id", event.OrderID),
			slog.String("error", err.Error()),
		)
	}
}
