package ports

import (
	"context"

	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/domain"
)

// CheckoutInput carries everything the checkout orchestrator needs. The
// idempotency key is optional; when present, replays return the stored order.
type CheckoutInput struct {
	UserID          string
	ShippingAddress domain.Address
	IdempotencyKey  string
}

// Notifier receives best-effort order notices; implementations must never
// block or fail the calling use case.
type Notifier interface {
	OrderConfirmed(ctx context.Context, order *domain.Order)
	OrderCancelled(ctx context.Context, order *domain.Order)
	OrderStatusChanged(ctx context.Context, order *domain.Order)
}

// Service exposes order use cases.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*domain.Order, error)
	GetOrder(ctx context.Context, requesterID string, admin bool, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*domain.Order, error)
	ListAllOrders(ctx context.Context, filter ListFilter) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, to domain.Status, trackingNumber string) (*domain.Order, error)
	CancelOrder(ctx context.Context, requesterID string, admin bool, orderID string) (*domain.Order, error)
	ApplyPaymentUpdate(ctx context.Context, intentID string, succeeded bool) (*domain.Order, error)
	SalesSummary(ctx context.Context) (*SalesSummary, error)
}
