package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/domain"
)

// RequestInput carries a customer's refund ask. A zero amount means the full
// order total.
type RequestInput struct {
	OrderID string
	UserID  string
	Amount  decimal.Decimal
	Reason  string
}

// Decision is an admin's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approved"
	DecisionReject  Decision = "rejected"
)

// Notifier receives best-effort refund notices.
type Notifier interface {
	RefundProcessed(ctx context.Context, request *domain.Request)
}

// Service exposes refund use cases.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*domain.Request, error)
	// Process applies an admin decision: approval triggers the gateway
	// refund and marks the order, rejection just closes the request.
	Process(ctx context.Context, requestID string, decision Decision) (*domain.Request, error)
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	ListPending(ctx context.Context) ([]*domain.Request, error)
}
