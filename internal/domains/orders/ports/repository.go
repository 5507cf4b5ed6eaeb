package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/domain"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrInsufficientStock signals a conditional stock decrement lost the race.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrTxConflict marks a retryable transaction conflict (serialization
	// failure or deadlock); callers may re-run the unit of work.
	ErrTxConflict = errors.New("transaction conflict")
	// ErrIdempotencyConflict marks an idempotency key reused with a different
	// request payload.
	ErrIdempotencyConflict = errors.New("idempotency key already used with a different request")
)

// InsufficientStockError carries the product that blocked checkout so the
// transport layer can name it. It matches ErrInsufficientStock under errors.Is.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ListFilter narrows admin order listings.
type ListFilter struct {
	Status domain.Status
	UserID string
}

// SalesSummary aggregates order counts and revenue for the admin dashboard.
type SalesSummary struct {
	OrdersByStatus map[domain.Status]int64
	GrossRevenue   decimal.Decimal
	RefundedAmount decimal.Decimal
}

// Repository persists orders. CreateOrder and CancelOrder are multi-table
// units of work: the postgres adapter runs each inside one transaction.
type Repository interface {
	// CreateOrder atomically decrements stock for every line, inserts the
	// order, clears the buyer's cart, records the confirmation event, and
	// stores the idempotency key. A line whose decrement matches no row with
	// enough stock aborts the whole unit with an InsufficientStockError
	// naming that product.
	CreateOrder(ctx context.Context, order *domain.Order, idempotencyKey, requestHash string) error
	// FindByIdempotencyKey returns a previously stored order for the key
	// along with the request hash it was stored under.
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, string, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]*domain.Order, error)
	// SetStatus advances fulfillment state conditionally on the current
	// state; a missed condition surfaces domain.ErrInvalidTransition.
	SetStatus(ctx context.Context, id string, from, to domain.Status, trackingNumber string) error
	// CancelOrder atomically cancels the order and restocks its lines,
	// skipping products that no longer exist.
	CancelOrder(ctx context.Context, order *domain.Order) error
	SetRefundStatus(ctx context.Context, id string, refund domain.RefundStatus, payment domain.PaymentStatus) error
	// SetPaymentStatusByIntent applies an asynchronous gateway update.
	SetPaymentStatusByIntent(ctx context.Context, intentID string, status domain.PaymentStatus) (*domain.Order, error)
	// ExistsByPaymentIntent reports whether any order references the intent.
	ExistsByPaymentIntent(ctx context.Context, intentID string) (bool, error)
	SalesSummary(ctx context.Context) (*SalesSummary, error)
}
