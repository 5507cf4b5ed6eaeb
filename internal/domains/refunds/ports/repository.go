package ports

import (
	"context"
	"errors"

	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/domain"
)

var (
	ErrNotFound = errors.New("refund request not found")
	// ErrOpenRequestExists blocks a second request while one is pending or
	// approved for the same order.
	ErrOpenRequestExists = errors.New("an open refund request already exists for this order")
)

// Repository persists refund requests.
type Repository interface {
	Save(ctx context.Context, request *domain.Request) (*domain.Request, error)
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	ListByOrder(ctx context.Context, orderID string) ([]*domain.Request, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Request, error)
	// HasOpenRequest reports whether a pending or approved request exists
	// for the order.
	HasOpenRequest(ctx context.Context, orderID string) (bool, error)
}
