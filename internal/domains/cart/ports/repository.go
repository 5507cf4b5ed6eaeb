package ports

import (
	"context"
	"errors"

	"github.com/Apurer/go-commerce-api-server/internal/domains/cart/domain"
)

var ErrLineNotFound = errors.New("cart line not found")

// Repository persists cart lines keyed by user.
type Repository interface {
	Lines(ctx context.Context, userID string) ([]domain.Line, error)
	// Upsert inserts the line or increments an existing one's quantity.
	Upsert(ctx context.Context, userID string, line domain.Line) error
	// SetQuantity replaces a line's quantity; ErrLineNotFound when absent.
	SetQuantity(ctx context.Context, userID, productID string, quantity int64) error
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}
