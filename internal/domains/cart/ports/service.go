package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// SnapshotItem is a cart line joined with its product's current name and
// price. Lines whose product no longer exists are dropped from the snapshot.
type SnapshotItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int64
	Subtotal  decimal.Decimal
}

// Snapshot is the priced view of a user's cart at read time.
type Snapshot struct {
	Items []SnapshotItem
	Total decimal.Decimal
}

// Service exposes cart use cases.
type Service interface {
	AddItem(ctx context.Context, userID, productID string, quantity int64) error
	Get(ctx context.Context, userID string) (Snapshot, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int64) error
	RemoveItem(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}
