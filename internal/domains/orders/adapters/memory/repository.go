package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	cartports "github.com/Apurer/go-commerce-api-server/internal/domains/cart/ports"
	catalogports "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/ports"
	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

type idempotencyEntry struct {
	userID      string
	requestHash string
	orderID     string
}

// Repository is an in-memory order store. Stock and cart effects go through
// the catalog and cart repositories; decrements are compensated on abort to
// mimic transactional rollback.
type Repository struct {
	mu       sync.RWMutex
	orders   map[string]*domain.Order
	idemKeys map[string]idempotencyEntry
	products catalogports.Repository
	carts    cartports.Repository
	refunded decimal.Decimal
}

func NewRepository(products catalogports.Repository, carts cartports.Repository) *Repository {
	return &Repository{
		orders:   map[string]*domain.Order{},
		idemKeys: map[string]idempotencyEntry{},
		products: products,
		carts:    carts,
		refunded: decimal.Zero,
	}
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, idempotencyKey, requestHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idempotencyKey != "" {
		if _, exists := r.idemKeys[idempotencyKey]; exists {
			return ports.ErrIdempotencyConflict
		}
	}
	decremented := make([]domain.Line, 0, len(order.Lines))
	for _, line := range order.Lines {
		if err := r.products.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			r.restock(ctx, decremented)
			if errors.Is(err, catalogports.ErrInsufficientStock) || errors.Is(err, catalogports.ErrNotFound) {
				return &ports.InsufficientStockError{ProductID: line.ProductID}
			}
			return err
		}
		decremented = append(decremented, line)
	}
	if err := r.carts.Clear(ctx, order.UserID); err != nil {
		r.restock(ctx, decremented)
		return err
	}
	r.orders[order.ID] = cloneOrder(order)
	if idempotencyKey != "" {
		r.idemKeys[idempotencyKey] = idempotencyEntry{
			userID:      order.UserID,
			requestHash: requestHash,
			orderID:     order.ID,
		}
	}
	return nil
}

func (r *Repository) FindByIdempotencyKey(_ context.Context, userID, key string) (*domain.Order, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.idemKeys[key]
	if !ok || entry.userID != userID {
		return nil, "", ports.ErrNotFound
	}
	order, ok := r.orders[entry.orderID]
	if !ok {
		return nil, "", ports.ErrNotFound
	}
	return cloneOrder(order), entry.requestHash, nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r *Repository) ListByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*domain.Order, 0)
	for _, order := range r.orders {
		if order.UserID == userID {
			list = append(list, cloneOrder(order))
		}
	}
	sortNewestFirst(list)
	return list, nil
}

func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*domain.Order, 0)
	for _, order := range r.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		list = append(list, cloneOrder(order))
	}
	sortNewestFirst(list)
	return list, nil
}

func (r *Repository) SetStatus(_ context.Context, id string, from, to domain.Status, trackingNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}
	if order.Status != from {
		return domain.ErrInvalidTransition
	}
	order.Status = to
	if trackingNumber != "" {
		order.TrackingNumber = trackingNumber
	}
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) CancelOrder(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if stored.Status != domain.StatusPending && stored.Status != domain.StatusProcessing {
		return domain.ErrNotCancellable
	}
	stored.Status = domain.StatusCancelled
	stored.UpdatedAt = time.Now().UTC()
	r.restock(ctx, stored.Lines)
	return nil
}

func (r *Repository) SetRefundStatus(_ context.Context, id string, refund domain.RefundStatus, payment domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}
	order.RefundStatus = refund
	if payment != "" {
		order.PaymentStatus = payment
	}
	order.UpdatedAt = time.Now().UTC()
	if refund == domain.RefundFull {
		r.refunded = r.refunded.Add(order.Total)
	}
	return nil
}

func (r *Repository) SetPaymentStatusByIntent(_ context.Context, intentID string, status domain.PaymentStatus) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.PaymentIntentID == intentID {
			order.PaymentStatus = status
			order.UpdatedAt = time.Now().UTC()
			return cloneOrder(order), nil
		}
	}
	return nil, ports.ErrNotFound
}

func (r *Repository) ExistsByPaymentIntent(_ context.Context, intentID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, order := range r.orders {
		if order.PaymentIntentID == intentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) SalesSummary(_ context.Context) (*ports.SalesSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	summary := &ports.SalesSummary{
		OrdersByStatus: map[domain.Status]int64{},
		GrossRevenue:   decimal.Zero,
		RefundedAmount: r.refunded,
	}
	for _, order := range r.orders {
		summary.OrdersByStatus[order.Status]++
		if order.Status != domain.StatusCancelled {
			summary.GrossRevenue = summary.GrossRevenue.Add(order.Total)
		}
	}
	return summary, nil
}

// restock best-effort returns quantities; products deleted since purchase
// are skipped.
func (r *Repository) restock(ctx context.Context, lines []domain.Line) {
	for _, line := range lines {
		_ = r.products.AdjustStock(ctx, line.ProductID, line.Quantity)
	}
}

func sortNewestFirst(list []*domain.Order) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func cloneOrder(order *domain.Order) *domain.Order {
	clone := *order
	clone.Lines = append([]domain.Line(nil), order.Lines...)
	return &clone
}
