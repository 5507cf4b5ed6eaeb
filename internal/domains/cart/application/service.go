package application

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	catalogports "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/ports"
	"github.com/Apurer/go-commerce-api-server/internal/domains/cart/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/cart/ports"
	"github.com/Apurer/go-commerce-api-server/internal/shared/money"
)

var _ ports.Service = (*Service)(nil)

// Service exposes cart use cases. Product references are weak: a line may
// outlive its product, in which case snapshot reads drop it.
type Service struct {
	repo     ports.Repository
	products catalogports.Repository
}

func NewService(repo ports.Repository, products catalogports.Repository) *Service {
	return &Service{repo: repo, products: products}
}

// AddItem inserts the line or increments an existing one. The product must
// exist at add time; stock is not reserved until checkout.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int64) error {
	line, err := domain.NewLine(productID, quantity)
	if err != nil {
		return err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, catalogports.ErrNotFound) {
			return catalogports.ErrNotFound
		}
		return err
	}
	return s.repo.Upsert(ctx, userID, line)
}

// Get returns the priced cart view. Lines referencing deleted products are
// filtered out of the snapshot but left in storage.
func (s *Service) Get(ctx context.Context, userID string) (ports.Snapshot, error) {
	lines, err := s.repo.Lines(ctx, userID)
	if err != nil {
		return ports.Snapshot{}, err
	}
	snapshot := ports.Snapshot{Items: []ports.SnapshotItem{}, Total: decimal.Zero}
	if len(lines) == 0 {
		return snapshot, nil
	}
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return ports.Snapshot{}, err
	}
	byID := make(map[string]int, len(products))
	for i, product := range products {
		byID[product.ID] = i
	}
	for _, line := range lines {
		i, ok := byID[line.ProductID]
		if !ok {
			continue
		}
		product := products[i]
		item := ports.SnapshotItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
			Subtotal:  money.Extend(product.Price, line.Quantity),
		}
		snapshot.Items = append(snapshot.Items, item)
		snapshot.Total = snapshot.Total.Add(item.Subtotal)
	}
	snapshot.Total = money.Round(snapshot.Total)
	return snapshot, nil
}

// UpdateQuantity replaces a line's quantity; absent lines are not created.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int64) error {
	if quantity < 1 {
		return domain.ErrInvalidQuantity
	}
	return s.repo.SetQuantity(ctx, userID, productID, quantity)
}

// RemoveItem drops a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	return s.repo.Remove(ctx, userID, productID)
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.repo.Clear(ctx, userID)
}
