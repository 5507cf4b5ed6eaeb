package application

import (
	"context"
	"errors"

	"github.com/Apurer/go-commerce-api-server/internal/domains/catalog/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/catalog/ports"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Service orchestrates the catalog bounded context use cases.
type Service struct {
	repo ports.Repository
}

// NewService wires the catalog service with its dependencies.
func NewService(repo ports.Repository) *Service {
	return &Service{repo: repo}
}

// CreateProduct persists a new product aggregate.
func (s *Service) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if product == nil {
		return nil, errors.New("product is nil")
	}
	if err := product.Validate(); err != nil {
		return nil, mapError(err)
	}
	saved, err := s.repo.Save(ctx, product)
	if err != nil {
		return nil, mapError(err)
	}
	return saved, nil
}

// UpdateProduct overrides an existing product with new state.
func (s *Service) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if product == nil {
		return nil, errors.New("product is nil")
	}
	if _, err := s.repo.GetByID(ctx, product.ID); err != nil {
		return nil, err
	}
	if err := product.Validate(); err != nil {
		return nil, mapError(err)
	}
	saved, err := s.repo.Save(ctx, product)
	if err != nil {
		return nil, mapError(err)
	}
	return saved, nil
}

// GetProduct loads a single product.
func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// DeleteProduct removes a product. Historical orders keep their weak
// references; carts drop dead lines lazily.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// ListProducts searches the catalog with filters and pagination.
func (s *Service) ListProducts(ctx context.Context, filter ports.Filter) (*ports.Page, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	return s.repo.List(ctx, filter)
}

var _ ports.Service = (*Service)(nil)
