package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/Apurer/go-commerce-api-server/internal/domains/catalog/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/catalog/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory product persistence adapter.
type Repository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewRepository() *Repository {
	return &Repository{products: map[string]*domain.Product{}}
}

func (r *Repository) Save(_ context.Context, product *domain.Product) (*domain.Product, error) {
	if product == nil {
		return nil, errors.New("product is nil")
	}
	clone := *product
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if clone.SKU != "" {
		for id, existing := range r.products {
			if id != clone.ID && existing.SKU == clone.SKU {
				return nil, ports.ErrDuplicateSKU
			}
		}
	}
	r.products[clone.ID] = &clone
	copy := clone
	return &copy, nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	product, ok := r.products[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	clone := *product
	return &clone, nil
}

func (r *Repository) GetByIDs(_ context.Context, ids []string) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		if product, ok := r.products[id]; ok {
			clone := *product
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return ports.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *Repository) List(_ context.Context, filter ports.Filter) (*ports.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]*domain.Product, 0, len(r.products))
	for _, product := range r.products {
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		if filter.MinPrice != nil && product.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && product.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(product.Name), strings.ToLower(filter.Query)) {
			continue
		}
		clone := *product
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := int64(len(matched))
	start := (filter.Page - 1) * filter.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PageSize
	if filter.PageSize <= 0 || end > len(matched) {
		end = len(matched)
	}
	return &ports.Page{Items: matched[start:end], Total: total}, nil
}

// AdjustStock mirrors the conditional SQL decrement: the check and the
// write happen under one lock acquisition.
func (r *Repository) AdjustStock(_ context.Context, id string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[id]
	if !ok {
		return ports.ErrNotFound
	}
	if product.Stock+delta < 0 {
		return ports.ErrInsufficientStock
	}
	product.Stock += delta
	return nil
}
