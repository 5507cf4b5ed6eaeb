package memory

import (
	"context"
	"sync"

	"github.com/Apurer/go-commerce-api-server/internal/domains/cart/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/cart/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory cart persistence adapter.
type Repository struct {
	mu    sync.RWMutex
	carts map[string][]domain.Line
}

func NewRepository() *Repository {
	return &Repository{carts: map[string][]domain.Line{}}
}

func (r *Repository) Lines(_ context.Context, userID string) ([]domain.Line, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Line(nil), r.carts[userID]...), nil
}

func (r *Repository) Upsert(_ context.Context, userID string, line domain.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.carts[userID]
	for i := range lines {
		if lines[i].ProductID == line.ProductID {
			lines[i].Quantity += line.Quantity
			return nil
		}
	}
	r.carts[userID] = append(lines, line)
	return nil
}

func (r *Repository) SetQuantity(_ context.Context, userID, productID string, quantity int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.carts[userID]
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = quantity
			return nil
		}
	}
	return ports.ErrLineNotFound
}

func (r *Repository) Remove(_ context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.carts[userID]
	for i := range lines {
		if lines[i].ProductID == productID {
			r.carts[userID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return ports.ErrLineNotFound
}

func (r *Repository) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}
