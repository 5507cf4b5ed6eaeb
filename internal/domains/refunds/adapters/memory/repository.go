package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory refund request store.
type Repository struct {
	mu       sync.RWMutex
	requests map[string]*domain.Request
}

func NewRepository() *Repository {
	return &Repository{requests: map[string]*domain.Request{}}
}

func (r *Repository) Save(_ context.Context, request *domain.Request) (*domain.Request, error) {
	if request == nil {
		return nil, errors.New("refund request is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := cloneRequest(request)
	r.requests[clone.ID] = clone
	return cloneRequest(clone), nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	request, ok := r.requests[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneRequest(request), nil
}

func (r *Repository) ListByOrder(_ context.Context, orderID string) ([]*domain.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(request *domain.Request) bool {
		return request.OrderID == orderID
	}), nil
}

func (r *Repository) ListByStatus(_ context.Context, status domain.Status) ([]*domain.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(request *domain.Request) bool {
		return request.Status == status
	}), nil
}

func (r *Repository) HasOpenRequest(_ context.Context, orderID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, request := range r.requests {
		if request.OrderID == orderID && request.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) collect(match func(*domain.Request) bool) []*domain.Request {
	list := make([]*domain.Request, 0)
	for _, request := range r.requests {
		if match(request) {
			list = append(list, cloneRequest(request))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

func cloneRequest(request *domain.Request) *domain.Request {
	clone := *request
	if request.ProcessedAt != nil {
		processedAt := *request.ProcessedAt
		clone.ProcessedAt = &processedAt
	}
	return &clone
}
