package ports

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Apurer/go-commerce-api-server/internal/domains/catalog/domain"
)

var (
	ErrNotFound     = errors.New("product not found")
	ErrDuplicateSKU = errors.New("sku already exists")
)

// Filter narrows and pages product listings.
type Filter struct {
	Category Category
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Query    string
	Page     int
	PageSize int
}

// Category is a raw filter value; empty means all categories.
type Category = domain.Category

// Page is a listing slice plus the unpaged total.
type Page struct {
	Items []*domain.Product
	Total int64
}

// Repository persists products.
type Repository interface {
	Save(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Product, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter) (*Page, error)
	// AdjustStock applies a delta, failing with ErrInsufficientStock when the
	// decrement would drive stock negative.
	AdjustStock(ctx context.Context, id string, delta int64) error
}

// ErrInsufficientStock signals a conditional decrement found too little stock.
var ErrInsufficientStock = errors.New("insufficient stock")
