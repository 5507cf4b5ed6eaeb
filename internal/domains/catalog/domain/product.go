package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category enumerates the product taxonomy.
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryHome        Category = "home"
	CategoryOther       Category = "other"
)

var (
	ErrEmptyName       = errors.New("product name is required")
	ErrNameTooLong     = errors.New("product name cannot exceed 100 characters")
	ErrInvalidPrice    = errors.New("price must be greater than zero")
	ErrNegativeStock   = errors.New("stock cannot be negative")
	ErrInvalidCategory = errors.New("product category is invalid")
)

// Product models a catalog item. Stock never goes negative and price is
// always positive; both are enforced here and again at the persistence layer.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Stock    int64
	SKU      string
	Category Category
}

// NewProduct validates and constructs a product, minting an ID when absent.
func NewProduct(id, name string, price decimal.Decimal, stock int64, category Category) (*Product, error) {
	if id == "" {
		id = uuid.NewString()
	}
	product := &Product{ID: id, Stock: stock, Category: category}
	if err := product.Rename(name); err != nil {
		return nil, err
	}
	if err := product.ChangePrice(price); err != nil {
		return nil, err
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}
	return product, nil
}

// Validate enforces invariants on the aggregate.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Name) > 100 {
		return ErrNameTooLong
	}
	if !p.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	if !isValidCategory(p.Category) {
		return ErrInvalidCategory
	}
	return nil
}

// Rename trims and validates the display name.
func (p *Product) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return ErrNameTooLong
	}
	p.Name = name
	return nil
}

// ChangePrice rejects non-positive prices and rounds to two places.
func (p *Product) ChangePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	p.Price = price.Round(2)
	return nil
}

// SetStock replaces the stock level.
func (p *Product) SetStock(stock int64) error {
	if stock < 0 {
		return ErrNegativeStock
	}
	p.Stock = stock
	return nil
}

// UpdateCategory validates and applies the taxonomy bucket.
func (p *Product) UpdateCategory(category Category) error {
	if !isValidCategory(category) {
		return ErrInvalidCategory
	}
	p.Category = category
	return nil
}

// InStock reports whether any units remain.
func (p *Product) InStock() bool {
	return p.Stock > 0
}

func isValidCategory(category Category) bool {
	switch category {
	case CategoryElectronics, CategoryClothing, CategoryHome, CategoryOther:
		return true
	default:
		return false
	}
}
