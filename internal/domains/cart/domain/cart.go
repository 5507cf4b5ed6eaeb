package domain

import "errors"

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Line is one (product, quantity) pairing owned by a user. The product is a
// weak reference: deleting a product leaves the line to be filtered lazily.
type Line struct {
	ProductID string
	Quantity  int64
}

// NewLine validates and constructs a cart line.
func NewLine(productID string, quantity int64) (Line, error) {
	if quantity < 1 {
		return Line{}, ErrInvalidQuantity
	}
	return Line{ProductID: productID, Quantity: quantity}, nil
}
