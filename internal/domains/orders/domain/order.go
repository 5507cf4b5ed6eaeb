package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Apurer/go-commerce-api-server/internal/shared/money"
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus tracks the gateway side of an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// RefundStatus tracks how much of an order has been refunded.
type RefundStatus string

const (
	RefundNone      RefundStatus = "none"
	RefundRequested RefundStatus = "requested"
	RefundPartial   RefundStatus = "partial"
	RefundFull      RefundStatus = "full"
)

var (
	ErrEmptyOrder        = errors.New("order has no lines")
	ErrInvalidTotal      = errors.New("order total must be greater than zero")
	ErrInvalidStatus     = errors.New("order status is invalid")
	ErrInvalidTransition = errors.New("order status transition not allowed")
	ErrNotCancellable    = errors.New("order can no longer be cancelled")
	ErrMissingAddress    = errors.New("shipping address is incomplete")
)

// Address is the shipping destination captured at checkout.
type Address struct {
	Street     string
	City       string
	PostalCode string
	Country    string
}

// Validate requires every address field.
func (a Address) Validate() error {
	if a.Street == "" || a.City == "" || a.PostalCode == "" || a.Country == "" {
		return ErrMissingAddress
	}
	return nil
}

// Line is one purchased item. PriceAtPurchase freezes the unit price so later
// catalog edits never change historical totals.
type Line struct {
	ProductID       string
	Name            string
	PriceAtPurchase decimal.Decimal
	Quantity        int64
}

// Subtotal is the extended line amount.
func (l Line) Subtotal() decimal.Decimal {
	return money.Extend(l.PriceAtPurchase, l.Quantity)
}

// Order is the purchase aggregate. Total and line prices are immutable after
// creation; only the status fields advance.
type Order struct {
	ID              string
	UserID          string
	Lines           []Line
	Total           decimal.Decimal
	Status          Status
	PaymentStatus   PaymentStatus
	RefundStatus    RefundStatus
	ShippingAddress Address
	PaymentIntentID string
	TrackingNumber  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder builds a pending order from priced lines, freezing the total.
func NewOrder(userID string, lines []Line, address Address) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	if err := address.Validate(); err != nil {
		return nil, err
	}
	subtotals := make([]decimal.Decimal, 0, len(lines))
	for _, line := range lines {
		subtotals = append(subtotals, line.Subtotal())
	}
	total := money.Sum(subtotals...)
	if !total.IsPositive() {
		return nil, ErrInvalidTotal
	}
	now := time.Now().UTC()
	return &Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Lines:           lines,
		Total:           total,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		RefundStatus:    RefundNone,
		ShippingAddress: address,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// transitions is the fulfillment state machine. Delivered and cancelled are
// terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// ValidStatus reports whether s names a known fulfillment state.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from may advance to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition advances the fulfillment status, rejecting illegal moves.
func (o *Order) Transition(to Status) error {
	if !ValidStatus(to) {
		return ErrInvalidStatus
	}
	if !CanTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// CanCancel reports whether the order is still cancellable.
func (o *Order) CanCancel() bool {
	return o.Status == StatusPending || o.Status == StatusProcessing
}

// Cancel moves the order to cancelled; shipped and later states refuse.
func (o *Order) Cancel() error {
	if !o.CanCancel() {
		return ErrNotCancellable
	}
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkPaid records the gateway intent backing this order and moves it into
// fulfillment: a captured payment means the order is processing, not pending.
func (o *Order) MarkPaid(intentID string) {
	o.PaymentIntentID = intentID
	o.PaymentStatus = PaymentCompleted
	o.Status = StatusProcessing
	o.UpdatedAt = time.Now().UTC()
}

// ApplyRefund records how much of the order was returned to the customer.
func (o *Order) ApplyRefund(amount decimal.Decimal) {
	if amount.GreaterThanOrEqual(o.Total) {
		o.RefundStatus = RefundFull
		o.PaymentStatus = PaymentRefunded
	} else {
		o.RefundStatus = RefundPartial
	}
	o.UpdatedAt = time.Now().UTC()
}
