package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Apurer/go-commerce-api-server/internal/shared/money"
)

// Status is the refund request lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusProcessed Status = "processed"
)

var (
	ErrInvalidAmount   = errors.New("refund amount must be greater than zero")
	ErrAmountTooLarge  = errors.New("refund amount exceeds order total")
	ErrReasonTooLong   = errors.New("refund reason cannot exceed 500 characters")
	ErrAlreadyDecided  = errors.New("refund request already decided")
	ErrInvalidDecision = errors.New("refund decision must be approved or rejected")
)

// Request is a customer's ask to return money for an order.
type Request struct {
	ID          string
	OrderID     string
	UserID      string
	Amount      decimal.Decimal
	Reason      string
	Status      Status
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewRequest validates and constructs a pending refund request. A zero
// amount defaults to the full order total.
func NewRequest(orderID, userID string, amount, orderTotal decimal.Decimal, reason string) (*Request, error) {
	if amount.IsZero() {
		amount = orderTotal
	}
	amount = money.Round(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if amount.GreaterThan(orderTotal) {
		return nil, ErrAmountTooLarge
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > 500 {
		return nil, ErrReasonTooLong
	}
	now := time.Now().UTC()
	return &Request{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Open reports whether the request still blocks new refund requests for the
// same order.
func (r *Request) Open() bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

// Approve moves a pending request to approved.
func (r *Request) Approve() error {
	if r.Status != StatusPending {
		return ErrAlreadyDecided
	}
	r.Status = StatusApproved
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Reject closes a pending request without moving money.
func (r *Request) Reject() error {
	if r.Status != StatusPending {
		return ErrAlreadyDecided
	}
	r.Status = StatusRejected
	now := time.Now().UTC()
	r.ProcessedAt = &now
	r.UpdatedAt = now
	return nil
}

// MarkProcessed stamps a successfully refunded request.
func (r *Request) MarkProcessed() {
	now := time.Now().UTC()
	r.Status = StatusProcessed
	r.ProcessedAt = &now
	r.UpdatedAt = now
}
