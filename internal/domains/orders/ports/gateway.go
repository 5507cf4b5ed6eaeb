package ports

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrPaymentDeclined is returned when the gateway refuses a charge.
var ErrPaymentDeclined = errors.New("payment declined")

// Intent is the gateway's record of an authorized charge.
type Intent struct {
	ID     string
	Status string
	Amount decimal.Decimal
}

// RefundReceipt is the gateway's acknowledgement of a refund.
type RefundReceipt struct {
	ID     string
	Status string
	Amount decimal.Decimal
}

// Transaction is one gateway ledger entry, consumed by reconciliation.
type Transaction struct {
	IntentID  string
	Amount    decimal.Decimal
	Status    string
	CreatedAt time.Time
}

// PaymentGateway is the payment provider boundary. Charge must observe the
// context deadline; a timed-out charge is treated as failed.
type PaymentGateway interface {
	Charge(ctx context.Context, amount decimal.Decimal, description string) (Intent, error)
	Refund(ctx context.Context, intentID string, amount decimal.Decimal) (RefundReceipt, error)
	ListTransactions(ctx context.Context, since time.Time) ([]Transaction, error)
}
