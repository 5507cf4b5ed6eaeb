package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
)

var _ ports.PaymentGateway = (*Gateway)(nil)

// Gateway is an in-process payment gateway for tests and DSN-less boot.
// Failures can be scripted per call.
type Gateway struct {
	mu           sync.Mutex
	transactions []ports.Transaction
	// FailCharges makes the next charges fail until the counter drains.
	failCharges int
	failRefunds int
}

func NewGateway() *Gateway {
	return &Gateway{}
}

// FailNextCharges scripts n consecutive charge declines.
func (g *Gateway) FailNextCharges(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failCharges = n
}

// FailNextRefunds scripts n consecutive refund failures.
func (g *Gateway) FailNextRefunds(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failRefunds = n
}

func (g *Gateway) Charge(ctx context.Context, amount decimal.Decimal, description string) (ports.Intent, error) {
	if err := ctx.Err(); err != nil {
		return ports.Intent{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCharges > 0 {
		g.failCharges--
		return ports.Intent{}, fmt.Errorf("%w: card declined", ports.ErrPaymentDeclined)
	}
	intent := ports.Intent{
		ID:     "pi_" + uuid.NewString(),
		Status: "succeeded",
		Amount: amount,
	}
	g.transactions = append(g.transactions, ports.Transaction{
		IntentID:  intent.ID,
		Amount:    amount,
		Status:    "succeeded",
		CreatedAt: time.Now().UTC(),
	})
	return intent, nil
}

func (g *Gateway) Refund(ctx context.Context, intentID string, amount decimal.Decimal) (ports.RefundReceipt, error) {
	if err := ctx.Err(); err != nil {
		return ports.RefundReceipt{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failRefunds > 0 {
		g.failRefunds--
		return ports.RefundReceipt{}, fmt.Errorf("refund rejected by gateway")
	}
	receipt := ports.RefundReceipt{
		ID:     "re_" + uuid.NewString(),
		Status: "succeeded",
		Amount: amount,
	}
	g.transactions = append(g.transactions, ports.Transaction{
		IntentID:  intentID,
		Amount:    amount.Neg(),
		Status:    "refunded",
		CreatedAt: time.Now().UTC(),
	})
	return receipt, nil
}

func (g *Gateway) ListTransactions(_ context.Context, since time.Time) ([]ports.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	listed := make([]ports.Transaction, 0, len(g.transactions))
	for _, tx := range g.transactions {
		if tx.CreatedAt.Before(since) {
			continue
		}
		listed = append(listed, tx)
	}
	return listed, nil
}
