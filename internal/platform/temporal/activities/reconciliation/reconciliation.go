package reconciliation

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.temporal.io/sdk/activity"

	ordersports "github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
)

const (
	// ListGatewayTransactionsActivityName pulls the provider ledger.
	ListGatewayTransactionsActivityName = "payments.activities.ListGatewayTransactions"
	// FlagOrphanChargesActivityName reports charges with no matching order.
	FlagOrphanChargesActivityName = "payments.activities.FlagOrphanCharges"
)

// Activities closes the charge-without-order gap: a payment can succeed
// while the order transaction is lost, so the worker sweeps the gateway
// ledger and flags intents no order references.
type Activities struct {
	gateway ordersports.PaymentGateway
	orders  ordersports.Repository
	gaps    prometheus.Counter
}

// NewActivities wires the reconciliation collaborators. gaps may be nil.
func NewActivities(gateway ordersports.PaymentGateway, orders ordersports.Repository, gaps prometheus.Counter) *Activities {
	return &Activities{gateway: gateway, orders: orders, gaps: gaps}
}

// ListGatewayTransactions lists provider ledger entries from since onward.
func (a *Activities) ListGatewayTransactions(ctx context.Context, since time.Time) ([]ordersports.Transaction, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.gateway == nil {
		logger.Error("reconciliation activity not initialized")
		return nil, errors.New("reconciliation activity not initialized")
	}
	logger.Info("ListGatewayTransactions activity started", "since", since)
	transactions, err := a.gateway.ListTransactions(ctx, since)
	if err != nil {
		logger.Error("ListGatewayTransactions activity failed", "error", err)
		return nil, err
	}
	logger.Info("ListGatewayTransactions activity completed", "count", len(transactions))
	return transactions, nil
}

// FlagOrphanCharges checks each successful charge for a matching order and
// returns how many were orphaned. Orphans are logged for manual review and
// counted on the reconciliation gap metric.
func (a *Activities) FlagOrphanCharges(ctx context.Context, transactions []ordersports.Transaction) (int, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.orders == nil {
		logger.Error("reconciliation activity not initialized")
		return 0, errors.New("reconciliation activity not initialized")
	}
	orphans := 0
	for _, tx := range transactions {
		if tx.Status != "succeeded" {
			continue
		}
		exists, err := a.orders.ExistsByPaymentIntent(ctx, tx.IntentID)
		if err != nil {
			logger.Error("FlagOrphanCharges lookup failed", "intentId", tx.IntentID, "error", err)
			return orphans, err
		}
		if exists {
			continue
		}
		orphans++
		if a.gaps != nil {
			a.gaps.Inc()
		}
		logger.Warn("charge without matching order, flagging for manual review",
			"intentId", tx.IntentID,
			"amount", tx.Amount.String(),
			"chargedAt", tx.CreatedAt,
		)
	}
	logger.Info("FlagOrphanCharges activity completed", "checked", len(transactions), "orphans", orphans)
	return orphans, nil
}
