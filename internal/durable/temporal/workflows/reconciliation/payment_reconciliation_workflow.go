package reconciliation

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	ordersports "github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
	reconactivities "github.com/Apurer/go-commerce-api-server/internal/platform/temporal/activities/reconciliation"
)

const (
	// PaymentReconciliationWorkflowName is the public identifier for registering the workflow.
	PaymentReconciliationWorkflowName = "payments.workflows.Reconciliation"
	// PaymentReconciliationTaskQueue is the queue consumed by the reconciliation worker.
	PaymentReconciliationTaskQueue = "PAYMENT_RECONCILIATION"

	// DefaultLookback bounds how far back the ledger sweep reaches.
	DefaultLookback = 24 * time.Hour
)

// PaymentReconciliationWorkflowInput parameterizes one sweep.
type PaymentReconciliationWorkflowInput struct {
	Lookback time.Duration
	TraceID  string
}

// PaymentReconciliationWorkflowResult summarizes a completed sweep.
type PaymentReconciliationWorkflowResult struct {
	Checked int
	Orphans int
}

// PaymentReconciliationWorkflow sweeps the gateway ledger and flags charges
// that have no matching order record.
func PaymentReconciliationWorkflow(ctx workflow.Context, input PaymentReconciliationWorkflowInput) (*PaymentReconciliationWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	lookback := input.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	since := workflow.Now(ctx).Add(-lookback)
	logger.Info("PaymentReconciliationWorkflow started", withTraceID(input.TraceID, "since", since)...)

	options := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, options)

	var transactions []ordersports.Transaction
	if err := workflow.ExecuteActivity(ctx, reconactivities.ListGatewayTransactionsActivityName, since).Get(ctx, &transactions); err != nil {
		logger.Error("PaymentReconciliationWorkflow failed listing transactions", withTraceID(input.TraceID, "error", err)...)
		return nil, err
	}

	var orphans int
	if err := workflow.ExecuteActivity(ctx, reconactivities.FlagOrphanChargesActivityName, transactions).Get(ctx, &orphans); err != nil {
		logger.Error("PaymentReconciliationWorkflow failed flagging orphans", withTraceID(input.TraceID, "error", err)...)
		return nil, err
	}

	logger.Info("PaymentReconciliationWorkflow completed", withTraceID(input.TraceID, "checked", len(transactions), "orphans", orphans)...)
	return &PaymentReconciliationWorkflowResult{Checked: len(transactions), Orphans: orphans}, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
