package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	ordersdomain "github.com/Apurer/go-commerce-api-server/internal/domains/orders/domain"
	ordersports "github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
	refundsmemory "github.com/Apurer/go-commerce-api-server/internal/domains/refunds/adapters/memory"
	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/ports"
)

type fakeOrdersRepo struct {
	ordersports.Repository
	orders map[string]*ordersdomain.Order
}

func newFakeOrdersRepo() *fakeOrdersRepo {
	return &fakeOrdersRepo{orders: map[string]*ordersdomain.Order{}}
}

func (f *fakeOrdersRepo) put(order *ordersdomain.Order) {
	clone := *order
	f.orders[order.ID] = &clone
}

func (f *fakeOrdersRepo) GetByID(_ context.Context, id string) (*ordersdomain.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, ordersports.ErrNotFound
	}
	clone := *order
	return &clone, nil
}

func (f *fakeOrdersRepo) SetRefundStatus(_ context.Context, id string, refund ordersdomain.RefundStatus, payment ordersdomain.PaymentStatus) error {
	order, ok := f.orders[id]
	if !ok {
		return ordersports.ErrNotFound
	}
	order.RefundStatus = refund
	if payment != "" {
		order.PaymentStatus = payment
	}
	return nil
}

type stubGateway struct {
	refunds      []decimal.Decimal
	lastIntentID string
	failNext     bool
}

func (g *stubGateway) Charge(_ context.Context, amount decimal.Decimal, _ string) (ordersports.Intent, error) {
	return ordersports.Intent{ID: "pi_stub", Status: "succeeded", Amount: amount}, nil
}

func (g *stubGateway) Refund(_ context.Context, intentID string, amount decimal.Decimal) (ordersports.RefundReceipt, error) {
	if g.failNext {
		g.failNext = false
		return ordersports.RefundReceipt{}, errors.New("gateway unavailable")
	}
	g.lastIntentID = intentID
	g.refunds = append(g.refunds, amount)
	return ordersports.RefundReceipt{ID: "re_stub", Status: "succeeded", Amount: amount}, nil
}

func (g *stubGateway) ListTransactions(_ context.Context, _ time.Time) ([]ordersports.Transaction, error) {
	return nil, nil
}

type refundFixture struct {
	service *Service
	orders  *fakeOrdersRepo
	gateway *stubGateway
}

func newRefundFixture(t *testing.T) *refundFixture {
	t.Helper()
	orders := newFakeOrdersRepo()
	gateway := &stubGateway{}
	service := NewService(refundsmemory.NewRepository(), orders, gateway)
	return &refundFixture{service: service, orders: orders, gateway: gateway}
}

func (f *refundFixture) seedPaidOrder(t *testing.T, userID, total string) *ordersdomain.Order {
	t.Helper()
	order, err := ordersdomain.NewOrder(userID, []ordersdomain.Line{{
		ProductID:       "p1",
		Name:            "widget",
		PriceAtPurchase: decimal.RequireFromString(total),
		Quantity:        1,
	}}, ordersdomain.Address{Street: "1 Market St", City: "Springfield", PostalCode: "12345", Country: "US"})
	require.NoError(t, err)
	order.MarkPaid("pi_" + order.ID)
	f.orders.put(order)
	return order
}

func TestRequest_DefaultsToFullTotal(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()
	order := f.seedPaidOrder(t, "user-1", "100.00")

	request, err := f.service.Request(ctx, ports.RequestInput{OrderID: order.ID, UserID: "user-1", Reason: "damaged"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, request.Status)
	require.True(t, order.Total.Equal(request.Amount))

	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, ordersdomain.RefundRequested, stored.RefundStatus)
}

func TestRequest_OwnershipEnforced(t *testing.T) {
	f := newRefundFixture(t)
	order := f.seedPaidOrder(t, "user-1", "100.00")

	_, err := f.service.Request(context.Background(), ports.RequestInput{OrderID: order.ID, UserID: "user-2"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRequest_UnpaidOrderRejected(t *testing.T) {
	f := newRefundFixture(t)
	order, err := ordersdomain.NewOrder("user-1", []ordersdomain.Line{{
		ProductID:       "p1",
		Name:            "widget",
		PriceAtPurchase: decimal.RequireFromString("40.00"),
		Quantity:        1,
	}}, ordersdomain.Address{Street: "1 Market St", City: "Springfield", PostalCode: "12345", Country: "US"})
	require.NoError(t, err)
	f.orders.put(order)

	_, err = f.service.Request(context.Background(), ports.RequestInput{OrderID: order.ID, UserID: "user-1"})
	require.ErrorIs(t, err, ErrOrderNotRefundable)
}

func TestRequest_AmountGuards(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()
	order := f.seedPaidOrder(t, "user-1", "100.00")

	_, err := f.service.Request(ctx, ports.RequestInput{
		OrderID: order.ID,
		UserID:  "user-1",
		Amount:  decimal.RequireFromString("150.00"),
	})
	require.ErrorIs(t, err, domain.ErrAmountTooLarge)

	_, err = f.service.Request(ctx, ports.RequestInput{
		OrderID: order.ID,
		UserID:  "user-1",
		Amount:  decimal.RequireFromString("-5.00"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestRequest_OneOpenRequestPerOrder(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()
	order := f.seedPaidOrder(t, "user-1", "100.00")

	_, err := f.service.Request(ctx, ports.RequestInput{OrderID: order.ID, UserID: "user-1"})
	require.NoError(t, err)
	_, err = f.service.Request(ctx, ports.RequestInput{OrderID: order.ID, UserID: "user-1"})
	require.ErrorIs(t, err, ports.ErrOpenRequestExists)
}

func TestProcess_Reject(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()
	order := f.seedPaidOrder(t, "user-1", "100.00")
	request, err := f.service.Request(ctx, ports.RequestInput{OrderID: order.ID, UserID: "user-1"})
	require.NoError(t, err)

	rejected, err := f.service.Process(ctx, request.ID, ports.DecisionReject)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.ProcessedAt)
	require.Empty(t, f.gateway.refunds)

	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, ordersdomain.RefundNone, stored.RefundStatus)

	// A rejected request no longer blocks a new one.
	_, err = f.service.Request(ctx, ports.RequestInput{OrderID: order.ID, UserID: "user-1"})
	require.NoError(t, err)

	_, err = f.service.Process(ctx, request.ID, ports.DecisionReject)
	require.ErrorIs(t, err, domain.ErrAlreadyDecided)
}

func TestProcess_ApproveFullRefund(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()
	order := f.seedPaidOrder(t, "user-1", "100.00")
	request, err := f.service.Request(ctx, ports.RequestInput{OrderID: order.ID, UserID: "user-1"})
	require.NoError(t, err)

	processed, err := f.service.Process(ctx, request.ID, ports.DecisionApprove)
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessed, processed.Status)
	require.NotNil(t, processed.ProcessedAt)
	require.Len(t, f.gateway.refunds, 1)
	require.True(t, order.Total.Equal(f.gateway.refunds[0]))
	require.Equal(t, order.PaymentIntentID, f.gateway.lastIntentID)

	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, ordersdomain.RefundFull, stored.RefundStatus)
	require.Equal(t, ordersdomain.PaymentRefunded, stored.PaymentStatus)
}

func TestProcess_ApprovePartialRefund(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()
	order := f.seedPaidOrder(t, "user-1", "100.00")
	request, err := f.service.Request(ctx, ports.RequestInput{
		OrderID: order.ID,
		UserID:  "user-1",
		Amount:  decimal.RequireFromString("25.00"),
	})
	require.NoError(t, err)

	processed, err := f.service.Process(ctx, request.ID, ports.DecisionApprove)
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessed, processed.Status)

	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, ordersdomain.RefundPartial, stored.RefundStatus)
	require.Equal(t, ordersdomain.PaymentCompleted, stored.PaymentStatus)
}

func TestProcess_GatewayFailureLeavesRequestApproved(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()
	order := f.seedPaidOrder(t, "user-1", "100.00")
	request, err := f.service.Request(ctx, ports.RequestInput{OrderID: order.ID, UserID: "user-1"})
	require.NoError(t, err)

	f.gateway.failNext = true
	_, err = f.service.Process(ctx, request.ID, ports.DecisionApprove)
	require.ErrorIs(t, err, ErrGatewayRefundFailed)

	stuck, err := f.service.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, stuck.Status)

	// Retrying the same decision completes the refund.
	processed, err := f.service.Process(ctx, request.ID, ports.DecisionApprove)
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessed, processed.Status)
	require.Len(t, f.gateway.refunds, 1)
}

func TestProcess_InvalidDecision(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()
	order := f.seedPaidOrder(t, "user-1", "100.00")
	request, err := f.service.Request(ctx, ports.RequestInput{OrderID: order.ID, UserID: "user-1"})
	require.NoError(t, err)

	_, err = f.service.Process(ctx, request.ID, ports.Decision("maybe"))
	require.ErrorIs(t, err, domain.ErrInvalidDecision)
}

func TestListPending(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()
	first := f.seedPaidOrder(t, "user-1", "100.00")
	second := f.seedPaidOrder(t, "user-2", "50.00")

	a, err := f.service.Request(ctx, ports.RequestInput{OrderID: first.ID, UserID: "user-1"})
	require.NoError(t, err)
	b, err := f.service.Request(ctx, ports.RequestInput{OrderID: second.ID, UserID: "user-2"})
	require.NoError(t, err)

	_, err = f.service.Process(ctx, a.ID, ports.DecisionReject)
	require.NoError(t, err)

	pending, err := f.service.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, b.ID, pending[0].ID)
}
