package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	cartmemory "github.com/Apurer/go-commerce-api-server/internal/domains/cart/adapters/memory"
	cartdomain "github.com/Apurer/go-commerce-api-server/internal/domains/cart/domain"
	catalogmemory "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/adapters/memory"
	catalogdomain "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/domain"
	ordersmemory "github.com/Apurer/go-commerce-api-server/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
)

type countingGateway struct {
	mu          sync.Mutex
	charges     int
	refunds     int
	declineNext bool
}

func (g *countingGateway) Charge(_ context.Context, amount decimal.Decimal, _ string) (ports.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.declineNext {
		g.declineNext = false
		return ports.Intent{}, ports.ErrPaymentDeclined
	}
	g.charges++
	return ports.Intent{ID: "pi_test", Status: "succeeded", Amount: amount}, nil
}

func (g *countingGateway) Refund(_ context.Context, _ string, amount decimal.Decimal) (ports.RefundReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	return ports.RefundReceipt{ID: "re_test", Status: "succeeded", Amount: amount}, nil
}

func (g *countingGateway) ListTransactions(_ context.Context, _ time.Time) ([]ports.Transaction, error) {
	return nil, nil
}

// failingRepo wraps another repository and fails CreateOrder with scripted
// errors before delegating.
type failingRepo struct {
	ports.Repository
	failures []error
	attempts int
}

func (f *failingRepo) CreateOrder(ctx context.Context, order *domain.Order, key, hash string) error {
	f.attempts++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	return f.Repository.CreateOrder(ctx, order, key, hash)
}

type checkoutFixture struct {
	service  *Service
	gateway  *countingGateway
	products *catalogmemory.Repository
	carts    *cartmemory.Repository
	orders   *ordersmemory.Repository
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	products := catalogmemory.NewRepository()
	carts := cartmemory.NewRepository()
	orders := ordersmemory.NewRepository(products, carts)
	gateway := &countingGateway{}
	service := NewService(orders, gateway, carts, products)
	return &checkoutFixture{
		service:  service,
		gateway:  gateway,
		products: products,
		carts:    carts,
		orders:   orders,
	}
}

func (f *checkoutFixture) seedProduct(t *testing.T, name string, price string, stock int64) *catalogdomain.Product {
	t.Helper()
	product, err := catalogdomain.NewProduct("", name, decimal.RequireFromString(price), stock, catalogdomain.CategoryOther)
	require.NoError(t, err)
	saved, err := f.products.Save(context.Background(), product)
	require.NoError(t, err)
	return saved
}

func (f *checkoutFixture) seedCartLine(t *testing.T, userID, productID string, quantity int64) {
	t.Helper()
	line, err := cartdomain.NewLine(productID, quantity)
	require.NoError(t, err)
	require.NoError(t, f.carts.Upsert(context.Background(), userID, line))
}

var testAddress = domain.Address{
	Street:     "1 Market St",
	City:       "Springfield",
	PostalCode: "12345",
	Country:    "US",
}

func TestCheckout_FreezesPricesAndClearsCart(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "keyboard", "49.99", 10)
	f.seedCartLine(t, "user-1", product.ID, 2)

	order, err := f.service.Checkout(ctx, ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessing, order.Status)
	require.Equal(t, domain.PaymentCompleted, order.PaymentStatus)
	require.True(t, decimal.RequireFromString("99.98").Equal(order.Total))
	require.Equal(t, 1, f.gateway.charges)

	// Later price changes must not move the stored total.
	require.NoError(t, product.ChangePrice(decimal.RequireFromString("99.99")))
	_, err = f.products.Save(ctx, product)
	require.NoError(t, err)
	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("99.98").Equal(stored.Total))
	require.True(t, decimal.RequireFromString("49.99").Equal(stored.Lines[0].PriceAtPurchase))

	updated, err := f.products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.EqualValues(t, 8, updated.Stock)

	lines, err := f.carts.Lines(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.service.Checkout(context.Background(), ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.ErrorIs(t, err, ErrEmptyCart)
	require.Zero(t, f.gateway.charges)
}

func TestCheckout_DeletedProductLinesAreDropped(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "mouse", "19.99", 5)
	f.seedCartLine(t, "user-1", product.ID, 1)
	require.NoError(t, f.products.Delete(ctx, product.ID))

	_, err := f.service.Checkout(ctx, ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.ErrorIs(t, err, ErrEmptyCart)
	require.Zero(t, f.gateway.charges)
}

func TestCheckout_InsufficientStockBeforePayment(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "monitor", "199.00", 1)
	f.seedCartLine(t, "user-1", product.ID, 3)

	_, err := f.service.Checkout(ctx, ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.ErrorIs(t, err, ports.ErrInsufficientStock)
	var stockErr *ports.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, product.ID, stockErr.ProductID)
	require.Zero(t, f.gateway.charges)

	// Nothing mutated: stock and cart intact.
	unchanged, err := f.products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, unchanged.Stock)
	lines, err := f.carts.Lines(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestCheckout_PaymentDeclined(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "webcam", "59.00", 4)
	f.seedCartLine(t, "user-1", product.ID, 1)
	f.gateway.declineNext = true

	_, err := f.service.Checkout(ctx, ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.ErrorIs(t, err, ErrPaymentFailed)
	require.Zero(t, f.gateway.refunds)

	unchanged, err := f.products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.EqualValues(t, 4, unchanged.Stock)
	lines, err := f.carts.Lines(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestCheckout_StockRaceLostAfterPaymentRefunds(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "headset", "89.00", 5)
	f.seedCartLine(t, "user-1", product.ID, 1)

	// Another buyer wins the stock between validation and commit.
	repo := &failingRepo{Repository: f.orders, failures: []error{ports.ErrInsufficientStock}}
	service := NewService(repo, f.gateway, f.carts, f.products)

	_, err := service.Checkout(ctx, ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.ErrorIs(t, err, ports.ErrInsufficientStock)
	require.Equal(t, 1, f.gateway.charges)
	require.Equal(t, 1, f.gateway.refunds)
	require.Equal(t, 1, repo.attempts)
}

func TestCheckout_RetriesSerializationConflictsWithoutRecharging(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "dock", "129.00", 5)
	f.seedCartLine(t, "user-1", product.ID, 1)

	repo := &failingRepo{Repository: f.orders, failures: []error{ports.ErrTxConflict, ports.ErrTxConflict}}
	service := NewService(repo, f.gateway, f.carts, f.products)

	order, err := service.Checkout(ctx, ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.NoError(t, err)
	require.Equal(t, 3, repo.attempts)
	require.Equal(t, 1, f.gateway.charges)
	require.Zero(t, f.gateway.refunds)
	require.NotEmpty(t, order.PaymentIntentID)
}

func TestCheckout_RetryExhaustionRefundsAndFails(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "hub", "39.00", 5)
	f.seedCartLine(t, "user-1", product.ID, 1)

	repo := &failingRepo{Repository: f.orders, failures: []error{ports.ErrTxConflict, ports.ErrTxConflict, ports.ErrTxConflict}}
	service := NewService(repo, f.gateway, f.carts, f.products)

	_, err := service.Checkout(ctx, ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.ErrorIs(t, err, ErrOrderFailed)
	require.Equal(t, 3, repo.attempts)
	require.Equal(t, 1, f.gateway.charges)
	require.Equal(t, 1, f.gateway.refunds)
}

func TestCheckout_IdempotentReplayReturnsStoredOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "lamp", "25.00", 10)
	f.seedCartLine(t, "user-1", product.ID, 1)

	input := ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress, IdempotencyKey: "key-1"}
	first, err := f.service.Checkout(ctx, input)
	require.NoError(t, err)

	second, err := f.service.Checkout(ctx, input)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, f.gateway.charges)
}

func TestCheckout_IdempotencyKeyReusedWithDifferentRequest(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "desk", "250.00", 10)
	f.seedCartLine(t, "user-1", product.ID, 1)

	input := ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress, IdempotencyKey: "key-1"}
	_, err := f.service.Checkout(ctx, input)
	require.NoError(t, err)

	other := input
	other.ShippingAddress.City = "Shelbyville"
	_, err = f.service.Checkout(ctx, other)
	require.ErrorIs(t, err, ports.ErrIdempotencyConflict)
	require.Equal(t, 1, f.gateway.charges)
}

func TestCheckout_ConcurrentBuyersLastUnit(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "console", "499.00", 1)
	f.seedCartLine(t, "user-1", product.ID, 1)
	f.seedCartLine(t, "user-2", product.ID, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []string{"user-1", "user-2"} {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = f.service.Checkout(ctx, ports.CheckoutInput{UserID: userID, ShippingAddress: testAddress})
		}(i, userID)
	}
	wg.Wait()

	require.True(t, (errs[0] == nil) != (errs[1] == nil), "exactly one buyer may win: %v / %v", errs[0], errs[1])
	loser := errs[0]
	if loser == nil {
		loser = errs[1]
	}
	require.ErrorIs(t, loser, ports.ErrInsufficientStock)

	remaining, err := f.products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, remaining.Stock)

	orders, err := f.orders.List(ctx, ports.ListFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)

	// The loser either failed the pre-check before charging or was charged
	// and compensated after losing the decrement race.
	require.Equal(t, f.gateway.charges-1, f.gateway.refunds)
}

func TestCancelOrder_RestocksLines(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "chair", "150.00", 3)
	f.seedCartLine(t, "user-1", product.ID, 2)

	order, err := f.service.Checkout(ctx, ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.NoError(t, err)
	depleted, err := f.products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, depleted.Stock)

	cancelled, err := f.service.CancelOrder(ctx, "user-1", false, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, cancelled.Status)

	restocked, err := f.products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, restocked.Stock)
}

func TestCancelOrder_TerminalStateRejected(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "shelf", "80.00", 5)
	f.seedCartLine(t, "user-1", product.ID, 1)

	order, err := f.service.Checkout(ctx, ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.NoError(t, err)

	for _, status := range []domain.Status{domain.StatusShipped, domain.StatusDelivered} {
		_, err = f.service.UpdateStatus(ctx, order.ID, status, "")
		require.NoError(t, err)
	}

	_, err = f.service.CancelOrder(ctx, "user-1", false, order.ID)
	require.ErrorIs(t, err, domain.ErrNotCancellable)
}

func TestCancelOrder_OwnershipEnforced(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "stand", "45.00", 5)
	f.seedCartLine(t, "user-1", product.ID, 1)

	order, err := f.service.Checkout(ctx, ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.NoError(t, err)

	_, err = f.service.GetOrder(ctx, "user-2", false, order.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.service.CancelOrder(ctx, "user-2", false, order.ID)
	require.ErrorIs(t, err, ErrForbidden)

	// Admins see and cancel any order.
	_, err = f.service.GetOrder(ctx, "user-2", true, order.ID)
	require.NoError(t, err)
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "rug", "60.00", 5)
	f.seedCartLine(t, "user-1", product.ID, 1)

	order, err := f.service.Checkout(ctx, ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.NoError(t, err)

	_, err = f.service.UpdateStatus(ctx, order.ID, domain.StatusDelivered, "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.service.UpdateStatus(ctx, order.ID, domain.Status("bogus"), "")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestCheckout_TotalMatchesLineMath(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	a := f.seedProduct(t, "pencil", "1.10", 100)
	b := f.seedProduct(t, "notebook", "3.33", 100)
	f.seedCartLine(t, "user-1", a.ID, 3)
	f.seedCartLine(t, "user-1", b.ID, 2)

	order, err := f.service.Checkout(ctx, ports.CheckoutInput{UserID: "user-1", ShippingAddress: testAddress})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("9.96").Equal(order.Total), "got %s", order.Total)
}

func TestCheckout_ErrorsSurfaceDistinctly(t *testing.T) {
	require.False(t, errors.Is(ErrPaymentFailed, ErrOrderFailed))
	require.False(t, errors.Is(ErrEmptyCart, ErrInvalidTotal))
}
