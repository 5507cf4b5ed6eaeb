//go:build integration
// +build integration

// To enable gopls support for this file, add the following to your VSCode settings.json:
// "gopls": {
//   "buildFlags": ["-tags=integration"]
// }

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	cartpostgres "github.com/Apurer/go-commerce-api-server/internal/domains/cart/adapters/persistence/postgres"
	cartdomain "github.com/Apurer/go-commerce-api-server/internal/domains/cart/domain"
	catalogpostgres "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/adapters/persistence/postgres"
	catalogdomain "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/domain"
	orderspostgres "github.com/Apurer/go-commerce-api-server/internal/domains/orders/adapters/persistence/postgres"
	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
	"github.com/Apurer/go-commerce-api-server/internal/platform/migrations"
)

func setupPostgresContainer(t *testing.T) (*gorm.DB, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("commerce_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = migrations.Run(db)
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}

	return db, cleanup
}

type checkoutDeps struct {
	orders   *orderspostgres.Repository
	products *catalogpostgres.Repository
	carts    *cartpostgres.Repository
}

func newCheckoutDeps(db *gorm.DB) checkoutDeps {
	return checkoutDeps{
		orders:   orderspostgres.NewRepository(db),
		products: catalogpostgres.NewRepository(db),
		carts:    cartpostgres.NewRepository(db),
	}
}

func (d checkoutDeps) seedProduct(t *testing.T, name, price string, stock int64) *catalogdomain.Product {
	product, err := catalogdomain.NewProduct("", name, decimal.RequireFromString(price), stock, catalogdomain.CategoryOther)
	require.NoError(t, err)
	saved, err := d.products.Save(context.Background(), product)
	require.NoError(t, err)
	return saved
}

func paidOrder(t *testing.T, userID string, product *catalogdomain.Product, quantity int64) *domain.Order {
	order, err := domain.NewOrder(userID, []domain.Line{{
		ProductID:       product.ID,
		Name:            product.Name,
		PriceAtPurchase: product.Price,
		Quantity:        quantity,
	}}, domain.Address{Street: "1 Market St", City: "Springfield", PostalCode: "12345", Country: "US"})
	require.NoError(t, err)
	order.MarkPaid("pi_" + order.ID)
	return order
}

func TestPostgresRepository_CreateOrderDecrementsStockAndClearsCart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()
	deps := newCheckoutDeps(db)
	ctx := context.Background()

	product := deps.seedProduct(t, "keyboard", "49.99", 10)
	line, err := cartdomain.NewLine(product.ID, 2)
	require.NoError(t, err)
	require.NoError(t, deps.carts.Upsert(ctx, "user-1", line))

	order := paidOrder(t, "user-1", product, 2)
	require.NoError(t, deps.orders.CreateOrder(ctx, order, "", ""))

	stored, err := deps.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, stored.Status)
	assert.True(t, order.Total.Equal(stored.Total))
	assert.Len(t, stored.Lines, 1)
	assert.Equal(t, product.Name, stored.Lines[0].Name)

	remaining, err := deps.products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 8, remaining.Stock)

	lines, err := deps.carts.Lines(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestPostgresRepository_CreateOrderRollsBackOnInsufficientStock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()
	deps := newCheckoutDeps(db)
	ctx := context.Background()

	plenty := deps.seedProduct(t, "mouse", "19.99", 10)
	scarce := deps.seedProduct(t, "monitor", "199.00", 1)

	order, err := domain.NewOrder("user-1", []domain.Line{
		{ProductID: plenty.ID, Name: plenty.Name, PriceAtPurchase: plenty.Price, Quantity: 2},
		{ProductID: scarce.ID, Name: scarce.Name, PriceAtPurchase: scarce.Price, Quantity: 3},
	}, domain.Address{Street: "1 Market St", City: "Springfield", PostalCode: "12345", Country: "US"})
	require.NoError(t, err)

	err = deps.orders.CreateOrder(ctx, order, "", "")
	require.ErrorIs(t, err, ports.ErrInsufficientStock)

	// The whole unit rolled back, including the first decrement.
	untouched, err := deps.products.GetByID(ctx, plenty.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 10, untouched.Stock)
	_, err = deps.orders.GetByID(ctx, order.ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestPostgresRepository_IdempotencyKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()
	deps := newCheckoutDeps(db)
	ctx := context.Background()

	product := deps.seedProduct(t, "lamp", "25.00", 10)

	first := paidOrder(t, "user-1", product, 1)
	require.NoError(t, deps.orders.CreateOrder(ctx, first, "key-1", "hash-1"))

	stored, hash, err := deps.orders.FindByIdempotencyKey(ctx, "user-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, "hash-1", hash)

	_, _, err = deps.orders.FindByIdempotencyKey(ctx, "user-2", "key-1")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	second := paidOrder(t, "user-1", product, 1)
	err = deps.orders.CreateOrder(ctx, second, "key-1", "hash-2")
	assert.ErrorIs(t, err, ports.ErrIdempotencyConflict)
}

func TestPostgresRepository_SetStatusIsConditional(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()
	deps := newCheckoutDeps(db)
	ctx := context.Background()

	product := deps.seedProduct(t, "desk", "250.00", 5)
	order := paidOrder(t, "user-1", product, 1)
	require.NoError(t, deps.orders.CreateOrder(ctx, order, "", ""))

	require.NoError(t, deps.orders.SetStatus(ctx, order.ID, domain.StatusProcessing, domain.StatusShipped, "TRACK-1"))

	stored, err := deps.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, stored.Status)
	assert.Equal(t, "TRACK-1", stored.TrackingNumber)

	// Stale expected status loses the compare-and-set.
	err = deps.orders.SetStatus(ctx, order.ID, domain.StatusProcessing, domain.StatusShipped, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	err = deps.orders.SetStatus(ctx, "missing", domain.StatusProcessing, domain.StatusShipped, "")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestPostgresRepository_CancelOrderRestocks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()
	deps := newCheckoutDeps(db)
	ctx := context.Background()

	product := deps.seedProduct(t, "chair", "150.00", 3)
	order := paidOrder(t, "user-1", product, 2)
	require.NoError(t, deps.orders.CreateOrder(ctx, order, "", ""))

	require.NoError(t, deps.orders.CancelOrder(ctx, order))

	stored, err := deps.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)

	restocked, err := deps.products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, restocked.Stock)

	// Cancelled is terminal.
	err = deps.orders.CancelOrder(ctx, order)
	assert.ErrorIs(t, err, domain.ErrNotCancellable)
}

func TestPostgresRepository_PaymentIntentLookups(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()
	deps := newCheckoutDeps(db)
	ctx := context.Background()

	product := deps.seedProduct(t, "hub", "39.00", 5)
	order := paidOrder(t, "user-1", product, 1)
	require.NoError(t, deps.orders.CreateOrder(ctx, order, "", ""))

	exists, err := deps.orders.ExistsByPaymentIntent(ctx, order.PaymentIntentID)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = deps.orders.ExistsByPaymentIntent(ctx, "pi_unknown")
	require.NoError(t, err)
	assert.False(t, exists)

	updated, err := deps.orders.SetPaymentStatusByIntent(ctx, order.PaymentIntentID, domain.PaymentFailed)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, updated.PaymentStatus)
}

func TestPostgresRepository_ListAndSummary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()
	deps := newCheckoutDeps(db)
	ctx := context.Background()

	product := deps.seedProduct(t, "shelf", "80.00", 100)

	first := paidOrder(t, "user-1", product, 1)
	require.NoError(t, deps.orders.CreateOrder(ctx, first, "", ""))
	second := paidOrder(t, "user-1", product, 2)
	require.NoError(t, deps.orders.CreateOrder(ctx, second, "", ""))
	third := paidOrder(t, "user-2", product, 1)
	require.NoError(t, deps.orders.CreateOrder(ctx, third, "", ""))
	require.NoError(t, deps.orders.CancelOrder(ctx, third))

	mine, err := deps.orders.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	cancelled, err := deps.orders.List(ctx, ports.ListFilter{Status: domain.StatusCancelled})
	require.NoError(t, err)
	assert.Len(t, cancelled, 1)

	summary, err := deps.orders.SalesSummary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.OrdersByStatus[domain.StatusProcessing])
	assert.EqualValues(t, 1, summary.OrdersByStatus[domain.StatusCancelled])
	assert.True(t, decimal.RequireFromString("240.00").Equal(summary.GrossRevenue), "got %s", summary.GrossRevenue)
}
