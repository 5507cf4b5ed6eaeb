package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	cartmemory "github.com/Apurer/go-commerce-api-server/internal/domains/cart/adapters/memory"
	"github.com/Apurer/go-commerce-api-server/internal/domains/cart/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/cart/ports"
	catalogmemory "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/adapters/memory"
	catalogdomain "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/domain"
	catalogports "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/ports"
)

func newCartService(t *testing.T) (*Service, *catalogmemory.Repository) {
	t.Helper()
	products := catalogmemory.NewRepository()
	return NewService(cartmemory.NewRepository(), products), products
}

func seedProduct(t *testing.T, products *catalogmemory.Repository, name, price string, stock int64) *catalogdomain.Product {
	t.Helper()
	product, err := catalogdomain.NewProduct("", name, decimal.RequireFromString(price), stock, catalogdomain.CategoryOther)
	require.NoError(t, err)
	saved, err := products.Save(context.Background(), product)
	require.NoError(t, err)
	return saved
}

func TestAddItem_InsertsAndIncrements(t *testing.T) {
	service, products := newCartService(t)
	ctx := context.Background()
	product := seedProduct(t, products, "keyboard", "49.99", 10)

	require.NoError(t, service.AddItem(ctx, "user-1", product.ID, 2))
	require.NoError(t, service.AddItem(ctx, "user-1", product.ID, 1))

	snapshot, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, snapshot.Items, 1)
	require.EqualValues(t, 3, snapshot.Items[0].Quantity)
	require.True(t, decimal.RequireFromString("149.97").Equal(snapshot.Total), "got %s", snapshot.Total)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	service, _ := newCartService(t)
	err := service.AddItem(context.Background(), "user-1", "no-such-product", 1)
	require.ErrorIs(t, err, catalogports.ErrNotFound)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	service, products := newCartService(t)
	product := seedProduct(t, products, "mouse", "19.99", 5)
	err := service.AddItem(context.Background(), "user-1", product.ID, 0)
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestGet_DropsDeletedProducts(t *testing.T) {
	service, products := newCartService(t)
	ctx := context.Background()
	kept := seedProduct(t, products, "monitor", "199.00", 5)
	doomed := seedProduct(t, products, "cable", "9.99", 5)
	require.NoError(t, service.AddItem(ctx, "user-1", kept.ID, 1))
	require.NoError(t, service.AddItem(ctx, "user-1", doomed.ID, 2))
	require.NoError(t, products.Delete(ctx, doomed.ID))

	snapshot, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, snapshot.Items, 1)
	require.Equal(t, kept.ID, snapshot.Items[0].ProductID)
	require.True(t, decimal.RequireFromString("199.00").Equal(snapshot.Total))
}

func TestGet_EmptyCart(t *testing.T) {
	service, _ := newCartService(t)
	snapshot, err := service.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Empty(t, snapshot.Items)
	require.True(t, snapshot.Total.IsZero())
}

func TestGet_ReflectsCurrentPrices(t *testing.T) {
	service, products := newCartService(t)
	ctx := context.Background()
	product := seedProduct(t, products, "lamp", "25.00", 5)
	require.NoError(t, service.AddItem(ctx, "user-1", product.ID, 1))

	require.NoError(t, product.ChangePrice(decimal.RequireFromString("30.00")))
	_, err := products.Save(ctx, product)
	require.NoError(t, err)

	snapshot, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("30.00").Equal(snapshot.Items[0].UnitPrice))
}

func TestUpdateQuantity(t *testing.T) {
	service, products := newCartService(t)
	ctx := context.Background()
	product := seedProduct(t, products, "desk", "250.00", 5)
	require.NoError(t, service.AddItem(ctx, "user-1", product.ID, 1))

	require.NoError(t, service.UpdateQuantity(ctx, "user-1", product.ID, 4))
	snapshot, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	require.EqualValues(t, 4, snapshot.Items[0].Quantity)

	require.ErrorIs(t, service.UpdateQuantity(ctx, "user-1", product.ID, 0), domain.ErrInvalidQuantity)
	require.ErrorIs(t, service.UpdateQuantity(ctx, "user-1", "absent", 2), ports.ErrLineNotFound)
}

func TestRemoveAndClear(t *testing.T) {
	service, products := newCartService(t)
	ctx := context.Background()
	a := seedProduct(t, products, "chair", "150.00", 5)
	b := seedProduct(t, products, "rug", "60.00", 5)
	require.NoError(t, service.AddItem(ctx, "user-1", a.ID, 1))
	require.NoError(t, service.AddItem(ctx, "user-1", b.ID, 1))

	require.NoError(t, service.RemoveItem(ctx, "user-1", a.ID))
	snapshot, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, snapshot.Items, 1)

	require.NoError(t, service.Clear(ctx, "user-1"))
	snapshot, err = service.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, snapshot.Items)

	require.ErrorIs(t, service.RemoveItem(ctx, "user-1", a.ID), ports.ErrLineNotFound)
}
