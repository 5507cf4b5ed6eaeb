package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	gatewayclient "github.com/Apurer/go-commerce-api-server/internal/clients/http/gateway"
	carthttp "github.com/Apurer/go-commerce-api-server/internal/domains/cart/adapters/http"
	cartmemory "github.com/Apurer/go-commerce-api-server/internal/domains/cart/adapters/memory"
	cartpostgres "github.com/Apurer/go-commerce-api-server/internal/domains/cart/adapters/persistence/postgres"
	cartapp "github.com/Apurer/go-commerce-api-server/internal/domains/cart/application"
	cartports "github.com/Apurer/go-commerce-api-server/internal/domains/cart/ports"
	cataloghttp "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/adapters/http"
	catalogmemory "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/adapters/memory"
	catalogpostgres "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/adapters/persistence/postgres"
	catalogapp "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/application"
	catalogports "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/ports"
	"github.com/Apurer/go-commerce-api-server/internal/domains/notifications"
	ordershttp "github.com/Apurer/go-commerce-api-server/internal/domains/orders/adapters/http"
	ordersmemory "github.com/Apurer/go-commerce-api-server/internal/domains/orders/adapters/memory"
	ordersobs "github.com/Apurer/go-commerce-api-server/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/Apurer/go-commerce-api-server/internal/domains/orders/adapters/persistence/postgres"
	ordersapp "github.com/Apurer/go-commerce-api-server/internal/domains/orders/application"
	ordersports "github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
	refundshttp "github.com/Apurer/go-commerce-api-server/internal/domains/refunds/adapters/http"
	refundsmemory "github.com/Apurer/go-commerce-api-server/internal/domains/refunds/adapters/memory"
	refundspostgres "github.com/Apurer/go-commerce-api-server/internal/domains/refunds/adapters/persistence/postgres"
	refundsapp "github.com/Apurer/go-commerce-api-server/internal/domains/refunds/application"
	refundsports "github.com/Apurer/go-commerce-api-server/internal/domains/refunds/ports"
	usershttp "github.com/Apurer/go-commerce-api-server/internal/domains/users/adapters/http"
	usersmemory "github.com/Apurer/go-commerce-api-server/internal/domains/users/adapters/memory"
	userspostgres "github.com/Apurer/go-commerce-api-server/internal/domains/users/adapters/persistence/postgres"
	usersapp "github.com/Apurer/go-commerce-api-server/internal/domains/users/application"
	usersports "github.com/Apurer/go-commerce-api-server/internal/domains/users/ports"
	"github.com/Apurer/go-commerce-api-server/internal/platform/auth"
	platformmetrics "github.com/Apurer/go-commerce-api-server/internal/platform/metrics"
	"github.com/Apurer/go-commerce-api-server/internal/platform/migrations"
	platformobservability "github.com/Apurer/go-commerce-api-server/internal/platform/observability"
	platformpostgres "github.com/Apurer/go-commerce-api-server/internal/platform/postgres"
	sharederrors "github.com/Apurer/go-commerce-api-server/internal/shared/errors"
	"github.com/Apurer/go-commerce-api-server/internal/shared/validation"
)

// Run boots the commerce HTTP API with observability, repositories, the
// payment gateway, and routes wired.
func Run(ctx context.Context) error {
	const serviceName = "commerce-api"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	sharederrors.SetDebugDetail(cfg.ExposeInternalDetails)

	db, cleanupDB := platformpostgres.ConnectOrFallback(ctx, cfg.PostgresDSN, logger)
	defer cleanupDB()
	if db != nil {
		if err := migrations.Run(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	repos := buildRepositories(db, logger)

	tokens, err := auth.NewTokenManager(cfg.JWTSigningKey, cfg.JWTTTL)
	if err != nil {
		return err
	}

	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		return err
	}

	notifier := notifications.NewDispatcher(db, logger)
	validate := validation.New()

	catalogService := catalogapp.NewService(repos.catalog)
	userService := usersapp.NewService(repos.users, tokens)
	cartService := cartapp.NewService(repos.cart, repos.catalog)
	coreOrderService := ordersapp.NewService(
		repos.orders,
		gateway,
		repos.cart,
		repos.catalog,
		ordersapp.WithNotifier(notifier),
		ordersapp.WithChargeTimeout(cfg.PaymentChargeTimeout),
		ordersapp.WithLogger(logger),
	)
	orderService := ordersobs.New(
		coreOrderService,
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)
	refundService := refundsapp.NewService(
		repos.refunds,
		repos.orders,
		gateway,
		refundsapp.WithNotifier(notifier),
		refundsapp.WithLogger(logger),
	)

	metrics := platformmetrics.NewServerMetrics("api")
	handlers := Handlers{
		Catalog: cataloghttp.NewHandler(catalogService, validate),
		Users:   usershttp.NewHandler(userService, validate),
		Cart:    carthttp.NewHandler(cartService, validate),
		Orders:  ordershttp.NewHandler(orderService, validate, cfg.WebhookSecret),
		Refunds: refundshttp.NewHandler(refundService, validate),
	}

	router := NewRouter(serviceName, handlers, tokens, metrics)
	addr := ":" + cfg.Port
	logger.Info("commerce API listening", slog.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Error("commerce API server exited", slog.String("addr", addr), slog.String("error", err.Error()))
		return err
	}
	return nil
}

type repositories struct {
	catalog catalogports.Repository
	users   usersports.Repository
	cart    cartports.Repository
	orders  ordersports.Repository
	refunds refundsports.Repository
}

// buildRepositories prefers postgres; without a DSN every bounded context
// falls back to its in-memory adapter so the API still boots.
func buildRepositories(db *gorm.DB, logger *slog.Logger) repositories {
	if db != nil {
		logger.Info("repositories configured with postgres")
		return repositories{
			catalog: catalogpostgres.NewRepository(db),
			users:   userspostgres.NewRepository(db),
			cart:    cartpostgres.NewRepository(db),
			orders:  orderspostgres.NewRepository(db),
			refunds: refundspostgres.NewRepository(db),
		}
	}
	logger.Warn("POSTGRES_DSN not set, falling back to in-memory repositories")
	catalogRepo := catalogmemory.NewRepository()
	cartRepo := cartmemory.NewRepository()
	return repositories{
		catalog: catalogRepo,
		users:   usersmemory.NewRepository(),
		cart:    cartRepo,
		orders:  ordersmemory.NewRepository(catalogRepo, cartRepo),
		refunds: refundsmemory.NewRepository(),
	}
}

// buildGateway prefers the real HTTP gateway; without a base URL the
// in-process fake keeps local development working.
func buildGateway(cfg Config, logger *slog.Logger) (ordersports.PaymentGateway, error) {
	if cfg.PaymentGatewayURL == "" {
		logger.Warn("PAYMENT_GATEWAY_URL not set; using in-memory payment gateway")
		return ordersmemory.NewGateway(), nil
	}
	return gatewayclient.NewClient(cfg.PaymentGatewayURL, cfg.PaymentGatewayAPIKey)
}
