package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	carthttp "github.com/Apurer/go-commerce-api-server/internal/domains/cart/adapters/http"
	cataloghttp "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/adapters/http"
	ordershttp "github.com/Apurer/go-commerce-api-server/internal/domains/orders/adapters/http"
	refundshttp "github.com/Apurer/go-commerce-api-server/internal/domains/refunds/adapters/http"
	usershttp "github.com/Apurer/go-commerce-api-server/internal/domains/users/adapters/http"
	"github.com/Apurer/go-commerce-api-server/internal/platform/auth"
	platformmetrics "github.com/Apurer/go-commerce-api-server/internal/platform/metrics"
)

// Handlers groups the domain HTTP adapters mounted by the router.
type Handlers struct {
	Catalog *cataloghttp.Handler
	Users   *usershttp.Handler
	Cart    *carthttp.Handler
	Orders  *ordershttp.Handler
	Refunds *refundshttp.Handler
}

// NewRouter assembles the gin engine: public catalog and auth routes, the
// authenticated storefront, the admin group, and the webhook endpoint.
func NewRouter(serviceName string, handlers Handlers, tokens *auth.TokenManager, metrics *platformmetrics.ServerMetrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	if metrics != nil {
		router.Use(metrics.Middleware())
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(platformmetrics.Handler()))
	}

	handlers.Catalog.RegisterPublic(router)
	handlers.Users.RegisterPublic(router)
	handlers.Orders.RegisterWebhooks(router)

	authed := router.Group("/", RequireAuth(tokens))
	handlers.Cart.Register(authed)
	handlers.Orders.Register(authed)
	handlers.Refunds.Register(authed)

	admin := router.Group("/admin", RequireAuth(tokens), RequireRole(auth.RoleAdmin))
	handlers.Catalog.RegisterAdmin(admin)
	handlers.Users.RegisterAdmin(admin)
	handlers.Orders.RegisterAdmin(admin)
	handlers.Refunds.RegisterAdmin(admin)

	return router
}
