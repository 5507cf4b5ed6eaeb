// Package http exposes the catalog over gin.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Apurer/go-commerce-api-server/internal/domains/catalog/application"
	"github.com/Apurer/go-commerce-api-server/internal/domains/catalog/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/catalog/ports"
	sharederrors "github.com/Apurer/go-commerce-api-server/internal/shared/errors"
	"github.com/Apurer/go-commerce-api-server/internal/shared/validation"
)

// Handler serves the public catalog routes and the admin product CRUD.
type Handler struct {
	service   ports.Service
	validate  *validatorv10.Validate
	responder *sharederrors.ChainedResponder
}

func NewHandler(service ports.Service, validate *validatorv10.Validate) *Handler {
	return &Handler{
		service:   service,
		validate:  validate,
		responder: sharederrors.NewChainedResponder("", mapCatalogError),
	}
}

// RegisterPublic mounts the read-only catalog routes.
func (h *Handler) RegisterPublic(r gin.IRoutes) {
	r.GET("/products", h.list)
	r.GET("/products/:id", h.get)
}

// RegisterAdmin mounts the product management routes.
func (h *Handler) RegisterAdmin(r gin.IRoutes) {
	r.POST("/products", h.create)
	r.PUT("/products/:id", h.update)
	r.DELETE("/products/:id", h.delete)
}

type productRequest struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Price    decimal.Decimal `json:"price" validate:"required"`
	Stock    int64           `json:"stock" validate:"gte=0"`
	SKU      string          `json:"sku" validate:"max=64"`
	Category string          `json:"category" validate:"required"`
}

type productResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int64           `json:"stock"`
	InStock  bool            `json:"in_stock"`
	SKU      string          `json:"sku,omitempty"`
	Category string          `json:"category"`
}

type productPageResponse struct {
	Items    []productResponse `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

func (h *Handler) list(c *gin.Context) {
	var query struct {
		Category string `form:"category"`
		MinPrice string `form:"min_price"`
		MaxPrice string `form:"max_price"`
		Q        string `form:"q"`
		Page     int    `form:"page"`
		PageSize int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.responder.BadRequest(c, "invalid query parameters")
		return
	}
	filter := ports.Filter{
		Category: ports.Category(query.Category),
		Query:    query.Q,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.MinPrice != "" {
		min, err := decimal.NewFromString(query.MinPrice)
		if err != nil {
			h.responder.BadRequest(c, "min_price is not a valid amount")
			return
		}
		filter.MinPrice = &min
	}
	if query.MaxPrice != "" {
		max, err := decimal.NewFromString(query.MaxPrice)
		if err != nil {
			h.responder.BadRequest(c, "max_price is not a valid amount")
			return
		}
		filter.MaxPrice = &max
	}
	page, err := h.service.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	items := make([]productResponse, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, toResponse(product))
	}
	pageNum, pageSize := filter.Page, filter.PageSize
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	c.JSON(http.StatusOK, productPageResponse{
		Items:    items,
		Total:    page.Total,
		Page:     pageNum,
		PageSize: pageSize,
	})
}

func (h *Handler) get(c *gin.Context) {
	product, err := h.service.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(product))
}

func (h *Handler) create(c *gin.Context) {
	var req productRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	product, err := domain.NewProduct("", req.Name, req.Price, req.Stock, domain.Category(req.Category))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	product.SKU = req.SKU
	created, err := h.service.CreateProduct(c.Request.Context(), product)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(created))
}

func (h *Handler) update(c *gin.Context) {
	var req productRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	product, err := domain.NewProduct(c.Param("id"), req.Name, req.Price, req.Stock, domain.Category(req.Category))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	product.SKU = req.SKU
	updated, err := h.service.UpdateProduct(c.Request.Context(), product)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(updated))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.service.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func toResponse(product *domain.Product) productResponse {
	return productResponse{
		ID:       product.ID,
		Name:     product.Name,
		Price:    product.Price,
		Stock:    product.Stock,
		InStock:  product.InStock(),
		SKU:      product.SKU,
		Category: string(product.Category),
	}
}

func mapCatalogError(err error) (sharederrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return sharederrors.NewNotFoundProblem("product", ""), true
	case errors.Is(err, ports.ErrDuplicateSKU):
		return sharederrors.ErrConflict.WithDetail("a product with this SKU already exists"), true
	case errors.Is(err, application.ErrInvalidInput),
		errors.Is(err, domain.ErrEmptyName),
		errors.Is(err, domain.ErrNameTooLong),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrNegativeStock),
		errors.Is(err, domain.ErrInvalidCategory):
		return sharederrors.ErrValidation.WithDetail(err.Error()), true
	default:
		return sharederrors.ProblemDetail{}, false
	}
}
