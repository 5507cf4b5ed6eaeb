// Package http exposes the cart over gin. All routes require a principal.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Apurer/go-commerce-api-server/internal/domains/cart/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/cart/ports"
	catalogports "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/ports"
	"github.com/Apurer/go-commerce-api-server/internal/platform/auth"
	sharederrors "github.com/Apurer/go-commerce-api-server/internal/shared/errors"
	"github.com/Apurer/go-commerce-api-server/internal/shared/validation"
)

// Handler serves the authenticated cart routes.
type Handler struct {
	service   ports.Service
	validate  *validatorv10.Validate
	responder *sharederrors.ChainedResponder
}

func NewHandler(service ports.Service, validate *validatorv10.Validate) *Handler {
	return &Handler{
		service:   service,
		validate:  validate,
		responder: sharederrors.NewChainedResponder("", mapCartError),
	}
}

// Register mounts the cart routes on an authenticated group.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/cart", h.addItem)
	r.GET("/cart", h.get)
	r.PATCH("/cart/:productId", h.updateQuantity)
	r.DELETE("/cart/:productId", h.removeItem)
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
}

type updateQuantityRequest struct {
	Quantity int64 `json:"quantity" validate:"required,min=1"`
}

type itemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type cartResponse struct {
	Items []itemResponse  `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func (h *Handler) addItem(c *gin.Context) {
	principal, ok := auth.FromGin(c)
	if !ok {
		h.responder.Respond(c, sharederrors.ErrUnauthorized)
		return
	}
	var req addItemRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	if err := h.service.AddItem(c.Request.Context(), principal.UserID, req.ProductID, req.Quantity); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	h.respondSnapshot(c, principal.UserID, http.StatusCreated)
}

func (h *Handler) get(c *gin.Context) {
	principal, ok := auth.FromGin(c)
	if !ok {
		h.responder.Respond(c, sharederrors.ErrUnauthorized)
		return
	}
	h.respondSnapshot(c, principal.UserID, http.StatusOK)
}

func (h *Handler) updateQuantity(c *gin.Context) {
	principal, ok := auth.FromGin(c)
	if !ok {
		h.responder.Respond(c, sharederrors.ErrUnauthorized)
		return
	}
	var req updateQuantityRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	if err := h.service.UpdateQuantity(c.Request.Context(), principal.UserID, c.Param("productId"), req.Quantity); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	h.respondSnapshot(c, principal.UserID, http.StatusOK)
}

func (h *Handler) removeItem(c *gin.Context) {
	principal, ok := auth.FromGin(c)
	if !ok {
		h.responder.Respond(c, sharederrors.ErrUnauthorized)
		return
	}
	if err := h.service.RemoveItem(c.Request.Context(), principal.UserID, c.Param("productId")); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	h.respondSnapshot(c, principal.UserID, http.StatusOK)
}

func (h *Handler) respondSnapshot(c *gin.Context, userID string, status int) {
	snapshot, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	items := make([]itemResponse, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		items = append(items, itemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		})
	}
	c.JSON(status, cartResponse{Items: items, Total: snapshot.Total})
}

func mapCartError(err error) (sharederrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, catalogports.ErrNotFound):
		return sharederrors.NewNotFoundProblem("product", ""), true
	case errors.Is(err, ports.ErrLineNotFound):
		return sharederrors.NewNotFoundProblem("cart item", ""), true
	case errors.Is(err, domain.ErrInvalidQuantity):
		return sharederrors.ErrValidation.WithDetail(err.Error()), true
	default:
		return sharederrors.ProblemDetail{}, false
	}
}
