// Package http exposes checkout, order lifecycle, admin views, and the
// payment gateway webhook over gin.
package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/application"
	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
	"github.com/Apurer/go-commerce-api-server/internal/platform/auth"
	sharederrors "github.com/Apurer/go-commerce-api-server/internal/shared/errors"
	"github.com/Apurer/go-commerce-api-server/internal/shared/validation"
)

// SignatureHeader carries the webhook HMAC in hex.
const SignatureHeader = "X-Webhook-Signature"

// Handler serves the order routes.
type Handler struct {
	service       ports.Service
	validate      *validatorv10.Validate
	responder     *sharederrors.ChainedResponder
	webhookSecret []byte
}

func NewHandler(service ports.Service, validate *validatorv10.Validate, webhookSecret string) *Handler {
	return &Handler{
		service:       service,
		validate:      validate,
		responder:     sharederrors.NewChainedResponder("", mapOrderError),
		webhookSecret: []byte(webhookSecret),
	}
}

// Register mounts the authenticated order routes.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/orders", h.checkout)
	r.GET("/orders", h.list)
	r.GET("/orders/:id", h.get)
	r.PUT("/orders/:id/cancel", h.cancel)
}

// RegisterAdmin mounts the order management routes.
func (h *Handler) RegisterAdmin(r gin.IRoutes) {
	r.GET("/orders", h.listAll)
	r.PUT("/orders/:id/status", h.updateStatus)
	r.GET("/analytics/sales", h.salesSummary)
}

// RegisterWebhooks mounts the signature-gated gateway callback.
func (h *Handler) RegisterWebhooks(r gin.IRoutes) {
	r.POST("/webhooks/payment", h.paymentWebhook)
}

type addressRequest struct {
	Street     string `json:"street" validate:"required,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=16"`
	Country    string `json:"country" validate:"required,max=100"`
}

type checkoutRequest struct {
	ShippingAddress addressRequest `json:"shipping_address" validate:"required"`
}

type updateStatusRequest struct {
	Status         string `json:"status" validate:"required"`
	TrackingNumber string `json:"tracking_number" validate:"max=64"`
}

type webhookRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
	Status          string `json:"status" validate:"required,oneof=succeeded failed"`
}

type lineResponse struct {
	ProductID       string          `json:"product_id"`
	Name            string          `json:"name"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Quantity        int64           `json:"quantity"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

type orderResponse struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Lines           []lineResponse  `json:"lines"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	RefundStatus    string          `json:"refund_status"`
	ShippingAddress addressRequest  `json:"shipping_address"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type salesSummaryResponse struct {
	OrdersByStatus map[string]int64 `json:"orders_by_status"`
	GrossRevenue   decimal.Decimal  `json:"gross_revenue"`
	RefundedAmount decimal.Decimal  `json:"refunded_amount"`
}

func (h *Handler) checkout(c *gin.Context) {
	principal, ok := auth.FromGin(c)
	if !ok {
		h.responder.Respond(c, sharederrors.ErrUnauthorized)
		return
	}
	var req checkoutRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	order, err := h.service.Checkout(c.Request.Context(), ports.CheckoutInput{
		UserID: principal.UserID,
		ShippingAddress: domain.Address{
			Street:     req.ShippingAddress.Street,
			City:       req.ShippingAddress.City,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		},
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(order))
}

func (h *Handler) list(c *gin.Context) {
	principal, ok := auth.FromGin(c)
	if !ok {
		h.responder.Respond(c, sharederrors.ErrUnauthorized)
		return
	}
	orders, err := h.service.ListOrders(c.Request.Context(), principal.UserID)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponses(orders))
}

func (h *Handler) get(c *gin.Context) {
	principal, ok := auth.FromGin(c)
	if !ok {
		h.responder.Respond(c, sharederrors.ErrUnauthorized)
		return
	}
	order, err := h.service.GetOrder(c.Request.Context(), principal.UserID, principal.HasRole(auth.RoleAdmin), c.Param("id"))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(order))
}

func (h *Handler) cancel(c *gin.Context) {
	principal, ok := auth.FromGin(c)
	if !ok {
		h.responder.Respond(c, sharederrors.ErrUnauthorized)
		return
	}
	order, err := h.service.CancelOrder(c.Request.Context(), principal.UserID, principal.HasRole(auth.RoleAdmin), c.Param("id"))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(order))
}

func (h *Handler) listAll(c *gin.Context) {
	filter := ports.ListFilter{
		Status: domain.Status(c.Query("status")),
		UserID: c.Query("user_id"),
	}
	orders, err := h.service.ListAllOrders(c.Request.Context(), filter)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponses(orders))
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	order, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), domain.Status(req.Status), req.TrackingNumber)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(order))
}

func (h *Handler) salesSummary(c *gin.Context) {
	summary, err := h.service.SalesSummary(c.Request.Context())
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	byStatus := make(map[string]int64, len(summary.OrdersByStatus))
	for status, count := range summary.OrdersByStatus {
		byStatus[string(status)] = count
	}
	c.JSON(http.StatusOK, salesSummaryResponse{
		OrdersByStatus: byStatus,
		GrossRevenue:   summary.GrossRevenue,
		RefundedAmount: summary.RefundedAmount,
	})
}

// paymentWebhook applies asynchronous gateway updates. The caller proves
// possession of the shared secret with an HMAC-SHA256 over the raw body.
func (h *Handler) paymentWebhook(c *gin.Context) {
	if len(h.webhookSecret) == 0 {
		h.responder.Respond(c, sharederrors.ErrForbidden.WithDetail("webhooks are not configured"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		h.responder.BadRequest(c, "unable to read request body")
		return
	}
	if !h.verifySignature(body, c.GetHeader(SignatureHeader)) {
		h.responder.Respond(c, sharederrors.ErrUnauthorized.WithDetail("invalid webhook signature"))
		return
	}
	var req webhookRequest
	if err := validation.UnmarshalAndValidate(c, body, &req, h.validate); err != nil {
		return
	}
	order, err := h.service.ApplyPaymentUpdate(c.Request.Context(), req.PaymentIntentID, req.Status == "succeeded")
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": order.ID, "payment_status": string(order.PaymentStatus)})
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.webhookSecret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func toResponse(order *domain.Order) orderResponse {
	lines := make([]lineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, lineResponse{
			ProductID:       line.ProductID,
			Name:            line.Name,
			PriceAtPurchase: line.PriceAtPurchase,
			Quantity:        line.Quantity,
			Subtotal:        line.Subtotal(),
		})
	}
	return orderResponse{
		ID:            order.ID,
		UserID:        order.UserID,
		Lines:         lines,
		Total:         order.Total,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		RefundStatus:  string(order.RefundStatus),
		ShippingAddress: addressRequest{
			Street:     order.ShippingAddress.Street,
			City:       order.ShippingAddress.City,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		TrackingNumber: order.TrackingNumber,
		CreatedAt:      order.CreatedAt,
	}
}

func toResponses(orders []*domain.Order) []orderResponse {
	responses := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		responses = append(responses, toResponse(order))
	}
	return responses
}

func mapOrderError(err error) (sharederrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, application.ErrEmptyCart):
		return sharederrors.ErrBadRequest.
			WithDetail("cart is empty").
			WithCode(sharederrors.CodeEmptyCart), true
	case errors.Is(err, application.ErrInvalidTotal):
		return sharederrors.ErrBadRequest.
			WithDetail("order total must be greater than zero").
			WithCode(sharederrors.CodeInvalidTotal), true
	case errors.Is(err, ports.ErrInsufficientStock):
		problem := sharederrors.ErrConflict.
			WithDetail(err.Error()).
			WithCode(sharederrors.CodeInsufficientStock)
		var stockErr *ports.InsufficientStockError
		if errors.As(err, &stockErr) {
			problem = problem.WithExtension("productId", stockErr.ProductID)
		}
		return problem, true
	case errors.Is(err, application.ErrPaymentFailed):
		return sharederrors.ErrPaymentRequired.
			WithDetail("the payment could not be completed").
			WithCode(sharederrors.CodePaymentFailed), true
	case errors.Is(err, application.ErrOrderFailed):
		return sharederrors.ErrInternal.
			WithDetail("the order could not be completed; the charge was refunded").
			WithCode(sharederrors.CodeOrderFailed), true
	case errors.Is(err, ports.ErrIdempotencyConflict):
		return sharederrors.ErrConflict.WithDetail("idempotency key was already used with a different request"), true
	case errors.Is(err, application.ErrForbidden):
		return sharederrors.ErrForbidden.WithDetail("order belongs to another user"), true
	case errors.Is(err, ports.ErrNotFound):
		return sharederrors.NewNotFoundProblem("order", ""), true
	case errors.Is(err, domain.ErrInvalidStatus):
		return sharederrors.ErrValidation.WithDetail("unknown order status"), true
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotCancellable):
		return sharederrors.ErrBadRequest.WithDetail(err.Error()), true
	case errors.Is(err, domain.ErrMissingAddress):
		return sharederrors.ErrValidation.WithDetail(err.Error()), true
	default:
		return sharederrors.ProblemDetail{}, false
	}
}
