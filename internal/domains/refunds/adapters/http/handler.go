// Package http exposes refund requests and admin processing over gin.
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	ordersports "github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/application"
	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/ports"
	"github.com/Apurer/go-commerce-api-server/internal/platform/auth"
	sharederrors "github.com/Apurer/go-commerce-api-server/internal/shared/errors"
	"github.com/Apurer/go-commerce-api-server/internal/shared/validation"
)

// Handler serves refund requests and admin decisions.
type Handler struct {
	service   ports.Service
	validate  *validatorv10.Validate
	responder *sharederrors.ChainedResponder
}

func NewHandler(service ports.Service, validate *validatorv10.Validate) *Handler {
	return &Handler{
		service:   service,
		validate:  validate,
		responder: sharederrors.NewChainedResponder("", mapRefundError),
	}
}

// Register mounts the authenticated refund request route.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/orders/:id/refunds", h.request)
}

// RegisterAdmin mounts the refund processing routes.
func (h *Handler) RegisterAdmin(r gin.IRoutes) {
	r.GET("/refunds", h.listPending)
	r.PUT("/refunds/:id", h.process)
}

type requestRefundRequest struct {
	// Amount is optional; zero means the full order total.
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"max=500"`
}

type processRefundRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
}

type refundResponse struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason,omitempty"`
	Status      string          `json:"status"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (h *Handler) request(c *gin.Context) {
	principal, ok := auth.FromGin(c)
	if !ok {
		h.responder.Respond(c, sharederrors.ErrUnauthorized)
		return
	}
	var req requestRefundRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	request, err := h.service.Request(c.Request.Context(), ports.RequestInput{
		OrderID: c.Param("id"),
		UserID:  principal.UserID,
		Amount:  req.Amount,
		Reason:  req.Reason,
	})
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(request))
}

func (h *Handler) listPending(c *gin.Context) {
	requests, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	responses := make([]refundResponse, 0, len(requests))
	for _, request := range requests {
		responses = append(responses, toResponse(request))
	}
	c.JSON(http.StatusOK, responses)
}

func (h *Handler) process(c *gin.Context) {
	var req processRefundRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	request, err := h.service.Process(c.Request.Context(), c.Param("id"), ports.Decision(req.Decision))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(request))
}

func toResponse(request *domain.Request) refundResponse {
	return refundResponse{
		ID:          request.ID,
		OrderID:     request.OrderID,
		UserID:      request.UserID,
		Amount:      request.Amount,
		Reason:      request.Reason,
		Status:      string(request.Status),
		ProcessedAt: request.ProcessedAt,
		CreatedAt:   request.CreatedAt,
	}
}

func mapRefundError(err error) (sharederrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return sharederrors.NewNotFoundProblem("refund request", ""), true
	case errors.Is(err, ordersports.ErrNotFound):
		return sharederrors.NewNotFoundProblem("order", ""), true
	case errors.Is(err, application.ErrForbidden):
		return sharederrors.ErrForbidden.WithDetail("order belongs to another user"), true
	case errors.Is(err, ports.ErrOpenRequestExists):
		return sharederrors.ErrBadRequest.WithDetail(err.Error()), true
	case errors.Is(err, domain.ErrAlreadyDecided):
		return sharederrors.ErrConflict.WithDetail(err.Error()), true
	case errors.Is(err, application.ErrOrderNotRefundable):
		return sharederrors.ErrConflict.WithDetail(err.Error()), true
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountTooLarge),
		errors.Is(err, domain.ErrReasonTooLong),
		errors.Is(err, domain.ErrInvalidDecision):
		return sharederrors.ErrValidation.WithDetail(err.Error()), true
	case errors.Is(err, application.ErrGatewayRefundFailed):
		return sharederrors.ProblemDetail{
			Type:   sharederrors.TypeInternal,
			Title:  "Refund Processing Failed",
			Status: http.StatusBadGateway,
			Detail: "the payment gateway rejected the refund; the request stays approved for retry",
		}, true
	default:
		return sharederrors.ProblemDetail{}, false
	}
}
