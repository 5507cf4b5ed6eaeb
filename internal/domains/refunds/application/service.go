package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	ordersdomain "github.com/Apurer/go-commerce-api-server/internal/domains/orders/domain"
	ordersports "github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/ports"
)

var (
	// ErrForbidden means the requester does not own the order.
	ErrForbidden = errors.New("order belongs to another user")
	// ErrOrderNotRefundable means the order's payment never completed.
	ErrOrderNotRefundable = errors.New("order payment is not refundable")
	// ErrGatewayRefundFailed wraps a gateway failure during processing; the
	// request stays approved for a later retry.
	ErrGatewayRefundFailed = errors.New("gateway refund failed")
)

const gatewayRefundTimeout = 15 * time.Second

var _ ports.Service = (*Service)(nil)

// Service handles the refund request lifecycle.
type Service struct {
	repo     ports.Repository
	orders   ordersports.Repository
	gateway  ordersports.PaymentGateway
	notifier ports.Notifier
	logger   *slog.Logger
}

type Option func(*Service)

// WithNotifier wires the best-effort notification dispatcher.
func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(repo ports.Repository, orders ordersports.Repository, gateway ordersports.PaymentGateway, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		orders:  orders,
		gateway: gateway,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Request opens a refund request for an order the caller owns. At most one
// pending or approved request may exist per order.
func (s *Service) Request(ctx context.Context, input ports.RequestInput) (*domain.Request, error) {
	order, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != input.UserID {
		return nil, ErrForbidden
	}
	if order.PaymentStatus != ordersdomain.PaymentCompleted {
		return nil, ErrOrderNotRefundable
	}
	open, err := s.repo.HasOpenRequest(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, ports.ErrOpenRequestExists
	}
	request, err := domain.NewRequest(order.ID, input.UserID, input.Amount, order.Total, input.Reason)
	if err != nil {
		return nil, err
	}
	saved, err := s.repo.Save(ctx, request)
	if err != nil {
		return nil, err
	}
	if err := s.orders.SetRefundStatus(ctx, order.ID, ordersdomain.RefundRequested, ""); err != nil {
		return nil, err
	}
	return saved, nil
}

// Process applies an admin decision. Approval moves money through the
// gateway before the request is marked processed; a gateway failure leaves
// the request approved so the operation can be retried.
func (s *Service) Process(ctx context.Context, requestID string, decision ports.Decision) (*domain.Request, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch decision {
	case ports.DecisionReject:
		if err := request.Reject(); err != nil {
			return nil, err
		}
		if _, err := s.repo.Save(ctx, request); err != nil {
			return nil, err
		}
		if err := s.orders.SetRefundStatus(ctx, request.OrderID, ordersdomain.RefundNone, ""); err != nil {
			return nil, err
		}
		return request, nil
	case ports.DecisionApprove:
		return s.approve(ctx, request)
	default:
		return nil, domain.ErrInvalidDecision
	}
}

// GetByID loads a refund request.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	return s.repo.GetByID(ctx, id)
}

// ListPending returns requests awaiting an admin decision.
func (s *Service) ListPending(ctx context.Context) ([]*domain.Request, error) {
	return s.repo.ListByStatus(ctx, domain.StatusPending)
}

func (s *Service) approve(ctx context.Context, request *domain.Request) (*domain.Request, error) {
	if request.Status != domain.StatusPending && request.Status != domain.StatusApproved {
		return nil, domain.ErrAlreadyDecided
	}
	order, err := s.orders.GetByID(ctx, request.OrderID)
	if err != nil {
		return nil, err
	}
	if request.Status == domain.StatusPending {
		if err := request.Approve(); err != nil {
			return nil, err
		}
		if _, err := s.repo.Save(ctx, request); err != nil {
			return nil, err
		}
	}

	refundCtx, cancel := context.WithTimeout(ctx, gatewayRefundTimeout)
	defer cancel()
	if _, err := s.gateway.Refund(refundCtx, order.PaymentIntentID, request.Amount); err != nil {
		s.logger.ErrorContext(ctx, "gateway refund failed",
			slog.String("refund.id", request.ID),
			slog.String("order.id", order.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrGatewayRefundFailed, err)
	}

	request.MarkProcessed()
	if _, err := s.repo.Save(ctx, request); err != nil {
		return nil, err
	}
	refundStatus := ordersdomain.RefundPartial
	paymentStatus := ordersdomain.PaymentStatus("")
	if request.Amount.GreaterThanOrEqual(order.Total) {
		refundStatus = ordersdomain.RefundFull
		paymentStatus = ordersdomain.PaymentRefunded
	}
	if err := s.orders.SetRefundStatus(ctx, order.ID, refundStatus, paymentStatus); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.RefundProcessed(ctx, request)
	}
	return request, nil
}
