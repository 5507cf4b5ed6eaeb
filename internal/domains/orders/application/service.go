package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cartports "github.com/Apurer/go-commerce-api-server/internal/domains/cart/ports"
	catalogports "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/ports"
	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
)

const (
	// createOrderAttempts bounds retries of the persistence unit on
	// serialization conflicts. The gateway charge is never retried.
	createOrderAttempts = 3
	defaultChargeTimeout = 10 * time.Second
	compensationTimeout  = 15 * time.Second
)

var _ ports.Service = (*Service)(nil)

// Service orchestrates checkout and the order lifecycle.
type Service struct {
	repo          ports.Repository
	gateway       ports.PaymentGateway
	carts         cartports.Repository
	products      catalogports.Repository
	notifier      ports.Notifier
	logger        *slog.Logger
	chargeTimeout time.Duration
}

type Option func(*Service)

// WithNotifier wires the best-effort notification dispatcher.
func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithChargeTimeout bounds the gateway charge call.
func WithChargeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.chargeTimeout = d
		}
	}
}

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(repo ports.Repository, gateway ports.PaymentGateway, carts cartports.Repository, products catalogports.Repository, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		gateway:       gateway,
		carts:         carts,
		products:      products,
		logger:        slog.Default(),
		chargeTimeout: defaultChargeTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Checkout converts the buyer's cart into a confirmed order. The gateway is
// charged exactly once, before the persistence unit; if the unit ultimately
// fails, the charge is compensated with a refund and the cart is untouched.
func (s *Service) Checkout(ctx context.Context, input ports.CheckoutInput) (*domain.Order, error) {
	requestHash := checkoutRequestHash(input)
	if input.IdempotencyKey != "" {
		stored, storedHash, err := s.repo.FindByIdempotencyKey(ctx, input.UserID, input.IdempotencyKey)
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return nil, err
		}
		if stored != nil {
			if storedHash != requestHash {
				return nil, ports.ErrIdempotencyConflict
			}
			return stored, nil
		}
	}

	lines, err := s.pricedCartLines(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	order, err := domain.NewOrder(input.UserID, lines, input.ShippingAddress)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTotal) {
			return nil, ErrInvalidTotal
		}
		return nil, err
	}

	intent, err := s.charge(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	order.MarkPaid(intent.ID)

	if err := s.createWithRetry(ctx, order, input.IdempotencyKey, requestHash); err != nil {
		s.compensate(order, intent.ID)
		switch {
		case errors.Is(err, ports.ErrInsufficientStock):
			return nil, err
		case errors.Is(err, ports.ErrIdempotencyConflict):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %w", ErrOrderFailed, err)
		}
	}

	if s.notifier != nil {
		s.notifier.OrderConfirmed(ctx, order)
	}
	return order, nil
}

// GetOrder loads an order; non-admin requesters only see their own.
func (s *Service) GetOrder(ctx context.Context, requesterID string, admin bool, orderID string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !admin && order.UserID != requesterID {
		return nil, ErrForbidden
	}
	return order, nil
}

// ListOrders returns the requester's order history, newest first.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListAllOrders is the admin view with optional status and user filters.
func (s *Service) ListAllOrders(ctx context.Context, filter ports.ListFilter) ([]*domain.Order, error) {
	if filter.Status != "" && !domain.ValidStatus(filter.Status) {
		return nil, domain.ErrInvalidStatus
	}
	return s.repo.List(ctx, filter)
}

// UpdateStatus advances the fulfillment state machine. Cancellation routes
// through CancelOrder so stock is returned.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to domain.Status, trackingNumber string) (*domain.Order, error) {
	if !domain.ValidStatus(to) {
		return nil, domain.ErrInvalidStatus
	}
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if to == domain.StatusCancelled {
		return s.cancel(ctx, order)
	}
	if !domain.CanTransition(order.Status, to) {
		return nil, domain.ErrInvalidTransition
	}
	if err := s.repo.SetStatus(ctx, orderID, order.Status, to, trackingNumber); err != nil {
		return nil, err
	}
	updated, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, updated)
	}
	return updated, nil
}

// CancelOrder cancels a pending or processing order and restocks its lines.
func (s *Service) CancelOrder(ctx context.Context, requesterID string, admin bool, orderID string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !admin && order.UserID != requesterID {
		return nil, ErrForbidden
	}
	return s.cancel(ctx, order)
}

// ApplyPaymentUpdate records an asynchronous gateway status change.
func (s *Service) ApplyPaymentUpdate(ctx context.Context, intentID string, succeeded bool) (*domain.Order, error) {
	status := domain.PaymentCompleted
	if !succeeded {
		status = domain.PaymentFailed
	}
	return s.repo.SetPaymentStatusByIntent(ctx, intentID, status)
}

// SalesSummary aggregates the admin analytics view.
func (s *Service) SalesSummary(ctx context.Context) (*ports.SalesSummary, error) {
	return s.repo.SalesSummary(ctx)
}

func (s *Service) cancel(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := order.Cancel(); err != nil {
		return nil, err
	}
	if err := s.repo.CancelOrder(ctx, order); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.OrderCancelled(ctx, order)
	}
	return order, nil
}

// pricedCartLines loads the cart and freezes current catalog prices into
// order lines. Lines pointing at deleted or unpriced products are dropped.
func (s *Service) pricedCartLines(ctx context.Context, userID string) ([]domain.Line, error) {
	cartLines, err := s.carts.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cartLines) == 0 {
		return nil, ErrEmptyCart
	}
	ids := make([]string, 0, len(cartLines))
	for _, line := range cartLines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(products))
	for i, product := range products {
		byID[product.ID] = i
	}
	lines := make([]domain.Line, 0, len(cartLines))
	for _, cartLine := range cartLines {
		i, ok := byID[cartLine.ProductID]
		if !ok {
			continue
		}
		product := products[i]
		if !product.Price.IsPositive() {
			continue
		}
		if product.Stock < cartLine.Quantity {
			return nil, &ports.InsufficientStockError{ProductID: product.ID}
		}
		lines = append(lines, domain.Line{
			ProductID:       product.ID,
			Name:            product.Name,
			PriceAtPurchase: product.Price,
			Quantity:        cartLine.Quantity,
		})
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	return lines, nil
}

func (s *Service) charge(ctx context.Context, order *domain.Order) (ports.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.chargeTimeout)
	defer cancel()
	description := fmt.Sprintf("order for user %s (%d items)", order.UserID, len(order.Lines))
	return s.gateway.Charge(ctx, order.Total, description)
}

// createWithRetry re-runs the persistence unit on serialization conflicts.
// The payment already happened; only the database work is retried.
func (s *Service) createWithRetry(ctx context.Context, order *domain.Order, idempotencyKey, requestHash string) error {
	var err error
	for attempt := 1; attempt <= createOrderAttempts; attempt++ {
		err = s.repo.CreateOrder(ctx, order, idempotencyKey, requestHash)
		if err == nil || !errors.Is(err, ports.ErrTxConflict) {
			return err
		}
		s.logger.WarnContext(ctx, "order creation conflict, retrying",
			slog.String("order.id", order.ID),
			slog.Int("attempt", attempt),
		)
	}
	return err
}

// compensate refunds a charge whose order never committed. Best effort: a
// failed refund is logged and left to reconciliation.
func (s *Service) compensate(order *domain.Order, intentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), compensationTimeout)
	defer cancel()
	if _, err := s.gateway.Refund(ctx, intentID, order.Total); err != nil {
		s.logger.ErrorContext(ctx, "compensating refund failed",
			slog.String("order.id", order.ID),
			slog.String("payment.intent_id", intentID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "compensating refund issued",
		slog.String("order.id", order.ID),
		slog.String("payment.intent_id", intentID),
	)
}

// checkoutRequestHash fingerprints the request so an idempotency key cannot
// be replayed with different contents.
func checkoutRequestHash(input ports.CheckoutInput) string {
	payload := strings.Join([]string{
		input.UserID,
		input.ShippingAddress.Street,
		input.ShippingAddress.City,
		input.ShippingAddress.PostalCode,
		input.ShippingAddress.Country,
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
