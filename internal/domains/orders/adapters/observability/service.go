package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
)

const tracerName = "github.com/Apurer/go-commerce-api-server/internal/domains/orders/adapters/observability/service"

// Service decorates the orders application port with tracing, logging, and
// metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

// Checkout runs the checkout orchestration with instrumentation.
func (s *Service) Checkout(ctx context.Context, input ports.CheckoutInput) (*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.Checkout", attribute.String("user.id", input.UserID))
	defer span.End()

	s.logInfo(ctx, "checkout started", slog.String("user.id", input.UserID))
	order, err := s.inner.Checkout(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "checkout failed", slog.String("user.id", input.UserID))
	}
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.total", order.Total.String()),
	)
	s.metrics.recordCheckout(ctx)
	s.logInfo(ctx, "checkout completed",
		slog.String("order.id", order.ID),
		slog.String("order.total", order.Total.String()),
	)
	return order, nil
}

// GetOrder loads one order.
func (s *Service) GetOrder(ctx context.Context, requesterID string, admin bool, orderID string) (*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.GetOrder", attribute.String("order.id", orderID))
	defer span.End()

	order, err := s.inner.GetOrder(ctx, requesterID, admin, orderID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load order", slog.String("order.id", orderID))
	}
	return order, nil
}

// ListOrders returns the requester's order history.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.ListOrders", attribute.String("user.id", userID))
	defer span.End()

	orders, err := s.inner.ListOrders(ctx, userID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list orders", slog.String("user.id", userID))
	}
	span.SetAttributes(attribute.Int("order.result.count", len(orders)))
	return orders, nil
}

// ListAllOrders is the admin view.
func (s *Service) ListAllOrders(ctx context.Context, filter ports.ListFilter) ([]*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.ListAllOrders", attribute.String("order.filter.status", string(filter.Status)))
	defer span.End()

	orders, err := s.inner.ListAllOrders(ctx, filter)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list all orders")
	}
	span.SetAttributes(attribute.Int("order.result.count", len(orders)))
	return orders, nil
}

// UpdateStatus advances the fulfillment state machine.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to domain.Status, trackingNumber string) (*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.UpdateStatus",
		attribute.String("order.id", orderID),
		attribute.String("order.status.target", string(to)),
	)
	defer span.End()

	s.logInfo(ctx, "updating order status",
		slog.String("order.id", orderID),
		slog.String("status", string(to)),
	)
	order, err := s.inner.UpdateStatus(ctx, orderID, to, trackingNumber)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to update order status", slog.String("order.id", orderID))
	}
	s.metrics.recordStatusChange(ctx, order.Status)
	return order, nil
}

// CancelOrder cancels and restocks.
func (s *Service) CancelOrder(ctx context.Context, requesterID string, admin bool, orderID string) (*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.CancelOrder", attribute.String("order.id", orderID))
	defer span.End()

	s.logInfo(ctx, "cancelling order", slog.String("order.id", orderID))
	order, err := s.inner.CancelOrder(ctx, requesterID, admin, orderID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to cancel order", slog.String("order.id", orderID))
	}
	s.metrics.recordStatusChange(ctx, order.Status)
	s.logInfo(ctx, "order cancelled", slog.String("order.id", order.ID))
	return order, nil
}

// ApplyPaymentUpdate records an asynchronous gateway status change.
func (s *Service) ApplyPaymentUpdate(ctx context.Context, intentID string, succeeded bool) (*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.ApplyPaymentUpdate",
		attribute.String("payment.intent_id", intentID),
		attribute.Bool("payment.succeeded", succeeded),
	)
	defer span.End()

	order, err := s.inner.ApplyPaymentUpdate(ctx, intentID, succeeded)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to apply payment update", slog.String("payment.intent_id", intentID))
	}
	s.logInfo(ctx, "payment update applied",
		slog.String("order.id", order.ID),
		slog.String("payment.status", string(order.PaymentStatus)),
	)
	return order, nil
}

// SalesSummary aggregates the admin analytics view.
func (s *Service) SalesSummary(ctx context.Context) (*ports.SalesSummary, error) {
	ctx, span := s.startSpan(ctx, "Service.SalesSummary")
	defer span.End()

	summary, err := s.inner.SalesSummary(ctx)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to aggregate sales summary")
	}
	return summary, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceMetrics struct {
	checkouts     metric.Int64Counter
	statusChanges metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	checkouts, _ := m.Int64Counter("orders.service.checkouts", metric.WithDescription("Number of completed checkouts"))
	statusChanges, _ := m.Int64Counter("orders.service.status_changes", metric.WithDescription("Number of order status transitions"))
	return serviceMetrics{
		checkouts:     checkouts,
		statusChanges: statusChanges,
	}
}

func (m serviceMetrics) recordCheckout(ctx context.Context) {
	addCounter(ctx, m.checkouts, 1)
}

func (m serviceMetrics) recordStatusChange(ctx context.Context, status domain.Status) {
	addCounter(ctx, m.statusChanges, 1, attribute.String("order.status", string(status)))
}

func addCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

var _ ports.Service = (*Service)(nil)
