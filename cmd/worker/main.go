package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	gatewayclient "github.com/Apurer/go-commerce-api-server/internal/clients/http/gateway"
	cartmemory "github.com/Apurer/go-commerce-api-server/internal/domains/cart/adapters/memory"
	catalogmemory "github.com/Apurer/go-commerce-api-server/internal/domains/catalog/adapters/memory"
	ordersmemory "github.com/Apurer/go-commerce-api-server/internal/domains/orders/adapters/memory"
	orderspostgres "github.com/Apurer/go-commerce-api-server/internal/domains/orders/adapters/persistence/postgres"
	ordersports "github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
	reconworkflows "github.com/Apurer/go-commerce-api-server/internal/durable/temporal/workflows/reconciliation"
	platformkafka "github.com/Apurer/go-commerce-api-server/internal/platform/kafka"
	platformmetrics "github.com/Apurer/go-commerce-api-server/internal/platform/metrics"
	platformobservability "github.com/Apurer/go-commerce-api-server/internal/platform/observability"
	"github.com/Apurer/go-commerce-api-server/internal/platform/outbox"
	platformpostgres "github.com/Apurer/go-commerce-api-server/internal/platform/postgres"
	reconactivities "github.com/Apurer/go-commerce-api-server/internal/platform/temporal/activities/reconciliation"
)

func main() {
	ctx := context.Background()
	const serviceName = "commerce-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	db, cleanupDB := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanupDB()

	var orderRepo ordersports.Repository
	if db != nil {
		orderRepo = orderspostgres.NewRepository(db)
	} else {
		logger.Warn("POSTGRES_DSN not set; using in-memory order repository")
		orderRepo = ordersmemory.NewRepository(catalogmemory.NewRepository(), cartmemory.NewRepository())
	}

	gateway, err := buildGateway(logger)
	if err != nil {
		logger.Error("failed to configure payment gateway", slog.String("error", err.Error()))
		os.Exit(1)
	}

	metrics := platformmetrics.NewServerMetrics("worker")
	activities := reconactivities.NewActivities(gateway, orderRepo, metrics.ReconciliationGaps)

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	if db != nil {
		kafkaClient := platformkafka.NewClient(os.Getenv("KAFKA_BROKERS"))
		if kafkaClient.Enabled() {
			relay := outbox.NewRelay(db, kafkaClient, logger)
			go relay.Run(relayCtx)
			logger.Info("outbox relay started")
		} else {
			logger.Warn("KAFKA_BROKERS not set; outbox relay disabled")
		}
	}

	tracerOptions := temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		logger.Error("failed to configure Temporal tracing interceptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clientOptions := client.Options{
		HostPort:  envOrDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		Namespace: envOrDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, reconworkflows.PaymentReconciliationTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(reconworkflows.PaymentReconciliationWorkflow, workflow.RegisterOptions{Name: reconworkflows.PaymentReconciliationWorkflowName})
	w.RegisterActivityWithOptions(activities.ListGatewayTransactions, activity.RegisterOptions{Name: reconactivities.ListGatewayTransactionsActivityName})
	w.RegisterActivityWithOptions(activities.FlagOrphanCharges, activity.RegisterOptions{Name: reconactivities.FlagOrphanChargesActivityName})

	if cron := strings.TrimSpace(os.Getenv("RECONCILIATION_CRON")); cron != "" {
		startCronSweep(ctx, temporalClient, logger, cron)
	}

	logger.Info("worker listening",
		slog.String("taskQueue", reconworkflows.PaymentReconciliationTaskQueue),
		slog.String("namespace", clientOptions.Namespace),
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("worker stopped")
}

// startCronSweep schedules the recurring reconciliation run. An
// already-running cron workflow is fine; the start is idempotent by ID.
func startCronSweep(ctx context.Context, temporalClient client.Client, logger *slog.Logger, cron string) {
	options := client.StartWorkflowOptions{
		ID:           "payment-reconciliation-cron",
		TaskQueue:    reconworkflows.PaymentReconciliationTaskQueue,
		CronSchedule: cron,
	}
	input := reconworkflows.PaymentReconciliationWorkflowInput{Lookback: reconworkflows.DefaultLookback}
	if _, err := temporalClient.ExecuteWorkflow(ctx, options, reconworkflows.PaymentReconciliationWorkflowName, input); err != nil {
		logger.Error("failed to schedule reconciliation cron", slog.String("error", err.Error()))
		return
	}
	logger.Info("reconciliation cron scheduled", slog.String("cron", cron))
}

// buildGateway prefers the real HTTP gateway; without a base URL the
// in-process fake keeps the worker functional for local runs.
func buildGateway(logger *slog.Logger) (ordersports.PaymentGateway, error) {
	baseURL := strings.TrimSpace(os.Getenv("PAYMENT_GATEWAY_URL"))
	if baseURL == "" {
		logger.Warn("PAYMENT_GATEWAY_URL not set; using in-memory payment gateway")
		return ordersmemory.NewGateway(), nil
	}
	return gatewayclient.NewClient(baseURL, os.Getenv("PAYMENT_GATEWAY_API_KEY"))
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
