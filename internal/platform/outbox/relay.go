package outbox

import (
	"context"
	"log/slog"
	"time"

	segmentio "github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	platformkafka "github.com/Apurer/go-commerce-api-server/internal/platform/kafka"
	"github.com/Apurer/go-commerce-api-server/internal/shared/events"
)

const (
	relayBatchSize = 100
	relayInterval  = 2 * time.Second
)

// Relay polls the outbox and publishes pending rows to kafka. When kafka is
// disabled the relay only logs, so local runs without a broker keep working.
type Relay struct {
	db     *gorm.DB
	writer *segmentio.Writer
	logger *slog.Logger
}

// NewRelay wires a relay; writer may be nil when publishing is disabled.
func NewRelay(db *gorm.DB, client *platformkafka.Client, logger *slog.Logger) *Relay {
	var writer *segmentio.Writer
	if client.Enabled() {
		writer = client.NewWriter(events.Topic)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{db: db, writer: writer, logger: logger}
}

// Run polls until ctx is cancelled. Rows that fail to publish stay pending
// and are retried on the next tick.
func (r *Relay) Run(ctx context.Context) {
	if r.db == nil {
		r.logger.Warn("outbox relay disabled, no database configured")
		return
	}
	ticker := time.NewTicker(relayInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if r.writer != nil {
				_ = r.writer.Close()
			}
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	records, err := FetchPending(ctx, r.db, relayBatchSize)
	if err != nil {
		r.logger.Error("outbox fetch failed", slog.String("error", err.Error()))
		return
	}
	for _, record := range records {
		if r.writer != nil {
			if err := r.writer.WriteMessages(ctx, segmentio.Message{
				Key:   []byte(record.Key),
				Value: record.Payload,
				Time:  record.CreatedAt,
			}); err != nil {
				r.logger.Error("outbox publish failed",
					slog.String("eventId", record.EventID),
					slog.String("error", err.Error()))
				return
			}
		}
		if err := MarkSent(ctx, r.db, record.ID); err != nil {
			r.logger.Error("outbox mark-sent failed",
				slog.String("eventId", record.EventID),
				slog.String("error", err.Error()))
			return
		}
	}
}
