// Package outbox implements the transactional outbox: events are inserted
// in the same database transaction as the state change that caused them and
// relayed to the broker afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Apurer/go-commerce-api-server/internal/shared/events"
)

// Record is one pending or sent outbox row.
type Record struct {
	ID        int64           `gorm:"primaryKey;column:id;autoIncrement"`
	EventID   string          `gorm:"column:event_id;size:64;uniqueIndex"`
	Topic     string          `gorm:"column:topic;size:128"`
	Key       string          `gorm:"column:key;size:128"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb"`
	CreatedAt time.Time       `gorm:"column:created_at;index"`
	SentAt    *time.Time      `gorm:"column:sent_at;index"`
}

// TableName maps the record to the outbox table.
func (Record) TableName() string { return "outbox" }

// Insert writes an event row using tx, which may be a transaction handle so
// the event commits atomically with the surrounding mutation.
func Insert(tx *gorm.DB, event events.Event) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	record := Record{
		EventID: event.EventID,
		Topic:   events.Topic,
		Key:     event.OrderID,
		Payload: payload,
	}
	return tx.Create(&record).Error
}

// FetchPending returns up to limit unsent rows in insertion order.
func FetchPending(ctx context.Context, db *gorm.DB, limit int) ([]Record, error) {
	var records []Record
	err := db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("id").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// MarkSent stamps a relayed row.
func MarkSent(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).
		Model(&Record{}).
		Where("id = ?", id).
		Update("sent_at", time.Now().UTC()).Error
}
