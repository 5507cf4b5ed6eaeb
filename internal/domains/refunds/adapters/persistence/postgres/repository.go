package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/refunds/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists refund requests in PostgreSQL using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	repo := &Repository{db: db}
	if db != nil {
		_ = db.AutoMigrate(&refundRequestRecord{})
	}
	return repo
}

type refundRequestRecord struct {
	ID          string          `gorm:"primaryKey;column:id;size:36"`
	OrderID     string          `gorm:"column:order_id;size:36;index"`
	UserID      string          `gorm:"column:user_id;size:36;index"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2)"`
	Reason      string          `gorm:"column:reason;size:500"`
	Status      string          `gorm:"column:status;type:varchar(32);index"`
	ProcessedAt *time.Time      `gorm:"column:processed_at"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

func (refundRequestRecord) TableName() string { return "refund_requests" }

// Save upserts a refund request keyed by ID.
func (r *Repository) Save(ctx context.Context, request *domain.Request) (*domain.Request, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if request == nil {
		return nil, errors.New("refund request is nil")
	}
	record := toRecord(request)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"status":       record.Status,
				"processed_at": record.ProcessedAt,
				"updated_at":   gorm.Expr("NOW()"),
			}),
		}).Create(&record).Error; err != nil {
		return nil, err
	}
	return r.GetByID(ctx, record.ID)
}

// GetByID fetches a refund request.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record refundRequestRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// ListByOrder returns all requests for an order, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Request, error) {
	return r.listWhere(ctx, "order_id = ?", orderID)
}

// ListByStatus returns all requests in a lifecycle state, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Request, error) {
	return r.listWhere(ctx, "status = ?", string(status))
}

// HasOpenRequest reports whether a pending or approved request exists.
func (r *Repository) HasOpenRequest(ctx context.Context, orderID string) (bool, error) {
	if err := r.ensureDB(); err != nil {
		return false, err
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&refundRequestRecord{}).
		Where("order_id = ? AND status IN ?", orderID, []string{string(domain.StatusPending), string(domain.StatusApproved)}).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) listWhere(ctx context.Context, query string, arg string) ([]*domain.Request, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []refundRequestRecord
	if err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("created_at").
		Find(&records).Error; err != nil {
		return nil, err
	}
	requests := make([]*domain.Request, 0, len(records))
	for i := range records {
		requests = append(requests, records[i].toDomain())
	}
	return requests, nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres refund repository not configured")
	}
	return nil
}

func toRecord(request *domain.Request) refundRequestRecord {
	return refundRequestRecord{
		ID:          request.ID,
		OrderID:     request.OrderID,
		UserID:      request.UserID,
		Amount:      request.Amount,
		Reason:      request.Reason,
		Status:      string(request.Status),
		ProcessedAt: request.ProcessedAt,
		CreatedAt:   request.CreatedAt,
		UpdatedAt:   request.UpdatedAt,
	}
}

func (r refundRequestRecord) toDomain() *domain.Request {
	return &domain.Request{
		ID:          r.ID,
		OrderID:     r.OrderID,
		UserID:      r.UserID,
		Amount:      r.Amount,
		Reason:      r.Reason,
		Status:      domain.Status(r.Status),
		ProcessedAt: r.ProcessedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
