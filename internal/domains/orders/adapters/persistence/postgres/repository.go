package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
	"github.com/Apurer/go-commerce-api-server/internal/platform/outbox"
	platformpostgres "github.com/Apurer/go-commerce-api-server/internal/platform/postgres"
	"github.com/Apurer/go-commerce-api-server/internal/shared/events"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists orders in PostgreSQL using GORM. CreateOrder and
// CancelOrder each run as one serializable-enough transaction: conditional
// stock updates carry their own compare-and-set predicates, so READ COMMITTED
// suffices for correctness and conflicts surface as zero-row updates.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	repo := &Repository{db: db}
	if db != nil {
		_ = db.AutoMigrate(&orderRecord{}, &orderLineRecord{}, &idempotencyRecord{}, &outbox.Record{})
	}
	return repo
}

type orderRecord struct {
	ID              string          `gorm:"primaryKey;column:id;size:36"`
	UserID          string          `gorm:"column:user_id;size:36;index"`
	Total           decimal.Decimal `gorm:"column:total;type:numeric(12,2)"`
	Street          string          `gorm:"column:street;size:200"`
	City            string          `gorm:"column:city;size:100"`
	PostalCode      string          `gorm:"column:postal_code;size:16"`
	Country         string          `gorm:"column:country;size:100"`
	Status          string          `gorm:"column:status;type:varchar(32);index:idx_orders_status"`
	PaymentStatus   string          `gorm:"column:payment_status;type:varchar(32)"`
	RefundStatus    string          `gorm:"column:refund_status;type:varchar(32)"`
	PaymentIntentID string          `gorm:"column:payment_intent_id;size:64;index"`
	TrackingNumber  string          `gorm:"column:tracking_number;size:64"`
	CreatedAt       time.Time       `gorm:"column:created_at;index"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }

type orderLineRecord struct {
	ID              int64           `gorm:"primaryKey;column:id;autoIncrement"`
	OrderID         string          `gorm:"column:order_id;size:36;index"`
	ProductID       string          `gorm:"column:product_id;size:36"`
	Name            string          `gorm:"column:name;size:100"`
	Quantity        int64           `gorm:"column:quantity;check:quantity >= 1"`
	PriceAtPurchase decimal.Decimal `gorm:"column:price_at_purchase;type:numeric(12,2)"`
}

func (orderLineRecord) TableName() string { return "order_lines" }

type idempotencyRecord struct {
	Key         string    `gorm:"primaryKey;column:key;size:255"`
	UserID      string    `gorm:"column:user_id;size:36;index"`
	RequestHash string    `gorm:"column:request_hash;size:128"`
	OrderID     string    `gorm:"column:order_id;size:36"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (idempotencyRecord) TableName() string { return "order_idempotency_keys" }

// CreateOrder runs the checkout persistence unit: conditional stock
// decrements, order insert, cart clear, outbox event, idempotency record.
// Any failed decrement rolls the whole unit back.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, idempotencyKey, requestHash string) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range order.Lines {
			result := tx.Exec(
				"UPDATE products SET stock = stock - ?, updated_at = NOW() WHERE id = ? AND stock >= ?",
				line.Quantity, line.ProductID, line.Quantity,
			)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return &ports.InsufficientStockError{ProductID: line.ProductID}
			}
		}
		record := toRecord(order)
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		lineRecords := toLineRecords(order)
		if err := tx.Create(&lineRecords).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM cart_lines WHERE user_id = ?", order.UserID).Error; err != nil {
			return err
		}
		if err := outbox.Insert(tx, events.Event{
			OrderID: order.ID,
			UserID:  order.UserID,
			Type:    events.EventOrderConfirmed,
			Payload: map[string]any{"total": order.Total.String()},
		}); err != nil {
			return err
		}
		if idempotencyKey != "" {
			idem := idempotencyRecord{
				Key:         idempotencyKey,
				UserID:      order.UserID,
				RequestHash: requestHash,
				OrderID:     order.ID,
			}
			if err := tx.Create(&idem).Error; err != nil {
				if platformpostgres.IsUniqueViolation(err) {
					return ports.ErrIdempotencyConflict
				}
				return err
			}
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	return mapTxError(err)
}

// FindByIdempotencyKey loads the order stored under a checkout replay key.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, string, error) {
	if err := r.ensureDB(); err != nil {
		return nil, "", err
	}
	var idem idempotencyRecord
	err := r.db.WithContext(ctx).
		First(&idem, "key = ? AND user_id = ?", key, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ports.ErrNotFound
		}
		return nil, "", err
	}
	order, err := r.GetByID(ctx, idem.OrderID)
	if err != nil {
		return nil, "", err
	}
	return order, idem.RequestHash, nil
}

// GetByID loads an order with its lines.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record orderRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	lines, err := r.linesFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return record.toDomain(lines[id]), nil
}

// ListByUser returns a user's orders, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("user_id = ?", userID))
}

// List is the admin listing with optional filters.
func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx)
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	return r.list(ctx, query)
}

// SetStatus conditionally advances fulfillment state. Zero rows means the
// order moved underneath us or does not exist.
func (r *Repository) SetStatus(ctx context.Context, id string, from, to domain.Status, trackingNumber string) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	updates := map[string]any{
		"status":     string(to),
		"updated_at": gorm.Expr("NOW()"),
	}
	if trackingNumber != "" {
		updates["tracking_number"] = trackingNumber
	}
	result := r.db.WithContext(ctx).
		Model(&orderRecord{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&orderRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ports.ErrNotFound
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

// CancelOrder cancels and restocks in one transaction. Restock updates skip
// products deleted since purchase.
func (r *Repository) CancelOrder(ctx context.Context, order *domain.Order) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&orderRecord{}).
			Where("id = ? AND status IN ?", order.ID, []string{string(domain.StatusPending), string(domain.StatusProcessing)}).
			Updates(map[string]any{
				"status":     string(domain.StatusCancelled),
				"updated_at": gorm.Expr("NOW()"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotCancellable
		}
		for _, line := range order.Lines {
			if err := tx.Exec(
				"UPDATE products SET stock = stock + ?, updated_at = NOW() WHERE id = ?",
				line.Quantity, line.ProductID,
			).Error; err != nil {
				return err
			}
		}
		return outbox.Insert(tx, events.Event{
			OrderID: order.ID,
			UserID:  order.UserID,
			Type:    events.EventOrderCancelled,
			Payload: map[string]any{"total": order.Total.String()},
		})
	})
	return mapTxError(err)
}

// SetRefundStatus records refund progress on the order.
func (r *Repository) SetRefundStatus(ctx context.Context, id string, refund domain.RefundStatus, payment domain.PaymentStatus) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	updates := map[string]any{
		"refund_status": string(refund),
		"updated_at":    gorm.Expr("NOW()"),
	}
	if payment != "" {
		updates["payment_status"] = string(payment)
	}
	result := r.db.WithContext(ctx).
		Model(&orderRecord{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// SetPaymentStatusByIntent applies an asynchronous gateway update.
func (r *Repository) SetPaymentStatusByIntent(ctx context.Context, intentID string, status domain.PaymentStatus) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record orderRecord
	if err := r.db.WithContext(ctx).First(&record, "payment_intent_id = ?", intentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Model(&orderRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]any{
			"payment_status": string(status),
			"updated_at":     gorm.Expr("NOW()"),
		}).Error; err != nil {
		return nil, err
	}
	return r.GetByID(ctx, record.ID)
}

// ExistsByPaymentIntent reports whether any order references the intent.
func (r *Repository) ExistsByPaymentIntent(ctx context.Context, intentID string) (bool, error) {
	if err := r.ensureDB(); err != nil {
		return false, err
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&orderRecord{}).
		Where("payment_intent_id = ?", intentID).
		Count(&count).Error
	return count > 0, err
}

// SalesSummary aggregates counts and revenue for the admin dashboard.
func (r *Repository) SalesSummary(ctx context.Context) (*ports.SalesSummary, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := r.db.WithContext(ctx).
		Model(&orderRecord{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	summary := &ports.SalesSummary{
		OrdersByStatus: map[domain.Status]int64{},
		GrossRevenue:   decimal.Zero,
		RefundedAmount: decimal.Zero,
	}
	for _, row := range counts {
		summary.OrdersByStatus[domain.Status(row.Status)] = row.Count
	}
	var gross sql.NullString
	if err := r.db.WithContext(ctx).
		Model(&orderRecord{}).
		Where("status <> ?", string(domain.StatusCancelled)).
		Select("COALESCE(SUM(total), 0)").
		Scan(&gross).Error; err != nil {
		return nil, err
	}
	if gross.Valid {
		amount, err := decimal.NewFromString(gross.String)
		if err != nil {
			return nil, err
		}
		summary.GrossRevenue = amount
	}
	var refunded sql.NullString
	if err := r.db.WithContext(ctx).
		Table("refund_requests").
		Where("status = ?", "processed").
		Select("COALESCE(SUM(amount), 0)").
		Scan(&refunded).Error; err != nil {
		return nil, err
	}
	if refunded.Valid {
		amount, err := decimal.NewFromString(refunded.String)
		if err != nil {
			return nil, err
		}
		summary.RefundedAmount = amount
	}
	return summary, nil
}

func (r *Repository) list(ctx context.Context, query *gorm.DB) ([]*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []orderRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []*domain.Order{}, nil
	}
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(records))
	for i := range records {
		orders = append(orders, records[i].toDomain(lines[records[i].ID]))
	}
	return orders, nil
}

func (r *Repository) linesFor(ctx context.Context, orderIDs []string) (map[string][]domain.Line, error) {
	var records []orderLineRecord
	if err := r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("id").
		Find(&records).Error; err != nil {
		return nil, err
	}
	lines := make(map[string][]domain.Line, len(orderIDs))
	for _, record := range records {
		lines[record.OrderID] = append(lines[record.OrderID], domain.Line{
			ProductID:       record.ProductID,
			Name:            record.Name,
			PriceAtPurchase: record.PriceAtPurchase,
			Quantity:        record.Quantity,
		})
	}
	return lines, nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres order repository not configured")
	}
	return nil
}

// mapTxError folds retryable PostgreSQL failures into ErrTxConflict.
func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	if platformpostgres.IsSerializationFailure(err) {
		return ports.ErrTxConflict
	}
	return err
}

func toRecord(order *domain.Order) orderRecord {
	return orderRecord{
		ID:              order.ID,
		UserID:          order.UserID,
		Total:           order.Total,
		Street:          order.ShippingAddress.Street,
		City:            order.ShippingAddress.City,
		PostalCode:      order.ShippingAddress.PostalCode,
		Country:         order.ShippingAddress.Country,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		RefundStatus:    string(order.RefundStatus),
		PaymentIntentID: order.PaymentIntentID,
		TrackingNumber:  order.TrackingNumber,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func toLineRecords(order *domain.Order) []orderLineRecord {
	records := make([]orderLineRecord, 0, len(order.Lines))
	for _, line := range order.Lines {
		records = append(records, orderLineRecord{
			OrderID:         order.ID,
			ProductID:       line.ProductID,
			Name:            line.Name,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.PriceAtPurchase,
		})
	}
	return records
}

func (r orderRecord) toDomain(lines []domain.Line) *domain.Order {
	return &domain.Order{
		ID:     r.ID,
		UserID: r.UserID,
		Lines:  lines,
		Total:  r.Total,
		Status: domain.Status(r.Status),
		ShippingAddress: domain.Address{
			Street:     r.Street,
			City:       r.City,
			PostalCode: r.PostalCode,
			Country:    r.Country,
		},
		PaymentStatus:   domain.PaymentStatus(r.PaymentStatus),
		RefundStatus:    domain.RefundStatus(r.RefundStatus),
		PaymentIntentID: r.PaymentIntentID,
		TrackingNumber:  r.TrackingNumber,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
