package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/go-commerce-api-server/internal/domains/cart/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/cart/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists cart lines in PostgreSQL using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	repo := &Repository{db: db}
	if db != nil {
		_ = db.AutoMigrate(&cartLineRecord{})
	}
	return repo
}

type cartLineRecord struct {
	ID        int64     `gorm:"primaryKey;column:id;autoIncrement"`
	UserID    string    `gorm:"column:user_id;size:36;uniqueIndex:idx_cart_user_product"`
	ProductID string    `gorm:"column:product_id;size:36;uniqueIndex:idx_cart_user_product"`
	Quantity  int64     `gorm:"column:quantity"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (cartLineRecord) TableName() string { return "cart_lines" }

// Lines returns the user's cart lines in insertion order.
func (r *Repository) Lines(ctx context.Context, userID string) ([]domain.Line, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []cartLineRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&records).Error; err != nil {
		return nil, err
	}
	lines := make([]domain.Line, 0, len(records))
	for _, record := range records {
		lines = append(lines, domain.Line{ProductID: record.ProductID, Quantity: record.Quantity})
	}
	return lines, nil
}

// Upsert inserts a line or increments the existing one's quantity atomically.
func (r *Repository) Upsert(ctx context.Context, userID string, line domain.Line) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	record := cartLineRecord{UserID: userID, ProductID: line.ProductID, Quantity: line.Quantity}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("cart_lines.quantity + ?", line.Quantity),
				"updated_at": gorm.Expr("NOW()"),
			}),
		}).Create(&record).Error
}

// SetQuantity replaces the quantity of an existing line.
func (r *Repository) SetQuantity(ctx context.Context, userID, productID string, quantity int64) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&cartLineRecord{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Update("quantity", quantity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrLineNotFound
	}
	return nil
}

// Remove drops a line.
func (r *Repository) Remove(ctx context.Context, userID, productID string) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&cartLineRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrLineNotFound
	}
	return nil
}

// Clear empties the user's cart.
func (r *Repository) Clear(ctx context.Context, userID string) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&cartLineRecord{}).Error
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres cart repository not configured")
	}
	return nil
}
