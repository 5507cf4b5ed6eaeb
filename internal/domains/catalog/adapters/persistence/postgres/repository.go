package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/go-commerce-api-server/internal/domains/catalog/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/catalog/ports"
	platformpostgres "github.com/Apurer/go-commerce-api-server/internal/platform/postgres"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists products in PostgreSQL using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	repo := &Repository{db: db}
	if db != nil {
		_ = db.AutoMigrate(&productRecord{}, &priceHistoryRecord{})
	}
	return repo
}

// productRecord maps the product aggregate to a relational table.
type productRecord struct {
	ID        string          `gorm:"primaryKey;column:id;size:36"`
	Name      string          `gorm:"column:name;size:100"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2)"`
	Stock     int64           `gorm:"column:stock;check:stock >= 0"`
	SKU       *string         `gorm:"column:sku;size:64;uniqueIndex"`
	Category  string          `gorm:"column:category;type:varchar(32);index:idx_products_category_price"`
	CreatedAt time.Time       `gorm:"column:created_at;index"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

func (productRecord) TableName() string { return "products" }

type priceHistoryRecord struct {
	ID        int64           `gorm:"primaryKey;column:id;autoIncrement"`
	ProductID string          `gorm:"column:product_id;size:36;index"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2)"`
	ChangedAt time.Time       `gorm:"column:changed_at"`
}

func (priceHistoryRecord) TableName() string { return "product_price_history" }

// Save upserts a product; price changes append to the price history.
func (r *Repository) Save(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if product == nil {
		return nil, errors.New("product is nil")
	}
	record := toRecord(product)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing productRecord
		found := tx.First(&existing, "id = ?", record.ID).Error
		if found != nil && !errors.Is(found, gorm.ErrRecordNotFound) {
			return found
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"name":       record.Name,
				"price":      record.Price,
				"stock":      record.Stock,
				"sku":        record.SKU,
				"category":   record.Category,
				"updated_at": gorm.Expr("NOW()"),
			}),
		}).Create(&record).Error; err != nil {
			if platformpostgres.IsUniqueViolation(err) {
				return ports.ErrDuplicateSKU
			}
			return err
		}
		if found == nil && !existing.Price.Equal(record.Price) {
			return tx.Create(&priceHistoryRecord{
				ProductID: record.ID,
				Price:     record.Price,
				ChangedAt: time.Now().UTC(),
			}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, record.ID)
}

// GetByID fetches a product by identifier.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record productRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// GetByIDs fetches products in bulk; missing IDs are simply absent from the result.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Product, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var records []productRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&records).Error; err != nil {
		return nil, err
	}
	products := make([]*domain.Product, 0, len(records))
	for i := range records {
		products = append(products, records[i].toDomain())
	}
	return products, nil
}

// Delete removes a product. Order lines keep the dangling reference by design.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Delete(&productRecord{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// List applies category, price, and text filters with pagination.
func (r *Repository) List(ctx context.Context, filter ports.Filter) (*ports.Page, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Model(&productRecord{})
	if filter.Category != "" {
		query = query.Where("category = ?", string(filter.Category))
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}
	if filter.Query != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Query+"%")
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	var records []productRecord
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(filter.PageSize).Find(&records).Error; err != nil {
		return nil, err
	}
	items := make([]*domain.Product, 0, len(records))
	for i := range records {
		items = append(items, records[i].toDomain())
	}
	return &ports.Page{Items: items, Total: total}, nil
}

// AdjustStock applies a delta with a conditional update so stock can never
// go negative, even under concurrent writers.
func (r *Repository) AdjustStock(ctx context.Context, id string, delta int64) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&productRecord{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&productRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ports.ErrNotFound
		}
		return ports.ErrInsufficientStock
	}
	return nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres product repository not configured")
	}
	return nil
}

func toRecord(product *domain.Product) productRecord {
	record := productRecord{
		ID:       product.ID,
		Name:     product.Name,
		Price:    product.Price,
		Stock:    product.Stock,
		Category: string(product.Category),
	}
	if product.SKU != "" {
		sku := product.SKU
		record.SKU = &sku
	}
	return record
}

func (r productRecord) toDomain() *domain.Product {
	product := &domain.Product{
		ID:       r.ID,
		Name:     r.Name,
		Price:    r.Price,
		Stock:    r.Stock,
		Category: domain.Category(r.Category),
	}
	if r.SKU != nil {
		product.SKU = *r.SKU
	}
	return product
}
