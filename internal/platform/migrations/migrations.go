package migrations

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Apurer/go-commerce-api-server/internal/platform/outbox"
)

// Run applies the schema for the bounded contexts. Intended to replace adapter-level automigrate.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&productRecord{},
		&priceHistoryRecord{},
		&userRecord{},
		&cartLineRecord{},
		&orderRecord{},
		&orderLineRecord{},
		&refundRequestRecord{},
		&idempotencyRecord{},
		&outbox.Record{},
	)
}

// Product schema mirrors the catalog Postgres adapter.
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

// User schema mirrors the users Postgres adapter.
type userRecord struct {
	ID           string         `gorm:"primaryKey;column:id;size:36"`
	Name         string         `gorm:"column:name;size:100"`
	Email        string         `gorm:"column:email;size:254;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;size:128"`
	Roles        pq.StringArray `gorm:"column:roles;type:text[]"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
}

func (userRecord) TableName() string { return "users" }

// Cart lines are unique per (user, product); products are weak references.
type cartLineRecord struct {
	ID        int64     `gorm:"primaryKey;column:id;autoIncrement"`
	UserID    string    `gorm:"column:user_id;size:36;uniqueIndex:idx_cart_user_product"`
	ProductID string    `gorm:"column:product_id;size:36;uniqueIndex:idx_cart_user_product"`
	Quantity  int64     `gorm:"column:quantity;check:quantity >= 1"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (cartLineRecord) TableName() string { return "cart_lines" }

// Order schema mirrors the orders Postgres adapter.
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

// Refund schema mirrors the refunds Postgres adapter.
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

// Idempotency keys let checkout replays return the original order.
type idempotencyRecord struct {
	Key         string    `gorm:"primaryKey;column:key;size:255"`
	UserID      string    `gorm:"column:user_id;size:36;index"`
	RequestHash string    `gorm:"column:request_hash;size:128"`
	OrderID     string    `gorm:"column:order_id;size:36"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (idempotencyRecord) TableName() string { return "order_idempotency_keys" }
