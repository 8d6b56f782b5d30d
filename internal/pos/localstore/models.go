package localstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	"github.com/shopspring/decimal"
)

// Scope identifies the tenant slice one agent serves
type Scope struct {
	CompanyID uuid.UUID
	OutletID  uuid.UUID
}

// Sale is a locally recorded sale header
type Sale struct {
	SaleID        uuid.UUID
	CompanyID     uuid.UUID
	OutletID      uuid.UUID
	CashierID     uuid.UUID
	Status        enum.SaleStatus
	SyncStatus    enum.SyncStatus
	ClientTxID    string
	RefSaleID     string
	TrxAt         time.Time
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxTotal      decimal.Decimal
	GrandTotal    decimal.Decimal
	PaidTotal     decimal.Decimal
	ChangeTotal   decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SaleLine is an immutable line snapshot taken at completion time
type SaleLine struct {
	ItemID    int64
	Name      string
	ItemType  enum.ItemType
	UnitPrice decimal.Decimal
	Qty       int
	Discount  decimal.Decimal
	LineTotal decimal.Decimal
}

// Payment is one payment captured against a sale
type Payment struct {
	Method    string
	Amount    decimal.Decimal
	Reference string
}

// OutboxJob is one pending delivery of a completed sale
type OutboxJob struct {
	DedupeKey   string
	SaleID      uuid.UUID
	CompanyID   uuid.UUID
	OutletID    uuid.UUID
	Status      enum.OutboxStatus
	Attempts    int
	NextRetryAt time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RefItem is one cached reference-catalog row
type RefItem struct {
	CompanyID      uuid.UUID
	OutletID       uuid.UUID
	ItemID         int64
	Name           string
	ItemType       enum.ItemType
	Active         bool
	Price          decimal.Decimal
	UpdatedVersion int64
}

// ScopeConfig is the cached per-outlet configuration plus the pull watermark
type ScopeConfig struct {
	CompanyID      uuid.UUID
	OutletID       uuid.UUID
	DataVersion    int64
	TaxRate        decimal.Decimal
	TaxInclusive   bool
	PaymentMethods []string
}
