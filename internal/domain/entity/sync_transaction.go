package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SyncTransaction is the authoritative server copy of a sale accepted from a
// POS client. The unique constraint on ClientTxID is the idempotency
// primitive: a retransmitted sale can never be inserted twice, the database
// rejects it and the ingestion service classifies the collision instead.
type SyncTransaction struct {
	ID            uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	ClientTxID    string           `gorm:"size:64;uniqueIndex;not null" json:"client_tx_id"`
	CompanyID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"company_id"`
	OutletID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"outlet_id"`
	CashierUserID uuid.UUID        `gorm:"type:uuid;not null" json:"cashier_user_id"`
	Status        enum.SaleStatus  `gorm:"default:1" json:"status"`
	TrxAt         time.Time        `gorm:"not null" json:"trx_at"`
	TrxAtRaw      string           `gorm:"size:64" json:"-"` // timestamp exactly as the client sent it
	Subtotal      decimal.Decimal  `gorm:"type:numeric(18,2)" json:"subtotal"`
	DiscountTotal decimal.Decimal  `gorm:"type:numeric(18,2)" json:"discount_total"`
	TaxTotal      decimal.Decimal  `gorm:"type:numeric(18,2)" json:"tax_total"`
	GrandTotal    decimal.Decimal  `gorm:"type:numeric(18,2)" json:"grand_total"`
	PaidTotal     decimal.Decimal  `gorm:"type:numeric(18,2)" json:"paid_total"`
	ChangeTotal   decimal.Decimal  `gorm:"type:numeric(18,2)" json:"change_total"`
	ContentHash   string           `gorm:"size:64" json:"-"`
	HashVersion   enum.HashVersion `gorm:"default:0" json:"-"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`

	// Relationships
	Items    []SyncTransactionItem    `gorm:"foreignKey:TransactionID" json:"items,omitempty"`
	Payments []SyncTransactionPayment `gorm:"foreignKey:TransactionID" json:"payments,omitempty"`
}

// BeforeCreate generates a UUID before creating a new transaction
func (t *SyncTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the SyncTransaction model
func (SyncTransaction) TableName() string {
	return "sync_transactions"
}

// SyncTransactionItem is one line of an accepted sale, stored exactly as the
// client snapshotted it at completion time.
type SyncTransactionItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"transaction_id"`
	ItemID        int64           `gorm:"not null" json:"item_id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	ItemType      enum.ItemType   `gorm:"default:1" json:"type"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(18,2)" json:"unit_price"`
	Qty           int             `gorm:"not null" json:"qty"`
	Discount      decimal.Decimal `gorm:"type:numeric(18,2)" json:"discount"`
	LineTotal     decimal.Decimal `gorm:"type:numeric(18,2)" json:"line_total"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (i *SyncTransactionItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the SyncTransactionItem model
func (SyncTransactionItem) TableName() string {
	return "sync_transaction_items"
}

// SyncTransactionPayment is one payment captured against an accepted sale.
type SyncTransactionPayment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"transaction_id"`
	Method        string          `gorm:"size:50;not null" json:"method"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2)" json:"amount"`
	Reference     string          `gorm:"size:100" json:"reference,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (p *SyncTransactionPayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the SyncTransactionPayment model
func (SyncTransactionPayment) TableName() string {
	return "sync_transaction_payments"
}
