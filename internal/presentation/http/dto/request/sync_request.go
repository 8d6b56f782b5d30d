package request

import (
	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	"github.com/shopspring/decimal"
)

// PushRequest is the batch envelope POSTed to /sync/push. Shapes are
// validated statically through binding tags before any business logic runs.
type PushRequest struct {
	OutletID     uuid.UUID         `json:"outlet_id" binding:"required"`
	Transactions []PushTransaction `json:"transactions" binding:"required,min=1,dive"`
}

// PushTransaction is one client transaction inside a push batch
type PushTransaction struct {
	ClientTxID    string          `json:"client_tx_id" binding:"required,max=64"`
	CompanyID     uuid.UUID       `json:"company_id" binding:"required"`
	OutletID      uuid.UUID       `json:"outlet_id" binding:"required"`
	CashierUserID uuid.UUID       `json:"cashier_user_id" binding:"required"`
	Status        enum.SaleStatus `json:"status"`
	// TrxAt must be ISO 8601 with an explicit offset. Kept as a string so
	// the raw client rendering survives for legacy hash equivalence.
	TrxAt         string          `json:"trx_at" binding:"required"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	PaidTotal     decimal.Decimal `json:"paid_total"`
	ChangeTotal   decimal.Decimal `json:"change_total"`
	Items         []PushItem      `json:"items" binding:"required,min=1,dive"`
	Payments      []PushPayment   `json:"payments" binding:"required,min=1,dive"`
}

// PushItem is one immutable line snapshot of a pushed sale
type PushItem struct {
	ItemID    int64           `json:"item_id" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	Type      enum.ItemType   `json:"type"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty" binding:"required,min=1"`
	Discount  decimal.Decimal `json:"discount"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// PushPayment is one payment captured against a pushed sale
type PushPayment struct {
	Method    string          `json:"method" binding:"required,max=50"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}
