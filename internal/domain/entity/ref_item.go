package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	"github.com/shopspring/decimal"
)

// RefItem is one catalog item scoped to a company+outlet pair, served to
// clients by the pull endpoint. Rows are versioned: Version records the
// data_version at which the row last changed.
type RefItem struct {
	CompanyID uuid.UUID       `gorm:"type:uuid;primaryKey" json:"company_id"`
	OutletID  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"outlet_id"`
	ItemID    int64           `gorm:"primaryKey" json:"item_id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	ItemType  enum.ItemType   `gorm:"default:1" json:"type"`
	Active    bool            `gorm:"default:true" json:"active"`
	Price     decimal.Decimal `gorm:"type:numeric(18,2)" json:"price"`
	Version   int64           `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName returns the table name for the RefItem model
func (RefItem) TableName() string {
	return "ref_items"
}

// StringArray stores a []string as a JSON column
type StringArray []string

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	}
	return fmt.Errorf("failed to scan StringArray: %v", value)
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

// OutletConfig holds the scoped tax/payment configuration and the current
// data_version watermark authority for one company+outlet pair.
type OutletConfig struct {
	CompanyID      uuid.UUID       `gorm:"type:uuid;primaryKey" json:"company_id"`
	OutletID       uuid.UUID       `gorm:"type:uuid;primaryKey" json:"outlet_id"`
	TaxRate        decimal.Decimal `gorm:"type:numeric(6,4)" json:"tax_rate"`
	TaxInclusive   bool            `gorm:"default:false" json:"tax_inclusive"`
	PaymentMethods StringArray     `gorm:"type:text" json:"payment_methods"`
	DataVersion    int64           `gorm:"not null;default:0" json:"data_version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName returns the table name for the OutletConfig model
func (OutletConfig) TableName() string {
	return "outlet_configs"
}
