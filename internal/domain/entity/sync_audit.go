package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	"gorm.io/gorm"
)

// SyncAudit records every ingestion outcome: accepted, duplicate and failed
// items all leave a trail, including whatever the posting hook reported.
type SyncAudit struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	CorrelationID string          `gorm:"size:64;index" json:"correlation_id"`
	ClientTxID    string          `gorm:"size:64;index;not null" json:"client_tx_id"`
	Result        enum.PushResult `gorm:"size:16;not null" json:"result"`
	Message       string          `gorm:"type:text" json:"message,omitempty"`

	// Posting hook outcome, copied verbatim for duplicates so the replayed
	// response carries the original posting metadata.
	PostingMode    string `gorm:"size:16" json:"posting_mode,omitempty"`
	JournalBatchID string `gorm:"size:64" json:"journal_batch_id,omitempty"`
	BalanceOK      bool   `json:"balance_ok"`
	PostingReason  string `gorm:"type:text" json:"posting_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (a *SyncAudit) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the SyncAudit model
func (SyncAudit) TableName() string {
	return "sync_audits"
}
