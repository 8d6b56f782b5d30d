package service

import (
	"context"

	"github.com/kasbon/kasirsync/internal/domain/entity"
	"gorm.io/gorm"
)

// Posting rollout modes. In shadow mode a posting failure is recorded but
// never fails the accepted transaction; in enforce mode it does. The mode is
// injected via configuration, never hard-coded.
const (
	PostingModeShadow  = "shadow"
	PostingModeEnforce = "enforce"
)

// PostingResult is what the ledger-posting collaborator reports back.
type PostingResult struct {
	Mode           string `json:"mode"`
	JournalBatchID string `json:"journal_batch_id"`
	BalanceOK      bool   `json:"balance_ok"`
	Reason         string `json:"reason,omitempty"`
}

// AcceptedTransaction is the context handed to the posting hook for a
// transaction that has been persisted within the current database
// transaction.
type AcceptedTransaction struct {
	Transaction   *entity.SyncTransaction
	CorrelationID string
}

// PostingHook is the opaque ledger-posting collaborator invoked for every
// accepted transaction. Implementations run inside the ingestion database
// transaction; returning an error aborts it unless the error is a
// ShadowModeError under shadow mode.
type PostingHook interface {
	Run(ctx context.Context, tx *gorm.DB, accepted *AcceptedTransaction) (PostingResult, error)
}

// ShadowModeError is the typed failure a posting implementation raises when
// it wants the primary transaction to survive in shadow mode.
type ShadowModeError struct {
	Reason string
}

func (e *ShadowModeError) Error() string {
	return "posting failed in shadow mode: " + e.Reason
}

// NoopPostingHook accepts everything without touching the ledger. Used until
// the real posting pipeline is wired in, and as the default in tests.
type NoopPostingHook struct {
	Mode string
}

func (h *NoopPostingHook) Run(ctx context.Context, tx *gorm.DB, accepted *AcceptedTransaction) (PostingResult, error) {
	return PostingResult{
		Mode:      h.Mode,
		BalanceOK: true,
	}, nil
}
