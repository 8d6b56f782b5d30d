package repository

import (
	"context"

	"github.com/kasbon/kasirsync/internal/domain/entity"
)

// TransactionRepository defines read access to stored sync transactions.
// Inserts happen inside the per-item ingestion transaction and are not part
// of this interface; this is the re-read path used to classify unique-key
// collisions.
type TransactionRepository interface {
	// GetByClientTxID retrieves a stored transaction with items and payments
	// preloaded. Returns nil, nil when no row exists.
	GetByClientTxID(ctx context.Context, clientTxID string) (*entity.SyncTransaction, error)
}

// AuditRepository defines the interface for ingestion audit entries
type AuditRepository interface {
	// Create stores a new audit entry
	Create(ctx context.Context, audit *entity.SyncAudit) error
	// GetAccepted retrieves the accepted-audit entry for a client transaction
	// id, carrying the original posting metadata. Returns nil, nil when none
	// exists.
	GetAccepted(ctx context.Context, clientTxID string) (*entity.SyncAudit, error)
}
