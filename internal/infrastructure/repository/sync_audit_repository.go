package repository

import (
	"context"
	"errors"

	"github.com/kasbon/kasirsync/internal/domain/entity"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	domainRepo "github.com/kasbon/kasirsync/internal/domain/repository"
	"gorm.io/gorm"
)

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) domainRepo.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, audit *entity.SyncAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}

func (r *auditRepository) GetAccepted(ctx context.Context, clientTxID string) (*entity.SyncAudit, error) {
	var audit entity.SyncAudit
	err := r.db.WithContext(ctx).
		Where("client_tx_id = ? AND result = ?", clientTxID, enum.PushResultOK).
		Order("created_at ASC").
		First(&audit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &audit, err
}
