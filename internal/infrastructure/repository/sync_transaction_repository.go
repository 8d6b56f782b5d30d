package repository

import (
	"context"
	"errors"

	"github.com/kasbon/kasirsync/internal/domain/entity"
	domainRepo "github.com/kasbon/kasirsync/internal/domain/repository"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) domainRepo.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) GetByClientTxID(ctx context.Context, clientTxID string) (*entity.SyncTransaction, error) {
	var trx entity.SyncTransaction
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, item_id") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, method") }).
		First(&trx, "client_tx_id = ?", clientTxID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &trx, err
}
