package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/entity"
	domainRepo "github.com/kasbon/kasirsync/internal/domain/repository"
	"gorm.io/gorm"
)

type refRepository struct {
	db *gorm.DB
}

// NewRefRepository creates a new reference-catalog repository
func NewRefRepository(db *gorm.DB) domainRepo.RefRepository {
	return &refRepository{db: db}
}

func (r *refRepository) GetConfig(ctx context.Context, companyID, outletID uuid.UUID) (*entity.OutletConfig, error) {
	var cfg entity.OutletConfig
	err := r.db.WithContext(ctx).
		First(&cfg, "company_id = ? AND outlet_id = ?", companyID, outletID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &cfg, err
}

func (r *refRepository) ListItems(ctx context.Context, companyID, outletID uuid.UUID) ([]entity.RefItem, error) {
	var items []entity.RefItem
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND outlet_id = ?", companyID, outletID).
		Order("item_id").
		Find(&items).Error
	return items, err
}
