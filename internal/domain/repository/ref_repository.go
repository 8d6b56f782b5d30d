package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/entity"
)

// RefRepository defines read access to the reference catalog served by pull
type RefRepository interface {
	// GetConfig retrieves the scoped config + current data_version for a
	// company+outlet pair. Returns nil, nil when the scope is unknown.
	GetConfig(ctx context.Context, companyID, outletID uuid.UUID) (*entity.OutletConfig, error)
	// ListItems retrieves every catalog row for a scope, active and inactive
	ListItems(ctx context.Context, companyID, outletID uuid.UUID) ([]entity.RefItem, error)
}
