package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/entity"
	domainRepo "github.com/kasbon/kasirsync/internal/domain/repository"
	"github.com/kasbon/kasirsync/pkg/apperror"
)

// PullSnapshot is the versioned reference snapshot served to clients
type PullSnapshot struct {
	DataVersion int64
	NotModified bool
	Items       []entity.RefItem
	Config      *entity.OutletConfig
}

// PullService serves versioned reference snapshots
type PullService struct {
	refRepo domainRepo.RefRepository
}

// NewPullService creates a new pull service
func NewPullService(refRepo domainRepo.RefRepository) *PullService {
	return &PullService{refRepo: refRepo}
}

// Snapshot returns the current reference snapshot for a scope. When the
// caller's watermark already covers the current version, only the version is
// returned so duplicate or concurrent pulls stay cheap.
func (s *PullService) Snapshot(ctx context.Context, companyID, outletID uuid.UUID, sinceVersion int64) (*PullSnapshot, error) {
	cfg, err := s.refRepo.GetConfig(ctx, companyID, outletID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, apperror.NewNotFoundError("Outlet configuration")
	}

	if sinceVersion >= cfg.DataVersion {
		return &PullSnapshot{DataVersion: cfg.DataVersion, NotModified: true, Config: cfg}, nil
	}

	items, err := s.refRepo.ListItems(ctx, companyID, outletID)
	if err != nil {
		return nil, err
	}

	return &PullSnapshot{
		DataVersion: cfg.DataVersion,
		Items:       items,
		Config:      cfg,
	}, nil
}
