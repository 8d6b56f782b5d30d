package refsync

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	"github.com/kasbon/kasirsync/internal/pos/localstore"
	"github.com/kasbon/kasirsync/internal/presentation/http/dto/response"
)

// Puller fetches a reference snapshot from the server. The apiclient
// package provides the real implementation; tests substitute their own.
type Puller interface {
	Pull(ctx context.Context, outletID uuid.UUID, sinceVersion int64) (*response.PullResponse, error)
}

// Result reports what one ingest did
type Result struct {
	Applied     bool
	DataVersion int64
	Items       int
}

// Syncer pulls versioned reference data into the local cache. Concurrent
// ingests for the same scope coalesce: one caller leads the network round
// trip and the rest share its result. The in-flight table belongs to the
// Syncer instance, never to the package.
type Syncer struct {
	store  *localstore.Store
	puller Puller

	mu       sync.Mutex
	inflight map[localstore.Scope]*call
}

type call struct {
	done chan struct{}
	res  *Result
	err  error
}

// NewSyncer creates a reference-data syncer over the agent store
func NewSyncer(store *localstore.Store, puller Puller) *Syncer {
	return &Syncer{
		store:    store,
		puller:   puller,
		inflight: make(map[localstore.Scope]*call),
	}
}

// Ingest pulls the scope's snapshot and applies it when the server's
// data_version is strictly newer than the stored watermark. sinceVersion
// overrides the watermark when non-nil. Joiners of a coalesced call get
// the leader's result as-is.
func (s *Syncer) Ingest(ctx context.Context, scope localstore.Scope, sinceVersion *int64) (*Result, error) {
	s.mu.Lock()
	if c, ok := s.inflight[scope]; ok {
		s.mu.Unlock()
		select {
		case <-c.done:
			return c.res, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	s.inflight[scope] = c
	s.mu.Unlock()

	c.res, c.err = s.ingest(ctx, scope, sinceVersion)
	close(c.done)

	s.mu.Lock()
	delete(s.inflight, scope)
	s.mu.Unlock()

	return c.res, c.err
}

func (s *Syncer) ingest(ctx context.Context, scope localstore.Scope, sinceVersion *int64) (*Result, error) {
	watermark := int64(0)
	cfg, err := s.store.GetScopeConfig(ctx, scope)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		watermark = cfg.DataVersion
	}

	since := watermark
	if sinceVersion != nil {
		since = *sinceVersion
	}

	snap, err := s.puller.Pull(ctx, scope.OutletID, since)
	if err != nil {
		return nil, err
	}

	// The watermark only ever moves forward; an equal or older snapshot
	// is a no-op even when the caller forced a lower since.
	if snap.NotModified || snap.DataVersion <= watermark {
		return &Result{Applied: false, DataVersion: watermark}, nil
	}

	items, err := mapItems(scope, snap)
	if err != nil {
		return nil, err
	}

	newCfg := localstore.ScopeConfig{
		CompanyID:   scope.CompanyID,
		OutletID:    scope.OutletID,
		DataVersion: snap.DataVersion,
	}
	if snap.Config != nil {
		newCfg.TaxRate = snap.Config.Tax.Rate
		newCfg.TaxInclusive = snap.Config.Tax.Inclusive
		newCfg.PaymentMethods = snap.Config.PaymentMethods
	} else if cfg != nil {
		newCfg.TaxRate = cfg.TaxRate
		newCfg.TaxInclusive = cfg.TaxInclusive
		newCfg.PaymentMethods = cfg.PaymentMethods
	}

	if err := s.store.ApplyRefSnapshot(ctx, scope, items, newCfg); err != nil {
		return nil, err
	}

	log.Printf("refsync: outlet=%s applied data_version=%d items=%d",
		scope.OutletID, snap.DataVersion, len(items))

	return &Result{Applied: true, DataVersion: snap.DataVersion, Items: len(items)}, nil
}

func mapItems(scope localstore.Scope, snap *response.PullResponse) ([]localstore.RefItem, error) {
	prices := make(map[int64]int, len(snap.Prices))
	for i, p := range snap.Prices {
		prices[p.ItemID] = i
	}

	items := make([]localstore.RefItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		item := localstore.RefItem{
			CompanyID:      scope.CompanyID,
			OutletID:       scope.OutletID,
			ItemID:         it.ItemID,
			Name:           it.Name,
			Active:         it.Active,
			UpdatedVersion: snap.DataVersion,
		}
		itemType, ok := enum.ParseItemType(it.Type)
		if !ok {
			return nil, fmt.Errorf("item %d: unknown type %q", it.ItemID, it.Type)
		}
		item.ItemType = itemType
		if idx, ok := prices[it.ItemID]; ok {
			item.Price = snap.Prices[idx].Price
		}
		items = append(items, item)
	}
	return items, nil
}
