package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/config"
	"github.com/kasbon/kasirsync/internal/pos/apiclient"
	"github.com/kasbon/kasirsync/internal/pos/localstore"
	"github.com/kasbon/kasirsync/internal/pos/outbox"
	"github.com/kasbon/kasirsync/internal/pos/refsync"
)

func main() {
	cfg := config.Load()

	scope, err := parseScope(&cfg.Agent)
	if err != nil {
		log.Fatalf("Invalid agent scope: %v", err)
	}

	store, err := localstore.Open(cfg.Agent.StorePath)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer store.Close()

	client := apiclient.New(cfg.Agent.ServerURL, cfg.Agent.APIToken, 15*time.Second)

	hostname, _ := os.Hostname()
	holder := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	drainer := outbox.NewDrainer(store, outbox.NewPushSender(client), outbox.Config{
		Holder:      holder,
		Interval:    cfg.Agent.DrainInterval,
		RetryBase:   cfg.Agent.RetryBase,
		RetryMax:    cfg.Agent.RetryMax,
		MaxAttempts: cfg.Agent.MaxAttempts,
	})
	syncer := refsync.NewSyncer(store, client)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Agent %s starting for outlet %s (store %s)", holder, scope.OutletID, cfg.Agent.StorePath)

	go func() {
		if err := drainer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Drainer stopped: %v", err)
		}
	}()

	pullInterval := cfg.Agent.PullInterval
	if pullInterval <= 0 {
		pullInterval = time.Minute
	}
	ticker := time.NewTicker(pullInterval)
	defer ticker.Stop()

	// First pull immediately so a fresh device can sell.
	pull(ctx, syncer, scope)
	for {
		select {
		case <-ctx.Done():
			log.Printf("Agent shutting down")
			return
		case <-ticker.C:
			pull(ctx, syncer, scope)
		}
	}
}

func pull(ctx context.Context, syncer *refsync.Syncer, scope localstore.Scope) {
	res, err := syncer.Ingest(ctx, scope, nil)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Pull failed: %v", err)
		}
		return
	}
	if res.Applied {
		log.Printf("Pull applied data_version=%d items=%d", res.DataVersion, res.Items)
	}
}

func parseScope(cfg *config.AgentConfig) (localstore.Scope, error) {
	companyID, err := uuid.Parse(cfg.CompanyID)
	if err != nil {
		return localstore.Scope{}, fmt.Errorf("company id: %w", err)
	}
	outletID, err := uuid.Parse(cfg.OutletID)
	if err != nil {
		return localstore.Scope{}, fmt.Errorf("outlet id: %w", err)
	}
	return localstore.Scope{CompanyID: companyID, OutletID: outletID}, nil
}
