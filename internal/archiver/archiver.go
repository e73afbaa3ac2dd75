// Package archiver provides a background process that copies execution
// snapshots from the operational store to Postgres for long-term retention.
package archiver

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cedarwud/stagegate/internal/metrics"
	"github.com/cedarwud/stagegate/internal/snapshot"
	"github.com/cedarwud/stagegate/pkg/types"
)

const defaultInterval = 5 * time.Minute

// Destination defines the write interface for the archival backend.
type Destination interface {
	UpsertSnapshot(ctx context.Context, snap types.ExecutionSnapshot) error
	GetCursor(ctx context.Context) (string, error)
	SetCursor(ctx context.Context, snapshotID string) error
}

// Archiver periodically archives snapshots to the destination.
type Archiver struct {
	source   snapshot.Store
	dest     Destination
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a new Archiver.
func New(source snapshot.Store, dest Destination, interval time.Duration, logger *slog.Logger) *Archiver {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		source:   source,
		dest:     dest,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the archiver background loop.
func (a *Archiver) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go a.loop(ctx)
	a.logger.Info("archiver started", "interval", a.interval)
}

// Stop signals the archiver to stop and waits for it to finish.
func (a *Archiver) Stop(_ context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.logger.Info("archiver stopped")
}

func (a *Archiver) loop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	// Run once immediately on start
	a.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

// Tick performs one archival pass: snapshots newer than the stored cursor
// are copied to the destination in ID order, and the cursor advances only
// past snapshots that were written successfully.
func (a *Archiver) Tick(ctx context.Context) {
	cursor, err := a.dest.GetCursor(ctx)
	if err != nil {
		a.logger.Error("archiver: get cursor failed", "error", err)
		return
	}

	summaries, err := a.source.List(ctx, "", 0)
	if err != nil {
		a.logger.Error("archiver: list snapshots failed", "error", err)
		return
	}

	// Snapshot IDs are ULIDs, so lexical order is creation order.
	var pending []string
	for _, s := range summaries {
		if s.SnapshotID > cursor {
			pending = append(pending, s.SnapshotID)
		}
	}
	sort.Strings(pending)

	for _, id := range pending {
		if ctx.Err() != nil {
			return
		}
		snap, err := a.source.Load(ctx, id)
		if err != nil {
			a.logger.Error("archiver: load snapshot failed", "snapshotID", id, "error", err)
			return
		}
		if err := a.dest.UpsertSnapshot(ctx, snap); err != nil {
			a.logger.Error("archiver: upsert snapshot failed", "snapshotID", id, "error", err)
			return // Don't advance cursor on failure
		}
		if err := a.dest.SetCursor(ctx, id); err != nil {
			a.logger.Error("archiver: set cursor failed", "snapshotID", id, "error", err)
			return
		}
		metrics.SnapshotsArchived.Add(1)
	}
}
