// Package memory implements the snapshot Store in process memory. Used by
// tests and as the default when no durable backend is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cedarwud/stagegate/internal/metrics"
	"github.com/cedarwud/stagegate/internal/snapshot"
	"github.com/cedarwud/stagegate/pkg/types"
)

// Store holds snapshots in a mutex-guarded map.
type Store struct {
	mu    sync.RWMutex
	snaps map[string]types.ExecutionSnapshot
}

var _ snapshot.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{snaps: make(map[string]types.ExecutionSnapshot)}
}

// Start implements snapshot.Store.
func (s *Store) Start(_ context.Context) error { return nil }

// Stop implements snapshot.Store.
func (s *Store) Stop(_ context.Context) error { return nil }

// Ping implements snapshot.Store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Save implements snapshot.Store.
func (s *Store) Save(_ context.Context, snap types.ExecutionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.SnapshotID] = snap
	return nil
}

// Load implements snapshot.Store.
func (s *Store) Load(_ context.Context, id string) (types.ExecutionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[id]
	if !ok {
		return types.ExecutionSnapshot{}, snapshot.ErrNotFound
	}
	return snap, nil
}

// List implements snapshot.Store.
func (s *Store) List(_ context.Context, stageFilter string, limit int) ([]types.SnapshotSummary, error) {
	return snapshot.FilterSummaries(s.summaries(), stageFilter, limit), nil
}

// Cleanup implements snapshot.Store.
func (s *Store) Cleanup(_ context.Context, retentionDays int) (types.CleanupResult, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	s.mu.Lock()
	defer s.mu.Unlock()
	result := types.CleanupResult{RetentionDays: retentionDays}
	for id, snap := range s.snaps {
		if snap.Timestamp.Before(cutoff) {
			delete(s.snaps, id)
			result.Deleted++
		}
	}
	metrics.SnapshotsDeleted.Add(int64(result.Deleted))
	return result, nil
}

// ConsolidatedReport implements snapshot.Store.
func (s *Store) ConsolidatedReport(_ context.Context, stageFilter string) (types.ConsolidatedReport, error) {
	return snapshot.BuildReport(snapshot.FilterSummaries(s.summaries(), stageFilter, 0)), nil
}

func (s *Store) summaries() []types.SnapshotSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.SnapshotSummary, 0, len(s.snaps))
	for _, snap := range s.snaps {
		out = append(out, snapshot.Summarize(snap))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].SnapshotID > out[j].SnapshotID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
