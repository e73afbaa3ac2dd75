// Package fs implements the snapshot Store on the local filesystem, one
// JSON file per snapshot.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cedarwud/stagegate/internal/metrics"
	"github.com/cedarwud/stagegate/internal/snapshot"
	"github.com/cedarwud/stagegate/pkg/types"
)

// Store persists each snapshot as <dir>/<snapshotID>.json. Writes go
// through a temp file and rename so a crash never leaves a torn snapshot.
type Store struct {
	dir string
	mu  sync.Mutex
}

var _ snapshot.Store = (*Store)(nil)

// New creates a filesystem store rooted at dir.
func New(cfg *types.FSConfig) *Store {
	return &Store{dir: cfg.Dir}
}

// Start creates the snapshot directory if needed.
func (s *Store) Start(_ context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir %q: %w", s.dir, err)
	}
	return nil
}

// Stop implements snapshot.Store.
func (s *Store) Stop(_ context.Context) error { return nil }

// Ping verifies the snapshot directory is accessible.
func (s *Store) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("snapshot dir %q: %w", s.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("snapshot path %q is not a directory", s.dir)
	}
	return nil
}

// Save implements snapshot.Store.
func (s *Store) Save(_ context.Context, snap types.ExecutionSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot %q: %w", snap.SnapshotID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path(snap.SnapshotID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot %q: %w", snap.SnapshotID, err)
	}
	if err := os.Rename(tmp, s.path(snap.SnapshotID)); err != nil {
		return fmt.Errorf("committing snapshot %q: %w", snap.SnapshotID, err)
	}
	return nil
}

// Load implements snapshot.Store.
func (s *Store) Load(_ context.Context, id string) (types.ExecutionSnapshot, error) {
	raw, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return types.ExecutionSnapshot{}, snapshot.ErrNotFound
	}
	if err != nil {
		return types.ExecutionSnapshot{}, fmt.Errorf("reading snapshot %q: %w", id, err)
	}

	var snap types.ExecutionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return types.ExecutionSnapshot{}, fmt.Errorf("parsing snapshot %q: %w", id, err)
	}
	return snap, nil
}

// List implements snapshot.Store. Unreadable files are skipped.
func (s *Store) List(_ context.Context, stageFilter string, limit int) ([]types.SnapshotSummary, error) {
	summaries, err := s.summaries()
	if err != nil {
		return nil, err
	}
	return snapshot.FilterSummaries(summaries, stageFilter, limit), nil
}

// Cleanup implements snapshot.Store.
func (s *Store) Cleanup(_ context.Context, retentionDays int) (types.CleanupResult, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result := types.CleanupResult{RetentionDays: retentionDays}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return result, fmt.Errorf("reading snapshot dir %q: %w", s.dir, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())

		snap, err := s.read(path)
		if err != nil {
			result.Failed++
			continue
		}
		if !snap.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			result.Failed++
			continue
		}
		result.Deleted++
	}
	metrics.SnapshotsDeleted.Add(int64(result.Deleted))
	return result, nil
}

// ConsolidatedReport implements snapshot.Store.
func (s *Store) ConsolidatedReport(_ context.Context, stageFilter string) (types.ConsolidatedReport, error) {
	summaries, err := s.summaries()
	if err != nil {
		return types.ConsolidatedReport{}, err
	}
	return snapshot.BuildReport(snapshot.FilterSummaries(summaries, stageFilter, 0)), nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) read(path string) (types.ExecutionSnapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.ExecutionSnapshot{}, err
	}
	var snap types.ExecutionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return types.ExecutionSnapshot{}, err
	}
	return snap, nil
}

func (s *Store) summaries() ([]types.SnapshotSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot dir %q: %w", s.dir, err)
	}

	out := make([]types.SnapshotSummary, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		snap, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil {
			// Corrupt snapshot files are skipped, not fatal.
			continue
		}
		out = append(out, snapshot.Summarize(snap))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].SnapshotID > out[j].SnapshotID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
