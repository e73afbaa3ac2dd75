// Package redis implements the snapshot Store on Redis/Valkey. Snapshots
// are JSON values with a timestamp-scored index set for ordered listing.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cedarwud/stagegate/internal/metrics"
	"github.com/cedarwud/stagegate/internal/snapshot"
	"github.com/cedarwud/stagegate/pkg/types"
)

// Store implements snapshot.Store backed by Redis/Valkey.
type Store struct {
	client *goredis.Client
	prefix string
}

var _ snapshot.Store = (*Store)(nil)

// New creates a Redis store from config.
func New(cfg *types.RedisConfig) *Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "stagegate:"
	}
	return &Store{client: client, prefix: prefix}
}

// NewFromClient creates a Store from an existing client (useful for testing).
func NewFromClient(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "stagegate:"
	}
	return &Store{client: client, prefix: prefix}
}

// Start initializes the connection.
func (s *Store) Start(ctx context.Context) error {
	return s.Ping(ctx)
}

// Stop closes the connection.
func (s *Store) Stop(_ context.Context) error {
	return s.client.Close()
}

// Ping checks connectivity to the Redis server.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *Store) snapKey(id string) string    { return s.prefix + "snapshot:" + id }
func (s *Store) summaryKey(id string) string { return s.prefix + "summary:" + id }
func (s *Store) indexKey() string            { return s.prefix + "snapshots" }

// Save implements snapshot.Store. The snapshot value, its listing summary,
// and the index entry are written in one transaction.
func (s *Store) Save(ctx context.Context, snap types.ExecutionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot %q: %w", snap.SnapshotID, err)
	}
	summary, err := json.Marshal(snapshot.Summarize(snap))
	if err != nil {
		return fmt.Errorf("marshaling snapshot summary %q: %w", snap.SnapshotID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.snapKey(snap.SnapshotID), data, 0)
	pipe.Set(ctx, s.summaryKey(snap.SnapshotID), summary, 0)
	pipe.ZAdd(ctx, s.indexKey(), goredis.Z{
		Score:  float64(snap.Timestamp.UnixNano()),
		Member: snap.SnapshotID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving snapshot %q: %w", snap.SnapshotID, err)
	}
	return nil
}

// Load implements snapshot.Store.
func (s *Store) Load(ctx context.Context, id string) (types.ExecutionSnapshot, error) {
	raw, err := s.client.Get(ctx, s.snapKey(id)).Result()
	if err == goredis.Nil {
		return types.ExecutionSnapshot{}, snapshot.ErrNotFound
	}
	if err != nil {
		return types.ExecutionSnapshot{}, fmt.Errorf("loading snapshot %q: %w", id, err)
	}

	var snap types.ExecutionSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return types.ExecutionSnapshot{}, fmt.Errorf("parsing snapshot %q: %w", id, err)
	}
	return snap, nil
}

// List implements snapshot.Store, walking the index newest first.
func (s *Store) List(ctx context.Context, stageFilter string, limit int) ([]types.SnapshotSummary, error) {
	summaries, err := s.summaries(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.FilterSummaries(summaries, stageFilter, limit), nil
}

// Cleanup implements snapshot.Store, deleting index entries older than the
// cutoff along with their values.
func (s *Store) Cleanup(ctx context.Context, retentionDays int) (types.CleanupResult, error) {
	result := types.CleanupResult{RetentionDays: retentionDays}
	cutoff := cutoffNano(retentionDays)

	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("(%d", cutoff),
	}).Result()
	if err != nil {
		return result, fmt.Errorf("scanning snapshot index: %w", err)
	}

	for _, id := range ids {
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, s.snapKey(id), s.summaryKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		if _, err := pipe.Exec(ctx); err != nil {
			result.Failed++
			continue
		}
		result.Deleted++
	}
	metrics.SnapshotsDeleted.Add(int64(result.Deleted))
	return result, nil
}

// ConsolidatedReport implements snapshot.Store.
func (s *Store) ConsolidatedReport(ctx context.Context, stageFilter string) (types.ConsolidatedReport, error) {
	summaries, err := s.summaries(ctx)
	if err != nil {
		return types.ConsolidatedReport{}, err
	}
	return snapshot.BuildReport(snapshot.FilterSummaries(summaries, stageFilter, 0)), nil
}

func cutoffNano(retentionDays int) int64 {
	return time.Now().UTC().AddDate(0, 0, -retentionDays).UnixNano()
}

func (s *Store) summaries(ctx context.Context) ([]types.SnapshotSummary, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading snapshot index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.summaryKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading snapshot summaries: %w", err)
	}

	out := make([]types.SnapshotSummary, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var sum types.SnapshotSummary
		if err := json.Unmarshal([]byte(raw), &sum); err != nil {
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}
