// Package dynamo implements the snapshot Store on DynamoDB using a
// single-table layout: a truth item per snapshot plus a timestamp-sorted
// listing partition.
package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cedarwud/stagegate/internal/metrics"
	"github.com/cedarwud/stagegate/internal/snapshot"
	"github.com/cedarwud/stagegate/pkg/types"
)

// Store implements snapshot.Store backed by DynamoDB.
type Store struct {
	client    *dynamodb.Client
	tableName string
}

var _ snapshot.Store = (*Store)(nil)

// listItem is the listing-partition projection, marshaled with
// attributevalue so Query results decode straight into summaries.
type listItem struct {
	PK              string  `dynamodbav:"PK"`
	SK              string  `dynamodbav:"SK"`
	SnapshotID      string  `dynamodbav:"snapshotId"`
	Timestamp       string  `dynamodbav:"timestamp"`
	StageID         string  `dynamodbav:"stageId"`
	ExecutionStatus string  `dynamodbav:"executionStatus"`
	QualityScore    float64 `dynamodbav:"qualityScore"`
	ErrorCount      int     `dynamodbav:"errorCount"`
}

// New creates a DynamoDB store from config. A non-empty endpoint targets a
// local DynamoDB instance with static test credentials.
func New(ctx context.Context, cfg *types.DynamoConfig) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, tableName: cfg.TableName}, nil
}

// NewFromClient creates a Store from an existing client (useful for testing).
func NewFromClient(client *dynamodb.Client, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Start verifies the table exists.
func (s *Store) Start(ctx context.Context) error {
	return s.Ping(ctx)
}

// Stop implements snapshot.Store.
func (s *Store) Stop(_ context.Context) error { return nil }

// Ping describes the table to check connectivity.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &s.tableName,
	})
	if err != nil {
		return fmt.Errorf("describing table %q: %w", s.tableName, err)
	}
	return nil
}

func snapshotPK(id string) string { return "SNAPSHOT#" + id }

func listSK(ts time.Time, id string) string {
	return fmt.Sprintf("TS#%s#%s", ts.UTC().Format(time.RFC3339Nano), id)
}

const (
	truthSK = "SNAPSHOT"
	listPK  = "SNAPSHOTS"
)

// Save writes the truth item and the listing copy in one transaction.
func (s *Store) Save(ctx context.Context, snap types.ExecutionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot %q: %w", snap.SnapshotID, err)
	}

	sum := snapshot.Summarize(snap)
	item, err := attributevalue.MarshalMap(listItem{
		PK:              listPK,
		SK:              listSK(snap.Timestamp, snap.SnapshotID),
		SnapshotID:      sum.SnapshotID,
		Timestamp:       sum.Timestamp.UTC().Format(time.RFC3339Nano),
		StageID:         sum.StageID,
		ExecutionStatus: string(sum.ExecutionStatus),
		QualityScore:    sum.QualityScore,
		ErrorCount:      sum.ErrorCount,
	})
	if err != nil {
		return fmt.Errorf("marshaling snapshot summary %q: %w", snap.SnapshotID, err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []ddbtypes.TransactWriteItem{
			{
				Put: &ddbtypes.Put{
					TableName: &s.tableName,
					Item: map[string]ddbtypes.AttributeValue{
						"PK":   &ddbtypes.AttributeValueMemberS{Value: snapshotPK(snap.SnapshotID)},
						"SK":   &ddbtypes.AttributeValueMemberS{Value: truthSK},
						"data": &ddbtypes.AttributeValueMemberS{Value: string(data)},
					},
				},
			},
			{
				Put: &ddbtypes.Put{
					TableName: &s.tableName,
					Item:      item,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("saving snapshot %q: %w", snap.SnapshotID, err)
	}
	return nil
}

// Load reads the truth item with strong consistency.
func (s *Store) Load(ctx context.Context, id string) (types.ExecutionSnapshot, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		ConsistentRead: aws.Bool(true),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: snapshotPK(id)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: truthSK},
		},
	})
	if err != nil {
		return types.ExecutionSnapshot{}, fmt.Errorf("loading snapshot %q: %w", id, err)
	}
	if out.Item == nil {
		return types.ExecutionSnapshot{}, snapshot.ErrNotFound
	}

	attr, ok := out.Item["data"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return types.ExecutionSnapshot{}, fmt.Errorf("snapshot %q: missing data attribute", id)
	}

	var snap types.ExecutionSnapshot
	if err := json.Unmarshal([]byte(attr.Value), &snap); err != nil {
		return types.ExecutionSnapshot{}, fmt.Errorf("parsing snapshot %q: %w", id, err)
	}
	return snap, nil
}

// List queries the listing partition newest first.
func (s *Store) List(ctx context.Context, stageFilter string, limit int) ([]types.SnapshotSummary, error) {
	summaries, err := s.summaries(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.FilterSummaries(summaries, stageFilter, limit), nil
}

// Cleanup deletes both items for each snapshot older than the cutoff.
func (s *Store) Cleanup(ctx context.Context, retentionDays int) (types.CleanupResult, error) {
	result := types.CleanupResult{RetentionDays: retentionDays}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	items, err := s.queryList(ctx)
	if err != nil {
		return result, err
	}

	for _, item := range items {
		ts, err := time.Parse(time.RFC3339Nano, item.Timestamp)
		if err != nil || !ts.Before(cutoff) {
			continue
		}

		_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: []ddbtypes.TransactWriteItem{
				{
					Delete: &ddbtypes.Delete{
						TableName: &s.tableName,
						Key: map[string]ddbtypes.AttributeValue{
							"PK": &ddbtypes.AttributeValueMemberS{Value: snapshotPK(item.SnapshotID)},
							"SK": &ddbtypes.AttributeValueMemberS{Value: truthSK},
						},
					},
				},
				{
					Delete: &ddbtypes.Delete{
						TableName: &s.tableName,
						Key: map[string]ddbtypes.AttributeValue{
							"PK": &ddbtypes.AttributeValueMemberS{Value: item.PK},
							"SK": &ddbtypes.AttributeValueMemberS{Value: item.SK},
						},
					},
				},
			},
		})
		if err != nil {
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

func (s *Store) queryList(ctx context.Context) ([]listItem, error) {
	var items []listItem
	var lastKey map[string]ddbtypes.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":pk": &ddbtypes.AttributeValueMemberS{Value: listPK},
			},
			ScanIndexForward:  aws.Bool(false),
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("querying snapshot list: %w", err)
		}

		var page []listItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("decoding snapshot list: %w", err)
		}
		items = append(items, page...)

		if out.LastEvaluatedKey == nil {
			break
		}
		lastKey = out.LastEvaluatedKey
	}
	return items, nil
}

func (s *Store) summaries(ctx context.Context) ([]types.SnapshotSummary, error) {
	items, err := s.queryList(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]types.SnapshotSummary, 0, len(items))
	for _, item := range items {
		ts, err := time.Parse(time.RFC3339Nano, item.Timestamp)
		if err != nil {
			continue
		}
		out = append(out, types.SnapshotSummary{
			SnapshotID:      item.SnapshotID,
			Timestamp:       ts,
			StageID:         item.StageID,
			ExecutionStatus: types.ExecutionStatus(item.ExecutionStatus),
			QualityScore:    item.QualityScore,
			ErrorCount:      item.ErrorCount,
		})
	}
	return out, nil
}
