//go:build integration

package dynamo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cedarwud/stagegate/internal/snapshot"
	"github.com/cedarwud/stagegate/internal/snapshot/storetest"
	"github.com/cedarwud/stagegate/pkg/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	tableName := fmt.Sprintf("stagegate-test-%d", time.Now().UnixNano())

	store, err := New(ctx, &types.DynamoConfig{
		TableName: tableName,
		Region:    "us-east-1",
		Endpoint:  "http://localhost:8000",
	})
	if err != nil {
		t.Skipf("DynamoDB Local not available: %v", err)
	}

	_, err = store.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &tableName,
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: ddbtypes.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: ddbtypes.KeyTypeRange},
		},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		t.Skipf("DynamoDB Local not available: %v", err)
	}

	t.Cleanup(func() {
		_, _ = store.client.DeleteTable(context.Background(), &dynamodb.DeleteTableInput{
			TableName: &tableName,
		})
	})
	return store
}

func TestDynamoStoreConformance(t *testing.T) {
	storetest.RunAll(t, func(t *testing.T) snapshot.Store {
		return setupTestStore(t)
	})
}
