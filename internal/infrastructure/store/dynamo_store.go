package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultMarkerRetention bounds how long DynamoDB keeps a marker that
// was never erased. Holds last minutes, so a day is plenty.
const DefaultMarkerRetention = 24 * time.Hour

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps markers in a DynamoDB table keyed by marker_key.
// Items carry an expires_at epoch attribute for the table's TTL.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	retention time.Duration
}

// dynamoMarker represents the DynamoDB item structure
type dynamoMarker struct {
	Key       string `dynamodbav:"marker_key"`
	Value     string `dynamodbav:"value"`
	UpdatedAt string `dynamodbav:"updated_at"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		retention: DefaultMarkerRetention,
	}
}

// NewDynamoClient loads the default AWS configuration for region
func NewDynamoClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

func (ds *DynamoStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	result, err := ds.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(ds.tableName),
		Key:            ds.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to get marker: %w", err)
	}
	if result.Item == nil {
		return "", false, nil
	}

	var item dynamoMarker
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal marker: %w", err)
	}
	return item.Value, true, nil
}

func (ds *DynamoStore) Put(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	av, err := ds.marshal(key, value, time.Now().UTC())
	if err != nil {
		return err
	}

	// Overwrite existing marker (no condition)
	_, err = ds.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(ds.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put marker: %w", err)
	}
	return nil
}

func (ds *DynamoStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := ds.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(ds.tableName),
		Key:       ds.key(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete marker: %w", err)
	}
	return nil
}

func (ds *DynamoStore) marshal(key, value string, now time.Time) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(dynamoMarker{
		Key:       key,
		Value:     value,
		UpdatedAt: now.Format(time.RFC3339Nano),
		ExpiresAt: now.Add(ds.retention).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal marker: %w", err)
	}
	return av, nil
}

func (ds *DynamoStore) key(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"marker_key": &types.AttributeValueMemberS{Value: key},
	}
}
