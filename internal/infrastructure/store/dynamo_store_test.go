package store

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in memory keyed by marker_key.
type fakeDynamo struct {
	items    map[string]map[string]types.AttributeValue
	tables   []string
	failNext error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) keyOf(key map[string]types.AttributeValue) string {
	return key["marker_key"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) takeErr() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.tables = append(f.tables, aws.ToString(params.TableName))
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: f.items[f.keyOf(params.Key)]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.tables = append(f.tables, aws.ToString(params.TableName))
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	f.items[f.keyOf(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.tables = append(f.tables, aws.ToString(params.TableName))
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	delete(f.items, f.keyOf(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// ============================================
// Dynamo Store Tests
// ============================================

func TestDynamoStore(t *testing.T) {
	fake := newFakeDynamo()
	exerciseMarkerStore(t, NewDynamoStore(fake, "hold-markers"))

	for _, table := range fake.tables {
		assert.Equal(t, "hold-markers", table)
	}
}

func TestDynamoStore_PutSetsRetention(t *testing.T) {
	fake := newFakeDynamo()
	s := NewDynamoStore(fake, "hold-markers")
	before := time.Now().Add(DefaultMarkerRetention).Unix()

	require.NoError(t, s.Put(context.Background(), "k", "v"))

	item := fake.items["k"]
	require.NotNil(t, item)
	ttl, err := strconv.ParseInt(item["expires_at"].(*types.AttributeValueMemberN).Value, 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ttl, before)
	assert.Equal(t, "v", item["value"].(*types.AttributeValueMemberS).Value)
}

func TestDynamoStore_WrapsErrors(t *testing.T) {
	fake := newFakeDynamo()
	s := NewDynamoStore(fake, "hold-markers")
	boom := errors.New("throttled")

	fake.failNext = boom
	err := s.Put(context.Background(), "k", "v")
	assert.ErrorIs(t, err, boom)

	fake.failNext = boom
	_, _, err = s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, boom)
}
