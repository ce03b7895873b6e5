package ddb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ceramicnetwork/go-pulse/common"
	"github.com/ceramicnetwork/go-pulse/models"
)

const (
	attrKey   = "k"
	attrField = "f"
	attrTtl   = "exp"

	// Hash fields and string values share a partition, told apart by the sort key.
	hashFieldPrefix = "h:"
	stringField     = "s"

	batchWriteLimit     = 25
	batchWriteRetries   = 5
	batchWriteBaseDelay = 50 * time.Millisecond
)

type kvItem struct {
	Key        string `dynamodbav:"k"`
	Field      string `dynamodbav:"f"`
	Value      string `dynamodbav:"v"`
	Expiration int64  `dynamodbav:"exp,omitempty"`
}

var _ models.KeyValueStore = &DynamoStore{}

// DynamoStore is a KeyValueStore over a single DynamoDB table. String expiry uses the table's native TTL, which
// deletes lazily, so reads also filter on the expiration attribute.
type DynamoStore struct {
	client *dynamodb.Client
	table  string
	logger models.Logger
	now    func() time.Time
}

func NewDynamoStore(ctx context.Context, logger models.Logger, client *dynamodb.Client, env string) (*DynamoStore, error) {
	store := DynamoStore{
		client: client,
		table:  "pulse-" + env + "-kv",
		logger: logger,
		now:    time.Now,
	}
	if err := store.createKvTable(ctx); err != nil {
		return nil, fmt.Errorf("ddb: kv table creation failed: %w", err)
	}
	return &store, nil
}

func (ds *DynamoStore) createKvTable(ctx context.Context) error {
	createTableInput := dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(attrKey),
				AttributeType: "S",
			},
			{
				AttributeName: aws.String(attrField),
				AttributeType: "S",
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(attrKey),
				KeyType:       "HASH",
			},
			{
				AttributeName: aws.String(attrField),
				KeyType:       "RANGE",
			},
		},
		TableName: aws.String(ds.table),
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(1),
		},
	}
	if err := createTable(ctx, ds.logger, ds.client, &createTableInput); err != nil {
		return err
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	if _, err := ds.client.UpdateTimeToLive(httpCtx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(ds.table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(attrTtl),
			Enabled:       aws.Bool(true),
		},
	}); err != nil {
		// Fails when TTL is already enabled
		ds.logger.Debugf("ddb: ttl update for %s: %v", ds.table, err)
	}
	return nil
}

func (ds *DynamoStore) HSet(ctx context.Context, key, field, value string) error {
	return ds.putItem(ctx, kvItem{Key: key, Field: hashFieldPrefix + field, Value: value})
}

func (ds *DynamoStore) HSetAll(ctx context.Context, key string, fields map[string]string) error {
	requests := make([]types.WriteRequest, 0, len(fields))
	for field, value := range fields {
		attributeValues, err := attributevalue.MarshalMap(kvItem{Key: key, Field: hashFieldPrefix + field, Value: value})
		if err != nil {
			return err
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: attributeValues}})
	}
	return ds.batchWrite(ctx, requests)
}

func (ds *DynamoStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	items, err := ds.queryKey(ctx, key, hashFieldPrefix)
	if err != nil {
		return nil, fmt.Errorf("ddb: hgetall %s: %w", key, err)
	}
	fields := make(map[string]string, len(items))
	for _, item := range items {
		fields[item.Field[len(hashFieldPrefix):]] = item.Value
	}
	return fields, nil
}

func (ds *DynamoStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	item, found, err := ds.getItem(ctx, key, hashFieldPrefix+field)
	if err != nil {
		return "", false, fmt.Errorf("ddb: hget %s/%s: %w", key, field, err)
	} else if !found {
		return "", false, nil
	}
	return item.Value, true, nil
}

func (ds *DynamoStore) HDel(ctx context.Context, key, field string) error {
	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	if _, err := ds.client.DeleteItem(httpCtx, &dynamodb.DeleteItemInput{
		TableName: aws.String(ds.table),
		Key:       itemKey(key, hashFieldPrefix+field),
	}); err != nil {
		return fmt.Errorf("ddb: hdel %s/%s: %w", key, field, err)
	}
	return nil
}

func (ds *DynamoStore) Get(ctx context.Context, key string) (string, bool, error) {
	item, found, err := ds.getItem(ctx, key, stringField)
	if err != nil {
		return "", false, fmt.Errorf("ddb: get %s: %w", key, err)
	} else if !found || ds.expired(item) {
		return "", false, nil
	}
	return item.Value, true, nil
}

func (ds *DynamoStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	item := kvItem{Key: key, Field: stringField, Value: value}
	if ttl > 0 {
		item.Expiration = ds.now().Add(ttl).Unix()
	}
	return ds.putItem(ctx, item)
}

func (ds *DynamoStore) Del(ctx context.Context, key string) error {
	items, err := ds.queryKey(ctx, key, "")
	if err != nil {
		return fmt.Errorf("ddb: del %s: %w", key, err)
	}
	requests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
			Key: itemKey(item.Key, item.Field),
		}})
	}
	return ds.batchWrite(ctx, requests)
}

func (ds *DynamoStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	scanPaginator := dynamodb.NewScanPaginator(ds.client, &dynamodb.ScanInput{
		TableName:                aws.String(ds.table),
		FilterExpression:         aws.String("begins_with(#k, :prefix)"),
		ProjectionExpression:     aws.String("#k, #f, #exp"),
		ExpressionAttributeNames: map[string]string{"#k": attrKey, "#f": attrField, "#exp": attrTtl},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		},
	})
	seen := make(map[string]bool)
	keys := make([]string, 0)
	for scanPaginator.HasMorePages() {
		httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
		scanOut, err := scanPaginator.NextPage(httpCtx)
		httpCancel()
		if err != nil {
			return nil, fmt.Errorf("ddb: keys %s: %w", prefix, err)
		}
		items := make([]kvItem, 0, len(scanOut.Items))
		if err = attributevalue.UnmarshalListOfMaps(scanOut.Items, &items); err != nil {
			return nil, fmt.Errorf("ddb: keys %s: %w", prefix, err)
		}
		for _, item := range items {
			if !seen[item.Key] && !ds.expired(item) {
				seen[item.Key] = true
				keys = append(keys, item.Key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (ds *DynamoStore) getItem(ctx context.Context, key, field string) (kvItem, bool, error) {
	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	getItemOut, err := ds.client.GetItem(httpCtx, &dynamodb.GetItemInput{
		TableName:      aws.String(ds.table),
		Key:            itemKey(key, field),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return kvItem{}, false, err
	} else if len(getItemOut.Item) == 0 {
		return kvItem{}, false, nil
	}
	item := kvItem{}
	if err = attributevalue.UnmarshalMap(getItemOut.Item, &item); err != nil {
		return kvItem{}, false, err
	}
	return item, true, nil
}

func (ds *DynamoStore) putItem(ctx context.Context, item kvItem) error {
	attributeValues, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	if _, err = ds.client.PutItem(httpCtx, &dynamodb.PutItemInput{
		TableName: aws.String(ds.table),
		Item:      attributeValues,
	}); err != nil {
		return fmt.Errorf("ddb: put %s/%s: %w", item.Key, item.Field, err)
	}
	return nil
}

// queryKey returns every item stored under key whose sort key starts with fieldPrefix.
func (ds *DynamoStore) queryKey(ctx context.Context, key, fieldPrefix string) ([]kvItem, error) {
	queryInput := dynamodb.QueryInput{
		TableName:                aws.String(ds.table),
		KeyConditionExpression:   aws.String("#k = :key"),
		ExpressionAttributeNames: map[string]string{"#k": attrKey},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":key": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	}
	if len(fieldPrefix) > 0 {
		queryInput.KeyConditionExpression = aws.String("#k = :key AND begins_with(#f, :field)")
		queryInput.ExpressionAttributeNames["#f"] = attrField
		queryInput.ExpressionAttributeValues[":field"] = &types.AttributeValueMemberS{Value: fieldPrefix}
	}
	queryPaginator := dynamodb.NewQueryPaginator(ds.client, &queryInput)
	items := make([]kvItem, 0)
	for queryPaginator.HasMorePages() {
		httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
		queryOut, err := queryPaginator.NextPage(httpCtx)
		httpCancel()
		if err != nil {
			return nil, err
		}
		pageItems := make([]kvItem, 0, len(queryOut.Items))
		if err = attributevalue.UnmarshalListOfMaps(queryOut.Items, &pageItems); err != nil {
			return nil, err
		}
		items = append(items, pageItems...)
	}
	return items, nil
}

func (ds *DynamoStore) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(requests) {
			end = len(requests)
		}
		pending := map[string][]types.WriteRequest{ds.table: requests[start:end]}
		for i := 0; len(pending[ds.table]) > 0; i++ {
			if i == batchWriteRetries {
				return fmt.Errorf("ddb: %d unprocessed writes after %d attempts", len(pending[ds.table]), i)
			} else if i > 0 {
				// Unprocessed items usually mean throttling, so back off before resubmitting them.
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(batchRetryDelay(i)):
				}
			}
			httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
			batchOut, err := ds.client.BatchWriteItem(httpCtx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			httpCancel()
			if err != nil {
				return fmt.Errorf("ddb: batch write: %w", err)
			}
			pending = batchOut.UnprocessedItems
		}
	}
	return nil
}

// batchRetryDelay doubles the wait for each resubmission of unprocessed writes.
func batchRetryDelay(retry int) time.Duration {
	return batchWriteBaseDelay << (retry - 1)
}

func itemKey(key, field string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey:   &types.AttributeValueMemberS{Value: key},
		attrField: &types.AttributeValueMemberS{Value: field},
	}
}

func (ds *DynamoStore) expired(item kvItem) bool {
	return item.Field == stringField && item.Expiration > 0 && item.Expiration <= ds.now().Unix()
}
