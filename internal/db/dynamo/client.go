// Package dynamo implements the record store backend over DynamoDB.
//
// Table schema: partition key "id" (string), attribute "payload" (binary)
// holding the encrypted record blob. Create with:
//
//	aws dynamodb create-table \
//	  --table-name cipherdex-customers \
//	  --attribute-definitions AttributeName=id,AttributeType=S \
//	  --key-schema AttributeName=id,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/kailas-cloud/cipherdex/internal/db"
)

// batchGetLimit is the DynamoDB BatchGetItem hard limit per request.
const batchGetLimit = 100

// Client is the interface for the DynamoDB operations the store uses.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Config holds connection parameters for the DynamoDB-backed record store.
type Config struct {
	Table    string
	Region   string
	Endpoint string // non-empty for dynamodb-local
}

// Store implements db.KeyValueStore over DynamoDB.
type Store struct {
	client Client
	table  string
}

// NewStore creates a DynamoDB store from the ambient AWS configuration.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("table is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Store{client: client, table: cfg.Table}, nil
}

// NewStoreFromClient wraps an existing client. Used by tests with a mock.
func NewStoreFromClient(client Client, table string) *Store {
	return &Store{client: client, table: table}
}

// Put writes a payload blob under id. Fails with db.ErrKeyExists when the
// id is already present.
func (s *Store) Put(ctx context.Context, id string, payload []byte) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"id":      &types.AttributeValueMemberS{Value: id},
			"payload": &types.AttributeValueMemberB{Value: payload},
		},
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return db.ErrKeyExists
		}
		return &db.Error{Op: db.OpPut, Err: err}
	}
	return nil
}

// GetBatch fetches payload blobs for the given ids. Absent ids are omitted
// from the result map.
func (s *Store) GetBatch(ctx context.Context, ids []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(ids))

	for start := 0; start < len(ids); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(ids) {
			end = len(ids)
		}

		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, map[string]types.AttributeValue{
				"id": &types.AttributeValueMemberS{Value: id},
			})
		}

		request := map[string]types.KeysAndAttributes{
			s.table: {Keys: keys},
		}

		for len(request) > 0 {
			resp, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: request,
			})
			if err != nil {
				return nil, &db.Error{Op: db.OpGetBatch, Err: err}
			}

			for _, item := range resp.Responses[s.table] {
				id, payload, ok := parseItem(item)
				if !ok {
					continue
				}
				out[id] = payload
			}

			request = resp.UnprocessedKeys
		}
	}

	return out, nil
}

// Delete removes an id. Deleting an absent id is a no-op success.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	return nil
}

// CountExisting returns how many of the given ids are present.
func (s *Store) CountExisting(ctx context.Context, ids []string) (int, error) {
	found, err := s.GetBatch(ctx, ids)
	if err != nil {
		return 0, err
	}
	return len(found), nil
}

// Count returns the table's item count. DynamoDB refreshes the figure
// roughly every six hours, so treat it as approximate.
func (s *Store) Count(ctx context.Context) (int64, error) {
	resp, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return 0, &db.Error{Op: db.OpDescribe, Err: err}
	}
	if resp.Table == nil || resp.Table.ItemCount == nil {
		return 0, nil
	}
	return *resp.Table.ItemCount, nil
}

// Ping checks connectivity via DescribeTable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return &db.Error{Op: db.OpDescribe, Err: err}
	}
	return nil
}

// WaitForReady polls Ping until the table responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for record store: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func parseItem(item map[string]types.AttributeValue) (string, []byte, bool) {
	idAttr, ok := item["id"].(*types.AttributeValueMemberS)
	if !ok {
		return "", nil, false
	}
	payloadAttr, ok := item["payload"].(*types.AttributeValueMemberB)
	if !ok {
		return idAttr.Value, nil, false
	}
	return idAttr.Value, payloadAttr.Value, true
}
