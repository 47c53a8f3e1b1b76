package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/webordinary/switchboard/pkg/types"
)

// DynamoTables names the four tables backing hosted mode.
type DynamoTables struct {
	ThreadMappings string
	QueueRecords   string
	Ownership      string
	Sessions       string
}

// DefaultDynamoTables returns the conventional table names under a prefix.
func DefaultDynamoTables(prefix string) DynamoTables {
	return DynamoTables{
		ThreadMappings: prefix + "-thread-mappings",
		QueueRecords:   prefix + "-queue-records",
		Ownership:      prefix + "-ownership",
		Sessions:       prefix + "-sessions",
	}
}

// DynamoStore implements Store on DynamoDB. The thread-mappings table is
// expected to have native TTL enabled on the expiresAt attribute; the
// queue-records table uses tenantKey as partition key and createdAt
// (unix nanos) as sort key.
type DynamoStore struct {
	client *dynamodb.Client
	tables DynamoTables
}

// NewDynamoStore creates a DynamoDB-backed store.
func NewDynamoStore(client *dynamodb.Client, tables DynamoTables) *DynamoStore {
	return &DynamoStore{client: client, tables: tables}
}

// Close is a no-op; the underlying HTTP client is shared.
func (s *DynamoStore) Close() error { return nil }

type threadMappingItem struct {
	ThreadID       string `dynamodbav:"threadId"`
	TenantKey      string `dynamodbav:"tenantKey"`
	FirstSeenAt    int64  `dynamodbav:"firstSeenAt"`
	LastActivityAt int64  `dynamodbav:"lastActivityAt"`
	MessageCount   int    `dynamodbav:"messageCount"`
	LastTransport  string `dynamodbav:"lastTransport"`
	ExpiresAt      int64  `dynamodbav:"expiresAt,omitempty"`
}

func (s *DynamoStore) GetThreadMapping(ctx context.Context, threadID string) (*types.ThreadMapping, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.ThreadMappings),
		Key: map[string]ddbtypes.AttributeValue{
			"threadId": &ddbtypes.AttributeValueMemberS{Value: threadID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get thread mapping: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var item threadMappingItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	key, err := types.ParseTenantKey(item.TenantKey)
	if err != nil {
		return nil, err
	}
	m := &types.ThreadMapping{
		ThreadID:       item.ThreadID,
		TenantKey:      key,
		FirstSeenAt:    time.Unix(item.FirstSeenAt, 0).UTC(),
		LastActivityAt: time.Unix(item.LastActivityAt, 0).UTC(),
		MessageCount:   item.MessageCount,
		LastTransport:  types.Source(item.LastTransport),
	}
	if item.ExpiresAt != 0 {
		m.ExpiresAt = time.Unix(item.ExpiresAt, 0).UTC()
	}
	return m, nil
}

func (s *DynamoStore) PutThreadMapping(ctx context.Context, m *types.ThreadMapping) error {
	item, err := attributevalue.MarshalMap(threadMappingItem{
		ThreadID:       m.ThreadID,
		TenantKey:      m.TenantKey.String(),
		FirstSeenAt:    m.FirstSeenAt.Unix(),
		LastActivityAt: m.LastActivityAt.Unix(),
		MessageCount:   m.MessageCount,
		LastTransport:  string(m.LastTransport),
		ExpiresAt:      expiresEpoch(m.ExpiresAt),
	})
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tables.ThreadMappings),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(threadId)"),
	})
	if err != nil {
		var cond *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			// Binding already exists; the tenant is immutable once written.
			return nil
		}
		return fmt.Errorf("failed to put thread mapping: %w", err)
	}
	return nil
}

func (s *DynamoStore) TouchThreadMapping(ctx context.Context, threadID string, at time.Time, transport types.Source) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tables.ThreadMappings),
		Key: map[string]ddbtypes.AttributeValue{
			"threadId": &ddbtypes.AttributeValueMemberS{Value: threadID},
		},
		UpdateExpression:    aws.String("SET lastActivityAt = :a, lastTransport = :t, expiresAt = :e ADD messageCount :one"),
		ConditionExpression: aws.String("attribute_exists(threadId)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":a":   &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(at.Unix(), 10)},
			":t":   &ddbtypes.AttributeValueMemberS{Value: string(transport)},
			":e":   &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(at.Add(types.ThreadMappingTTL).Unix(), 10)},
			":one": &ddbtypes.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		var cond *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to touch thread mapping: %w", err)
	}
	return nil
}

func (s *DynamoStore) CountThreadMappings(ctx context.Context) (int, error) {
	count := 0
	var start map[string]ddbtypes.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tables.ThreadMappings),
			Select:            ddbtypes.SelectCount,
			ExclusiveStartKey: start,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to count thread mappings: %w", err)
		}
		count += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	return count, nil
}

type queueRecordItem struct {
	TenantKey string `dynamodbav:"tenantKey"`
	CreatedAt int64  `dynamodbav:"createdAt"`
	InputURL  string `dynamodbav:"inputUrl"`
	OutputURL string `dynamodbav:"outputUrl"`
	DLQURL    string `dynamodbav:"dlqUrl"`
}

func (s *DynamoStore) PutQueueRecord(ctx context.Context, rec *types.QueueRecord) error {
	item, err := attributevalue.MarshalMap(queueRecordItem{
		TenantKey: rec.TenantKey.String(),
		CreatedAt: rec.CreatedAt.UnixNano(),
		InputURL:  rec.Triplet.InputURL,
		OutputURL: rec.Triplet.OutputURL,
		DLQURL:    rec.Triplet.DLQURL,
	})
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.QueueRecords),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put queue record: %w", err)
	}
	return nil
}

func (s *DynamoStore) LatestQueueRecord(ctx context.Context, key types.TenantKey) (*types.QueueRecord, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.QueueRecords),
		KeyConditionExpression: aws.String("tenantKey = :k"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":k": &ddbtypes.AttributeValueMemberS{Value: key.String()},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query queue records: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ErrNotFound
	}
	return queueRecordFromItem(out.Items[0])
}

func (s *DynamoStore) ListLatestQueueRecords(ctx context.Context) ([]*types.QueueRecord, error) {
	latest := make(map[types.TenantKey]*types.QueueRecord)
	var start map[string]ddbtypes.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tables.QueueRecords),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue records: %w", err)
		}
		for _, item := range out.Items {
			rec, err := queueRecordFromItem(item)
			if err != nil {
				return nil, err
			}
			if cur, ok := latest[rec.TenantKey]; !ok || rec.CreatedAt.After(cur.CreatedAt) {
				latest[rec.TenantKey] = rec
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	records := make([]*types.QueueRecord, 0, len(latest))
	for _, rec := range latest {
		records = append(records, rec)
	}
	return records, nil
}

func (s *DynamoStore) DeleteQueueRecords(ctx context.Context, key types.TenantKey) error {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.QueueRecords),
		KeyConditionExpression: aws.String("tenantKey = :k"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":k": &ddbtypes.AttributeValueMemberS{Value: key.String()},
		},
		ProjectionExpression: aws.String("tenantKey, createdAt"),
	})
	if err != nil {
		return fmt.Errorf("failed to query queue records: %w", err)
	}
	for _, item := range out.Items {
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tables.QueueRecords),
			Key: map[string]ddbtypes.AttributeValue{
				"tenantKey": item["tenantKey"],
				"createdAt": item["createdAt"],
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete queue record: %w", err)
		}
	}
	return nil
}

type ownershipItem struct {
	TenantKey       string `dynamodbav:"tenantKey"`
	WorkerID        string `dynamodbav:"workerId"`
	Status          string `dynamodbav:"status"`
	LastHeartbeatAt int64  `dynamodbav:"lastHeartbeatAt"`
}

func (s *DynamoStore) GetOwnership(ctx context.Context, key types.TenantKey) (*types.OwnershipRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Ownership),
		Key: map[string]ddbtypes.AttributeValue{
			"tenantKey": &ddbtypes.AttributeValueMemberS{Value: key.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get ownership: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return ownershipFromItem(out.Item)
}

func (s *DynamoStore) PutOwnership(ctx context.Context, rec *types.OwnershipRecord) error {
	item, err := attributevalue.MarshalMap(ownershipItem{
		TenantKey:       rec.TenantKey.String(),
		WorkerID:        rec.WorkerID,
		Status:          string(rec.Status),
		LastHeartbeatAt: rec.LastHeartbeatAt.Unix(),
	})
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Ownership),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put ownership: %w", err)
	}
	return nil
}

func (s *DynamoStore) ListOwnership(ctx context.Context) ([]*types.OwnershipRecord, error) {
	var records []*types.OwnershipRecord
	var start map[string]ddbtypes.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tables.Ownership),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan ownership: %w", err)
		}
		for _, item := range out.Items {
			rec, err := ownershipFromItem(item)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	return records, nil
}

type sessionItem struct {
	SessionID string `dynamodbav:"sessionId"`
	TenantKey string `dynamodbav:"tenantKey"`
	ThreadID  string `dynamodbav:"threadId,omitempty"`
	CreatedAt int64  `dynamodbav:"createdAt"`
}

func (s *DynamoStore) GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Sessions),
		Key: map[string]ddbtypes.AttributeValue{
			"sessionId": &ddbtypes.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var item sessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	key, err := types.ParseTenantKey(item.TenantKey)
	if err != nil {
		return nil, err
	}
	return &types.SessionRecord{
		SessionID: item.SessionID,
		TenantKey: key,
		ThreadID:  item.ThreadID,
		CreatedAt: time.Unix(item.CreatedAt, 0).UTC(),
	}, nil
}

func (s *DynamoStore) PutSession(ctx context.Context, rec *types.SessionRecord) error {
	item, err := attributevalue.MarshalMap(sessionItem{
		SessionID: rec.SessionID,
		TenantKey: rec.TenantKey.String(),
		ThreadID:  rec.ThreadID,
		CreatedAt: rec.CreatedAt.Unix(),
	})
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Sessions),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put session: %w", err)
	}
	return nil
}

func queueRecordFromItem(item map[string]ddbtypes.AttributeValue) (*types.QueueRecord, error) {
	var qi queueRecordItem
	if err := attributevalue.UnmarshalMap(item, &qi); err != nil {
		return nil, err
	}
	key, err := types.ParseTenantKey(qi.TenantKey)
	if err != nil {
		return nil, err
	}
	created := time.Unix(0, qi.CreatedAt).UTC()
	return &types.QueueRecord{
		TenantKey: key,
		CreatedAt: created,
		Triplet: types.QueueTriplet{
			InputURL:  qi.InputURL,
			OutputURL: qi.OutputURL,
			DLQURL:    qi.DLQURL,
			CreatedAt: created,
		},
	}, nil
}

func ownershipFromItem(item map[string]ddbtypes.AttributeValue) (*types.OwnershipRecord, error) {
	var oi ownershipItem
	if err := attributevalue.UnmarshalMap(item, &oi); err != nil {
		return nil, err
	}
	key, err := types.ParseTenantKey(oi.TenantKey)
	if err != nil {
		return nil, err
	}
	return &types.OwnershipRecord{
		TenantKey:       key,
		WorkerID:        oi.WorkerID,
		Status:          types.OwnershipStatus(oi.Status),
		LastHeartbeatAt: time.Unix(oi.LastHeartbeatAt, 0).UTC(),
	}, nil
}

func expiresEpoch(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
