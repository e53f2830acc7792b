package dynamostore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"iotdashboard/backend/libs/awsconfig"
	"iotdashboard/backend/libs/telemetry"
)

// API is the subset of the DynamoDB client the tables use.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// NewClient builds a DynamoDB client from the default credential chain.
func NewClient(ctx context.Context, opts awsconfig.Options) (*dynamodb.Client, error) {
	cfg, err := awsconfig.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint := opts.BaseEndpoint(); endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	}), nil
}

type seriesItem struct {
	DeviceID         string           `dynamodbav:"deviceId"`
	PayloadTimestamp int64            `dynamodbav:"payloadTimestamp"`
	Payload          telemetry.Record `dynamodbav:"payload"`
	ExpiresAt        int64            `dynamodbav:"expiresAt,omitempty"`
}

type statusItem struct {
	DeviceID string           `dynamodbav:"deviceId"`
	Payload  telemetry.Record `dynamodbav:"payload"`
}

// SeriesTable stores every record under (deviceId, payloadTimestamp).
type SeriesTable struct {
	api   API
	table string
	ttl   time.Duration
	now   func() time.Time
}

// NewSeriesTable returns the time-series table. ttl > 0 stamps expiresAt for
// DynamoDB's TTL sweeper.
func NewSeriesTable(api API, table string, ttl time.Duration) *SeriesTable {
	return &SeriesTable{api: api, table: table, ttl: ttl, now: time.Now}
}

// Append puts a record. Same key overwrites.
func (t *SeriesTable) Append(ctx context.Context, rec telemetry.Record) error {
	item := seriesItem{
		DeviceID:         rec.DeviceID,
		PayloadTimestamp: rec.TimeStampEpoch,
		Payload:          rec,
	}
	if t.ttl > 0 {
		item.ExpiresAt = t.now().Add(t.ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("dynamostore: marshal series item: %w", err)
	}
	if _, err := t.api.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(t.table), Item: av}); err != nil {
		return fmt.Errorf("dynamostore: put series %s: %w", rec.DeviceID, err)
	}
	return nil
}

// Since queries one device for payloadTimestamp > afterMs, oldest first.
func (t *SeriesTable) Since(ctx context.Context, deviceID string, afterMs int64, limit int) ([]telemetry.Record, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(t.table),
		KeyConditionExpression: aws.String("deviceId = :device AND payloadTimestamp > :after"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":device": &types.AttributeValueMemberS{Value: deviceID},
			":after":  &types.AttributeValueMemberN{Value: strconv.FormatInt(afterMs, 10)},
		},
		ScanIndexForward: aws.Bool(true),
	}

	records := make([]telemetry.Record, 0)
	for {
		if limit > 0 {
			input.Limit = aws.Int32(int32(limit - len(records)))
		}
		out, err := t.api.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("dynamostore: query %s: %w", deviceID, err)
		}
		var items []seriesItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("dynamostore: unmarshal series: %w", err)
		}
		for _, item := range items {
			records = append(records, item.Payload)
		}
		if len(out.LastEvaluatedKey) == 0 || (limit > 0 && len(records) >= limit) {
			return records, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// StatusTable stores the latest record per deviceId.
type StatusTable struct {
	api   API
	table string
}

// NewStatusTable returns the device status table.
func NewStatusTable(api API, table string) *StatusTable {
	return &StatusTable{api: api, table: table}
}

// Upsert replaces the device's latest record.
func (t *StatusTable) Upsert(ctx context.Context, rec telemetry.Record) error {
	av, err := attributevalue.MarshalMap(statusItem{DeviceID: rec.DeviceID, Payload: rec})
	if err != nil {
		return fmt.Errorf("dynamostore: marshal status item: %w", err)
	}
	if _, err := t.api.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(t.table), Item: av}); err != nil {
		return fmt.Errorf("dynamostore: put status %s: %w", rec.DeviceID, err)
	}
	return nil
}

// All scans the whole table, ordered by device id.
func (t *StatusTable) All(ctx context.Context) ([]telemetry.Record, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(t.table)}
	records := make([]telemetry.Record, 0)
	for {
		out, err := t.api.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("dynamostore: scan status: %w", err)
		}
		var items []statusItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("dynamostore: unmarshal status: %w", err)
		}
		for _, item := range items {
			records = append(records, item.Payload)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.Slice(records, func(i, j int) bool { return records[i].DeviceID < records[j].DeviceID })
	return records, nil
}
