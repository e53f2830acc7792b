package dynamostore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotdashboard/backend/libs/telemetry"
)

// fakeDynamo keeps items per table and pages results pageSize at a time.
type fakeDynamo struct {
	items    map[string][]map[string]types.AttributeValue
	pageSize int
	err      error
}

func newFake(pageSize int) *fakeDynamo {
	return &fakeDynamo{items: map[string][]map[string]types.AttributeValue{}, pageSize: pageSize}
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[*in.TableName] = append(f.items[*in.TableName], in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	device := in.ExpressionAttributeValues[":device"].(*types.AttributeValueMemberS).Value
	after, _ := strconv.ParseInt(in.ExpressionAttributeValues[":after"].(*types.AttributeValueMemberN).Value, 10, 64)

	var matched []map[string]types.AttributeValue
	for _, av := range f.items[*in.TableName] {
		var item seriesItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return nil, err
		}
		if item.DeviceID == device && item.PayloadTimestamp > after {
			matched = append(matched, av)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return numberOf(matched[i]["payloadTimestamp"]) < numberOf(matched[j]["payloadTimestamp"])
	})

	size := f.pageSize
	if in.Limit != nil && int(*in.Limit) < size {
		size = int(*in.Limit)
	}
	items, next := f.page(matched, in.ExclusiveStartKey, size)
	return &dynamodb.QueryOutput{Items: items, LastEvaluatedKey: next}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	items, next := f.page(f.items[*in.TableName], in.ExclusiveStartKey, f.pageSize)
	return &dynamodb.ScanOutput{Items: items, LastEvaluatedKey: next}, nil
}

func (f *fakeDynamo) page(all []map[string]types.AttributeValue, start map[string]types.AttributeValue, size int) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	offset := 0
	if start != nil {
		offset = int(numberOf(start["offset"]))
	}
	end := offset + size
	if end >= len(all) {
		return all[offset:], nil
	}
	return all[offset:end], map[string]types.AttributeValue{
		"offset": &types.AttributeValueMemberN{Value: strconv.Itoa(end)},
	}
}

func numberOf(av types.AttributeValue) int64 {
	n, _ := strconv.ParseInt(av.(*types.AttributeValueMemberN).Value, 10, 64)
	return n
}

func rec(id string, epoch int64) telemetry.Record {
	return telemetry.Record{
		DeviceID:       id,
		BatteryCharge:  float64(epoch),
		TimeStampEpoch: epoch,
		TimeStampISO:   "2024-01-01T00:00:00.000",
		Location:       telemetry.Location{Lat: 37.26, Lon: -119.62},
	}
}

func TestSeriesAppendWritesKeyAndPayload(t *testing.T) {
	api := newFake(10)
	table := NewSeriesTable(api, "series", 7*24*time.Hour)
	table.now = func() time.Time { return time.Unix(1000, 0) }

	require.NoError(t, table.Append(context.Background(), rec("knuth", 42)))

	require.Len(t, api.items["series"], 1)
	var item seriesItem
	require.NoError(t, attributevalue.UnmarshalMap(api.items["series"][0], &item))
	assert.Equal(t, "knuth", item.DeviceID)
	assert.Equal(t, int64(42), item.PayloadTimestamp)
	assert.Equal(t, rec("knuth", 42), item.Payload)
	assert.Equal(t, int64(1000+7*24*3600), item.ExpiresAt)
}

func TestSeriesSinceFollowsPagesAndLimit(t *testing.T) {
	api := newFake(2)
	table := NewSeriesTable(api, "series", 0)
	ctx := context.Background()
	for _, epoch := range []int64{100, 200, 300, 400, 500} {
		require.NoError(t, table.Append(ctx, rec("hopper", epoch)))
	}
	require.NoError(t, table.Append(ctx, rec("turing", 600)))

	all, err := table.Since(ctx, "hopper", 100, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, int64(200), all[0].TimeStampEpoch)
	assert.Equal(t, int64(500), all[3].TimeStampEpoch)

	limited, err := table.Since(ctx, "hopper", 0, 3)
	require.NoError(t, err)
	require.Len(t, limited, 3)
	assert.Equal(t, int64(300), limited[2].TimeStampEpoch)
}

func TestStatusAllScansEveryPage(t *testing.T) {
	api := newFake(1)
	table := NewStatusTable(api, "status")
	ctx := context.Background()
	require.NoError(t, table.Upsert(ctx, rec("turing", 1)))
	require.NoError(t, table.Upsert(ctx, rec("hopper", 2)))
	require.NoError(t, table.Upsert(ctx, rec("knuth", 3)))

	all, err := table.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"hopper", "knuth", "turing"}, []string{all[0].DeviceID, all[1].DeviceID, all[2].DeviceID})
}

func TestErrorsAreWrapped(t *testing.T) {
	api := newFake(1)
	api.err = errors.New("throttled")

	err := NewStatusTable(api, "status").Upsert(context.Background(), rec("knuth", 1))
	assert.ErrorIs(t, err, api.err)

	_, err = NewSeriesTable(api, "series", 0).Since(context.Background(), "knuth", 0, 0)
	assert.ErrorIs(t, err, api.err)
}
