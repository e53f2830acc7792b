package devicestatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"iotdashboard/backend/libs/telemetry"
)

const (
	defaultHashKey = "devices:status"
	defaultChannel = "devices:status:updates"
)

// ErrNotFound is returned when a device has never reported.
var ErrNotFound = errors.New("devicestatus: device not found")

// Store keeps the latest record per device in a Redis hash and announces
// every change on a pub/sub channel.
type Store struct {
	client  *redis.Client
	hashKey string
	channel string
}

// NewStore returns redis-backed store. Empty prefix uses "devices".
func NewStore(client *redis.Client, prefix string) *Store {
	s := &Store{client: client, hashKey: defaultHashKey, channel: defaultChannel}
	if prefix != "" {
		s.hashKey = prefix + ":status"
		s.channel = prefix + ":status:updates"
	}
	return s
}

// Upsert replaces the device's latest record.
func (s *Store) Upsert(ctx context.Context, rec telemetry.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("devicestatus: encode record: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.hashKey, rec.DeviceID, data)
		pipe.Publish(ctx, s.channel, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("devicestatus: upsert %s: %w", rec.DeviceID, err)
	}
	return nil
}

// Get returns the latest record of one device.
func (s *Store) Get(ctx context.Context, deviceID string) (*telemetry.Record, error) {
	raw, err := s.client.HGet(ctx, s.hashKey, deviceID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec telemetry.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("devicestatus: decode %s: %w", deviceID, err)
	}
	return &rec, nil
}

// All returns every device's latest record ordered by device id.
func (s *Store) All(ctx context.Context) ([]telemetry.Record, error) {
	entries, err := s.client.HGetAll(ctx, s.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("devicestatus: scan: %w", err)
	}
	records := make([]telemetry.Record, 0, len(entries))
	for id, raw := range entries {
		var rec telemetry.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("devicestatus: decode %s: %w", id, err)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].DeviceID < records[j].DeviceID })
	return records, nil
}

// Watch calls fn for every published update until ctx is done. It returns
// once the subscription is confirmed or failed via ready.
func (s *Store) Watch(ctx context.Context, ready chan<- error, fn func(telemetry.Record)) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		err = fmt.Errorf("devicestatus: subscribe: %w", err)
		signal(ready, err)
		return err
	}
	signal(ready, nil)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var rec telemetry.Record
			if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
				continue
			}
			fn(rec)
		}
	}
}

func signal(ready chan<- error, err error) {
	if ready == nil {
		return
	}
	ready <- err
	close(ready)
}
