package timeseries

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"iotdashboard/backend/libs/telemetry"
)

const schema = `
	CREATE TABLE IF NOT EXISTS device_timeseries (
		device_id         TEXT   NOT NULL,
		payload_timestamp BIGINT NOT NULL,
		payload           JSONB  NOT NULL,
		PRIMARY KEY (device_id, payload_timestamp)
	)
`

// Repository persists normalized records keyed by (device_id, payload_timestamp).
type Repository struct {
	db *sql.DB
}

// NewRepository returns repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("timeseries: ensure schema: %w", err)
	}
	return nil
}

// Append stores a record. A second record with the same key replaces the first.
func (r *Repository) Append(ctx context.Context, rec telemetry.Record) error {
	const query = `
		INSERT INTO device_timeseries (device_id, payload_timestamp, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_id, payload_timestamp) DO UPDATE SET payload = EXCLUDED.payload
	`
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("timeseries: encode record: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, rec.DeviceID, rec.TimeStampEpoch, payload); err != nil {
		return fmt.Errorf("timeseries: append %s: %w", rec.DeviceID, err)
	}
	return nil
}

// Since returns the device's records with payload_timestamp strictly greater
// than afterMs, oldest first. limit <= 0 returns everything.
func (r *Repository) Since(ctx context.Context, deviceID string, afterMs int64, limit int) ([]telemetry.Record, error) {
	const (
		query = `
		SELECT payload
		FROM device_timeseries
		WHERE device_id = $1 AND payload_timestamp > $2
		ORDER BY payload_timestamp ASC
	`
		limited = query + ` LIMIT $3`
	)

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, limited, deviceID, afterMs, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, deviceID, afterMs)
	}
	if err != nil {
		return nil, fmt.Errorf("timeseries: query %s: %w", deviceID, err)
	}
	defer rows.Close()

	records := make([]telemetry.Record, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec telemetry.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("timeseries: decode payload: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteBefore removes up to batch rows older than cutoffMs and reports how many went.
func (r *Repository) DeleteBefore(ctx context.Context, cutoffMs int64, batch int) (int64, error) {
	const query = `
		DELETE FROM device_timeseries WHERE ctid IN (
			SELECT ctid FROM device_timeseries WHERE payload_timestamp < $1 LIMIT $2
		)
	`
	res, err := r.db.ExecContext(ctx, query, cutoffMs, batch)
	if err != nil {
		return 0, fmt.Errorf("timeseries: delete before %d: %w", cutoffMs, err)
	}
	return res.RowsAffected()
}
