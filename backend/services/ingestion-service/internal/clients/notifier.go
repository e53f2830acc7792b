package clients

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"iotdashboard/backend/libs/telemetry"
)

// DefaultAlertMessage is the fixed notification text.
const DefaultAlertMessage = "Device telemetry alert: threshold reached!"

// Alert is sent when a record breaches a threshold.
type Alert struct {
	ID       string           `json:"id"`
	Message  string           `json:"message"`
	DeviceID string           `json:"deviceId"`
	Field    string           `json:"field"`
	Value    float64          `json:"value"`
	Limit    float64          `json:"limit"`
	RaisedAt time.Time        `json:"raisedAt"`
	Record   telemetry.Record `json:"record"`
}

// NewAlert builds an alert for a breached record.
func NewAlert(message string, rec telemetry.Record, breach telemetry.Breach, now time.Time) Alert {
	if message == "" {
		message = DefaultAlertMessage
	}
	return Alert{
		ID:       uuid.NewString(),
		Message:  message,
		DeviceID: rec.DeviceID,
		Field:    breach.Field,
		Value:    breach.Value,
		Limit:    breach.Limit,
		RaisedAt: now.UTC(),
		Record:   rec,
	}
}

// DisabledNotifier drops alerts. Used when no destination is configured.
type DisabledNotifier struct {
	logger *zap.Logger
}

// NewDisabledNotifier returns notifier.
func NewDisabledNotifier(logger *zap.Logger) *DisabledNotifier {
	return &DisabledNotifier{logger: logger}
}

// Notify logs and discards the alert.
func (n *DisabledNotifier) Notify(_ context.Context, alert Alert) error {
	n.logger.Debug("notifier disabled, skipping alert", zap.String("device_id", alert.DeviceID))
	return nil
}
