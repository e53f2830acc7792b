package telemetry

import "go.uber.org/zap"

// Thresholds holds the alerting limits. A value at or beyond a limit breaches.
type Thresholds struct {
	ChargeHigh    float64 `yaml:"chargeHigh"`
	ChargeLow     float64 `yaml:"chargeLow"`
	DischargeHigh float64 `yaml:"dischargeHigh"`
	DischargeLow  float64 `yaml:"dischargeLow"`
}

// DefaultThresholds returns the limits used by the demo fleet.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ChargeHigh:    20,
		ChargeLow:     -10,
		DischargeHigh: 5,
		DischargeLow:  0,
	}
}

// Breach describes the first limit a record crossed.
type Breach struct {
	Field string
	Value float64
	Limit float64
}

// ThresholdEvaluator checks records against limits.
type ThresholdEvaluator struct {
	limits Thresholds
	logger *zap.Logger
}

// NewThresholdEvaluator returns an evaluator. A nil logger disables debug output.
func NewThresholdEvaluator(limits Thresholds, logger *zap.Logger) *ThresholdEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThresholdEvaluator{limits: limits, logger: logger}
}

// Evaluate returns the first breached limit. Charge is checked before
// discharge rate and evaluation stops at the first hit.
func (e *ThresholdEvaluator) Evaluate(rec Record) (Breach, bool) {
	e.logger.Debug("checking battery charge",
		zap.String("device_id", rec.DeviceID),
		zap.Float64("battery_charge", rec.BatteryCharge))
	if rec.BatteryCharge >= e.limits.ChargeHigh {
		return Breach{Field: "batteryCharge", Value: rec.BatteryCharge, Limit: e.limits.ChargeHigh}, true
	}
	if rec.BatteryCharge <= e.limits.ChargeLow {
		return Breach{Field: "batteryCharge", Value: rec.BatteryCharge, Limit: e.limits.ChargeLow}, true
	}

	e.logger.Debug("checking battery discharge rate",
		zap.String("device_id", rec.DeviceID),
		zap.Float64("battery_discharge_rate", rec.BatteryDischargeRate))
	if rec.BatteryDischargeRate >= e.limits.DischargeHigh {
		return Breach{Field: "batteryDischargeRate", Value: rec.BatteryDischargeRate, Limit: e.limits.DischargeHigh}, true
	}
	if rec.BatteryDischargeRate <= e.limits.DischargeLow {
		return Breach{Field: "batteryDischargeRate", Value: rec.BatteryDischargeRate, Limit: e.limits.DischargeLow}, true
	}

	e.logger.Debug("values within limits", zap.String("device_id", rec.DeviceID))
	return Breach{}, false
}

// Exceeds reports whether any limit is breached.
func (e *ThresholdEvaluator) Exceeds(rec Record) bool {
	_, ok := e.Evaluate(rec)
	return ok
}
