package logging

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the JSON service logger on stdout. LOG_LEVEL sets the level
// and LOG_FORMAT=console switches to the human readable encoder. Every entry
// carries the service name.
func NewLogger(service string) (*zap.Logger, error) {
	return build(service, "stdout", true)
}

// NewCLILogger is NewLogger writing to stderr without sampling, leaving stdout
// to command output.
func NewCLILogger(service string) (*zap.Logger, error) {
	return build(service, "stderr", false)
}

func build(service, output string, sampled bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(os.Getenv("LOG_LEVEL")))
	cfg.Encoding = Format(os.Getenv("LOG_FORMAT"))
	cfg.EncoderConfig = encoderConfig(cfg.Encoding)
	cfg.OutputPaths = []string{output}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if !sampled {
		cfg.Sampling = nil
	}

	opts := []zap.Option{}
	if service != "" {
		opts = append(opts, zap.Fields(zap.String("service", service)))
	}
	return cfg.Build(opts...)
}

// ParseLevel maps a textual level to zapcore, defaulting to info.
func ParseLevel(raw string) zapcore.Level {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Format returns "console" when asked for, "json" otherwise.
func Format(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "console") {
		return "console"
	}
	return "json"
}

func encoderConfig(encoding string) zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.StacktraceKey = "stack"
	enc.EncodeTime = utcTime
	enc.EncodeDuration = zapcore.StringDurationEncoder
	if encoding == "console" {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return enc
}

func utcTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339Nano))
}
