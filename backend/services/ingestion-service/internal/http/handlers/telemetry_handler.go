package handlers

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	libhttp "iotdashboard/backend/libs/httpserver"
	"iotdashboard/backend/libs/password"
	"iotdashboard/backend/libs/telemetry"
	"iotdashboard/backend/services/ingestion-service/internal/service"
)

const (
	maxBodyBytes    = 1 << 20
	ingestKeyHeader = "X-Ingest-Key"
)

// EnvelopeHandler ingests decoded payloads.
type EnvelopeHandler interface {
	HandleEnvelope(ctx context.Context, env telemetry.Envelope) service.Report
}

// TelemetryHandler accepts device payloads over HTTP.
type TelemetryHandler struct {
	service EnvelopeHandler
	hasher  password.Hasher
	keyHash string
	logger  *zap.Logger
}

// NewTelemetryHandler returns handler. An empty keyHash disables the key check.
func NewTelemetryHandler(svc EnvelopeHandler, hasher password.Hasher, keyHash string, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{service: svc, hasher: hasher, keyHash: keyHash, logger: logger}
}

// ServeHTTP handles POST /internal/telemetry.
func (h *TelemetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.keyHash != "" {
		if err := h.hasher.Compare(h.keyHash, r.Header.Get(ingestKeyHeader)); err != nil {
			libhttp.WriteError(w, http.StatusUnauthorized, "invalid ingest key")
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		libhttp.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	env, err := telemetry.DecodeEnvelope(body)
	if err != nil {
		h.logger.Warn("rejecting invalid payload", zap.Error(err))
		libhttp.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	report := h.service.HandleEnvelope(r.Context(), env)
	libhttp.WriteJSON(w, http.StatusAccepted, struct {
		Status string `json:"status"`
		service.Report
	}{Status: "ok", Report: report})
}
