package handlers

import (
	"context"
	"net/http"

	libhttp "iotdashboard/backend/libs/httpserver"
	"iotdashboard/backend/services/dashboard-service/internal/service"
)

// Looker answers gateway lookups.
type Looker interface {
	Lookup(ctx context.Context, req service.LookupRequest) service.LookupResult
}

// DevicesHandler serves GET /devices.
type DevicesHandler struct {
	service Looker
}

// NewDevicesHandler returns handler.
func NewDevicesHandler(svc Looker) *DevicesHandler {
	return &DevicesHandler{service: svc}
}

// ServeHTTP always answers 200; a failed lookup is the empty object.
func (h *DevicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := service.LookupRequest{DeviceID: r.URL.Query().Get("deviceId")}
	libhttp.WriteJSON(w, http.StatusOK, h.service.Lookup(r.Context(), req))
}
