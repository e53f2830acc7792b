package handlers

import (
	"net/http"

	libhttp "iotdashboard/backend/libs/httpserver"
)

// NewHealthHandler returns GET /health handler.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		libhttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
