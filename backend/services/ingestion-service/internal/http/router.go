package httpserver

import (
	"net/http"

	libhttp "iotdashboard/backend/libs/httpserver"
)

// Routes defines HTTP endpoints.
type Routes struct {
	Telemetry http.HandlerFunc
	Health    http.HandlerFunc
}

// NewRouter sets up HTTP routing.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.Telemetry != nil {
		mux.Handle("/internal/telemetry", libhttp.Method(http.MethodPost, routes.Telemetry))
	}
	if routes.Health != nil {
		mux.Handle("/health", libhttp.Method(http.MethodGet, routes.Health))
	}
	return mux
}
