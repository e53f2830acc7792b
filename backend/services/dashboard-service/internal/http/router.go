package httpserver

import (
	"net/http"

	libhttp "iotdashboard/backend/libs/httpserver"
)

// Routes defines HTTP endpoints. Live is optional.
type Routes struct {
	Devices http.HandlerFunc
	Live    http.HandlerFunc
	Token   http.HandlerFunc
	Health  http.HandlerFunc
}

// NewRouter sets up HTTP routing. A non-nil protect wraps the device routes.
func NewRouter(routes Routes, protect func(http.Handler) http.Handler) http.Handler {
	if protect == nil {
		protect = func(h http.Handler) http.Handler { return h }
	}
	mux := http.NewServeMux()
	if routes.Devices != nil {
		mux.Handle("/devices", protect(libhttp.Method(http.MethodGet, routes.Devices)))
	}
	if routes.Live != nil {
		mux.Handle("/devices/live", protect(libhttp.Method(http.MethodGet, routes.Live)))
	}
	if routes.Token != nil {
		mux.Handle("/auth/token", libhttp.Method(http.MethodPost, routes.Token))
	}
	if routes.Health != nil {
		mux.Handle("/health", libhttp.Method(http.MethodGet, routes.Health))
	}
	return mux
}
