package app

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	libhttp "iotdashboard/backend/libs/httpserver"
	"iotdashboard/backend/libs/password"
	"iotdashboard/backend/services/dashboard-service/internal/auth"
	"iotdashboard/backend/services/dashboard-service/internal/config"
	httpserver "iotdashboard/backend/services/dashboard-service/internal/http"
	"iotdashboard/backend/services/dashboard-service/internal/http/handlers"
	"iotdashboard/backend/services/dashboard-service/internal/http/middleware"
	"iotdashboard/backend/services/dashboard-service/internal/live"
	"iotdashboard/backend/services/dashboard-service/internal/service"
)

// Gateway is the query service plus the stores backing it. The HTTP process
// and the Lambda entry point both build one.
type Gateway struct {
	Service *service.QueryService
	stores  *stores
	logger  *zap.Logger
}

// NewGateway opens the stores selected by cfg.
func NewGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Gateway, error) {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	svc := service.NewQueryService(st.series, st.status, cfg.Query.Window, cfg.Query.Limit, logger.Named("query"))
	return &Gateway{Service: svc, stores: st, logger: logger}, nil
}

// Close releases store connections.
func (g *Gateway) Close() {
	closeAll(g.stores.closers, g.logger)
}

// App wires dashboard service dependencies.
type App struct {
	gateway *Gateway
	server  *libhttp.Server
	hub     *live.Hub
	logger  *zap.Logger
}

// New constructs application components.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	gateway, err := NewGateway(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{gateway: gateway, logger: logger}
	routes := httpserver.Routes{
		Devices: handlers.NewDevicesHandler(gateway.Service).ServeHTTP,
		Health:  handlers.NewHealthHandler(),
	}

	var protect func(http.Handler) http.Handler
	if cfg.Auth.Enabled {
		tokens := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
		authenticator := auth.NewAuthenticator(cfg.Auth.Users, password.NewBcryptHasher(0), tokens)
		routes.Token = handlers.NewAuthHandler(authenticator, logger).ServeHTTP
		protect = middleware.AuthMiddleware(tokens)
	}

	if cfg.Live.Enabled && gateway.stores.watcher != nil {
		a.hub = live.NewHub(logger.Named("live"))
		ws := live.NewServer(a.hub, gateway.stores.status, cfg.Live.WriteTimeout, cfg.Live.PingInterval, logger.Named("live"))
		routes.Live = ws.HandleWS
	}

	a.server = libhttp.NewServer(cfg.HTTPAddress(), httpserver.NewRouter(routes, protect), logger)
	return a, nil
}

// Run serves HTTP and relays live updates until ctx is done.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(ctx) })
	if a.hub != nil {
		g.Go(func() error { return a.hub.Feed(ctx, a.gateway.stores.watcher) })
	}
	return g.Wait()
}

// Close releases resources.
func (a *App) Close() {
	a.gateway.Close()
}
