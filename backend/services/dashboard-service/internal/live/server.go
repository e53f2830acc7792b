package live

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"iotdashboard/backend/libs/telemetry"
)

// SnapshotReader lists the latest record of every device.
type SnapshotReader interface {
	All(ctx context.Context) ([]telemetry.Record, error)
}

// Server upgrades dashboard requests to WebSockets.
type Server struct {
	hub          *Hub
	snapshots    SnapshotReader
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(hub *Hub, snapshots SnapshotReader, writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Server{
		hub:          hub,
		snapshots:    snapshots,
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is HTTP handler for GET /devices/live.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimSpace(r.URL.Query().Get("deviceId"))

	snapshot, err := s.snapshot(r.Context(), deviceID)
	if err != nil {
		s.logger.Error("failed to load live snapshot", zap.Error(err))
		http.Error(w, "status unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	connection := NewConnection(id, deviceID, conn, s.writeTimeout, s.pingInterval, s.logger, func(id string) {
		s.hub.Remove(id)
		cancel()
	})
	connection.Send(snapshot)
	s.hub.Add(connection)

	go connection.Start(ctx)
	s.logger.Info("viewer connected", zap.String("viewer_id", id), zap.String("device_id", deviceID))
}

func (s *Server) snapshot(ctx context.Context, deviceID string) ([]byte, error) {
	records, err := s.snapshots.All(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]telemetry.Record, 0, len(records))
	for _, rec := range records {
		if deviceID == "" || rec.DeviceID == deviceID {
			filtered = append(filtered, rec)
		}
	}
	return json.Marshal(Message{Type: MessageSnapshot, Records: filtered})
}
