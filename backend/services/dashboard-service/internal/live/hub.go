package live

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"iotdashboard/backend/libs/telemetry"
)

// Message types pushed to viewers.
const (
	MessageSnapshot = "snapshot"
	MessageUpdate   = "update"
)

// Message is the envelope written to viewer sockets.
type Message struct {
	Type    string             `json:"type"`
	Records []telemetry.Record `json:"records"`
}

// Hub tracks viewer connections and fans status updates out to them.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	logger      *zap.Logger
}

// NewHub builds connection hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{connections: make(map[string]*Connection), logger: logger}
}

// Add registers new connection.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID()] = conn
}

// Remove removes connection.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, id)
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Broadcast sends rec to every viewer following its device.
func (h *Hub) Broadcast(rec telemetry.Record) {
	data, err := json.Marshal(Message{Type: MessageUpdate, Records: []telemetry.Record{rec}})
	if err != nil {
		h.logger.Error("failed to encode live update", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.connections {
		if conn.Follows(rec.DeviceID) {
			conn.Send(data)
		}
	}
}

// Watcher streams status changes.
type Watcher interface {
	Watch(ctx context.Context, ready chan<- error, fn func(telemetry.Record)) error
}

// Feed relays watcher updates into the hub until ctx is done.
func (h *Hub) Feed(ctx context.Context, watcher Watcher) error {
	h.logger.Info("live feed started")
	err := watcher.Watch(ctx, nil, h.Broadcast)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
