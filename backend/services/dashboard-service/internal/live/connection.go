package live

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readLimit = 4 * 1024
	pongWait  = 60 * time.Second
)

// Connection represents one dashboard viewer's WebSocket.
type Connection struct {
	id           string
	deviceID     string
	ws           *websocket.Conn
	send         chan []byte
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	onClose      func(id string)
}

// NewConnection builds connection wrapper. An empty deviceID follows every device.
func NewConnection(id, deviceID string, ws *websocket.Conn, writeTimeout, pingInterval time.Duration, logger *zap.Logger, onClose func(string)) *Connection {
	return &Connection{
		id:           id,
		deviceID:     deviceID,
		ws:           ws,
		send:         make(chan []byte, 32),
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		onClose:      onClose,
	}
}

// ID returns the viewer identifier.
func (c *Connection) ID() string {
	return c.id
}

// Follows reports whether updates of deviceID go to this viewer.
func (c *Connection) Follows(deviceID string) bool {
	return c.deviceID == "" || c.deviceID == deviceID
}

// Start launches read/write pumps and blocks until the viewer disconnects.
func (c *Connection) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

// Viewers never send anything meaningful; reading only detects close frames.
func (c *Connection) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(readLimit)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.logger.Debug("viewer read closed", zap.String("viewer_id", c.id), zap.Error(err))
			return
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// Send enqueues a message, dropping it when the viewer is too slow.
func (c *Connection) Send(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("dropping live update, buffer full", zap.String("viewer_id", c.id))
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

// onClose runs first so the hub stops broadcasting before send is closed.
func (c *Connection) cleanup() {
	if c.onClose != nil {
		c.onClose(c.id)
	}
	close(c.send)
	_ = c.ws.Close()
}
