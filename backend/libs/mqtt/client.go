package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/packets"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultKeepAlive      = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// Options describes a broker connection.
type Options struct {
	BrokerURL      string        `yaml:"brokerUrl"`
	ClientID       string        `yaml:"clientId"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	KeepAlive      time.Duration `yaml:"keepAlive"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	CAFile         string        `yaml:"caFile"`
	CertFile       string        `yaml:"certFile"`
	KeyFile        string        `yaml:"keyFile"`
}

// Handler receives messages of a subscription.
type Handler func(ctx context.Context, topic string, payload []byte)

type route struct {
	filter  string
	handler Handler
}

// Client is a thin paho wrapper that dispatches deliveries by topic filter.
type Client struct {
	paho   *paho.Client
	id     string
	logger *zap.Logger

	mu     sync.RWMutex
	routes []route
}

// ClientID returns a random client id with the given prefix.
func ClientID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// Dial opens the network connection and performs the MQTT CONNECT.
func Dial(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if opts.ClientID == "" {
		opts.ClientID = ClientID("iot")
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = defaultKeepAlive
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	conn, err := dialBroker(dialCtx, opts)
	if err != nil {
		return nil, err
	}

	c := &Client{id: opts.ClientID, logger: logger.With(zap.String("client_id", opts.ClientID))}
	c.paho = paho.NewClient(paho.ClientConfig{
		ClientID: opts.ClientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				c.dispatch(pr.Packet.Topic, pr.Packet.Payload)
				return true, nil
			},
		},
		OnClientError: func(err error) {
			c.logger.Warn("mqtt client error", zap.Error(err))
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			c.logger.Warn("mqtt server disconnect", zap.Uint8("reason_code", d.ReasonCode))
		},
	})

	connect := &paho.Connect{
		ClientID:   opts.ClientID,
		KeepAlive:  uint16(opts.KeepAlive / time.Second),
		CleanStart: true,
	}
	if opts.Username != "" {
		connect.Username = opts.Username
		connect.UsernameFlag = true
	}
	if opts.Password != "" {
		connect.Password = []byte(opts.Password)
		connect.PasswordFlag = true
	}

	ack, err := c.paho.Connect(dialCtx, connect)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}
	if ack.ReasonCode != 0 {
		_ = conn.Close()
		return nil, fmt.Errorf("mqtt: connect refused: reason code %d", ack.ReasonCode)
	}

	c.logger.Info("connected to broker", zap.String("broker", opts.BrokerURL))
	return c, nil
}

func dialBroker(ctx context.Context, opts Options) (net.Conn, error) {
	u, err := url.Parse(opts.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("mqtt: broker url: %w", err)
	}
	if u.Host == "" {
		return nil, errors.New("mqtt: broker url has no host")
	}

	switch strings.ToLower(u.Scheme) {
	case "tcp", "mqtt":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, fmt.Errorf("mqtt: dial %s: %w", u.Host, err)
		}
		return packets.NewThreadSafeConn(conn), nil
	case "ssl", "tls", "mqtts":
		cfg, err := tlsConfig(opts, u.Hostname())
		if err != nil {
			return nil, err
		}
		d := tls.Dialer{Config: cfg}
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, fmt.Errorf("mqtt: tls dial %s: %w", u.Host, err)
		}
		return packets.NewThreadSafeConn(conn), nil
	default:
		return nil, fmt.Errorf("mqtt: unsupported scheme %q", u.Scheme)
	}
}

func tlsConfig(opts Options, serverName string) (*tls.Config, error) {
	cfg := &tls.Config{ServerName: serverName, MinVersion: tls.VersionTLS12}
	if opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("mqtt: read ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("mqtt: ca file has no certificates")
		}
		cfg.RootCAs = pool
	}
	if opts.CertFile != "" || opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("mqtt: load client cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// ID returns the MQTT client id.
func (c *Client) ID() string {
	return c.id
}

// Publish sends payload to topic.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	if _, err := c.paho.Publish(ctx, &paho.Publish{Topic: topic, QoS: qos, Payload: payload}); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for filter and subscribes on the broker.
func (c *Client) Subscribe(ctx context.Context, filter string, qos byte, handler Handler) error {
	c.mu.Lock()
	c.routes = append(c.routes, route{filter: filter, handler: handler})
	c.mu.Unlock()

	ack, err := c.paho.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: qos}},
	})
	if err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", filter, err)
	}
	if len(ack.Reasons) > 0 && ack.Reasons[0] >= 0x80 {
		return fmt.Errorf("mqtt: subscribe %s refused: reason code %d", filter, ack.Reasons[0])
	}
	c.logger.Info("subscribed", zap.String("filter", filter))
	return nil
}

func (c *Client) dispatch(topic string, payload []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matched := false
	for _, r := range c.routes {
		if TopicMatches(r.filter, topic) {
			matched = true
			r.handler(context.Background(), topic, payload)
		}
	}
	if !matched {
		c.logger.Debug("no route for message", zap.String("topic", topic))
	}
}

// Close sends DISCONNECT.
func (c *Client) Close() error {
	return c.paho.Disconnect(&paho.Disconnect{ReasonCode: 0})
}

// TopicMatches reports whether topic matches an MQTT filter with + and #
// wildcards, including $share/<group>/ prefixed filters.
func TopicMatches(filter, topic string) bool {
	if rest, ok := strings.CutPrefix(filter, "$share/"); ok {
		idx := strings.Index(rest, "/")
		if idx == -1 {
			return false
		}
		filter = rest[idx+1:]
	}

	filters := strings.Split(filter, "/")
	names := strings.Split(topic, "/")
	for i, f := range filters {
		if f == "#" {
			return i == len(filters)-1
		}
		if f == "+" {
			if i >= len(names) {
				return false
			}
			continue
		}
		if i >= len(names) || f != names[i] {
			return false
		}
	}
	return len(filters) == len(names)
}
