// Package live maintains the persistent push channel delivering
// server-originated chat events.
package live

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/deskfront/messaging-core/internal/model"
	"github.com/deskfront/messaging-core/internal/store"
	"github.com/deskfront/messaging-core/pkg/logger"
	"github.com/deskfront/messaging-core/pkg/metrics"
)

// Config holds push channel connection configuration.
type Config struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

// Channel owns at most one push connection per session. Inbound events are
// routed through the same store commands the orchestrator uses, so the
// store never has two divergent mutation paths.
type Channel struct {
	cfg    Config
	store  *store.Store
	userID string
	logger *logger.Logger

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
}

// NewChannel creates a push channel bound to a session's store.
func NewChannel(cfg Config, st *store.Store, userID string, log *logger.Logger) *Channel {
	return &Channel{
		cfg:    cfg,
		store:  st,
		userID: userID,
		logger: log,
	}
}

// subject returns the per-user newMessage subject.
func (c *Channel) subject() string {
	return fmt.Sprintf("chat.%s.newMessage", c.userID)
}

// Connect establishes the push connection and subscribes to the session's
// newMessage subject. Idempotent: a second call while a connection is
// active is a no-op.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			metrics.LiveChannelConnected.Set(0)
			c.logger.Warn("live channel disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			metrics.LiveChannelConnected.Set(1)
			c.logger.Info("live channel reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			c.logger.Error("live channel error", zap.Error(err))
		}),
	}

	if c.cfg.CAFile != "" && c.cfg.CertFile != "" && c.cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(c.cfg.CAFile, c.cfg.CertFile, c.cfg.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if c.cfg.Token != "" {
		opts = append(opts, nats.Token(c.cfg.Token))
	}

	conn, err := nats.Connect(c.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect live channel: %w", err)
	}

	sub, err := conn.Subscribe(c.subject(), c.handleNewMessage)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", c.subject(), err)
	}

	c.conn = conn
	c.sub = sub
	metrics.LiveChannelConnected.Set(1)
	c.logger.Info("live channel connected", zap.String("subject", c.subject()))
	return nil
}

// handleNewMessage merges a pushed message into the store. A payload for a
// thread not loaded locally upserts the carried thread when present;
// otherwise the append is dropped by the store and counted.
func (c *Channel) handleNewMessage(m *nats.Msg) {
	var event model.NewMessageEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		metrics.LiveEventsTotal.WithLabelValues("new_message", "invalid").Inc()
		c.logger.Warn("discarding malformed push event", zap.Error(err))
		return
	}

	if event.Thread != nil && c.store.ThreadByID(event.ThreadID) == nil {
		if err := c.store.Apply(store.UpsertThread{Thread: *event.Thread}); err != nil {
			metrics.LiveEventsTotal.WithLabelValues("new_message", "invalid").Inc()
			c.logger.Warn("discarding push event with invalid thread",
				zap.String("thread_id", event.ThreadID), zap.Error(err))
			return
		}
	}

	c.store.Apply(store.AppendMessage{ThreadID: event.ThreadID, Message: event.Message})
	metrics.LiveEventsTotal.WithLabelValues("new_message", "ok").Inc()
}

// Disconnect tears the connection down. The subscription and connection
// are released before the references are cleared.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}

	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			c.logger.Warn("failed to unsubscribe live channel", zap.Error(err))
		}
	}
	c.conn.Close()

	c.sub = nil
	c.conn = nil
	metrics.LiveChannelConnected.Set(0)
	c.logger.Info("live channel closed")
}

// Connected reports whether the push connection is up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.conn.IsConnected()
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
