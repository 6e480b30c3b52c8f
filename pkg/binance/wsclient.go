package binance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSClient handles the WebSocket connection to the Binance market streams and message routing.
type WSClient struct {
	url            string
	streams        []string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	handler func([]byte)
	logger  *zap.Logger
}

// NewWSClient creates a WebSocket client that subscribes to the given streams once connected.
func NewWSClient(url string, streams []string, logger *zap.Logger) *WSClient {
	return &WSClient{
		url:            url,
		streams:        streams,
		reconnectDelay: 3 * time.Second,
		dialer:         websocket.DefaultDialer,
		logger:         logger,
	}
}

// SetMessageHandler sets the function to handle incoming messages.
func (c *WSClient) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// Connect dials the server and subscribes. It does not start the listener.
func (c *WSClient) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		c.logger.Error("failed to connect to WebSocket", zap.String("url", c.url), zap.Error(err))
		return err
	}
	c.setConn(conn)
	c.logger.Info("WebSocket connected", zap.String("url", c.url), zap.Strings("streams", c.streams))
	return nil
}

// Listen reads messages until ctx is done, reconnecting after read errors.
func (c *WSClient) Listen(ctx context.Context) {
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	for {
		conn := c.currentConn()
		if conn == nil {
			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("WebSocket read error", zap.Error(err))
			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		if c.handler != nil {
			c.handler(msg)
		}
	}
}

// Close closes the current connection, if any.
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// reconnect retries until a connection is made or ctx is done.
func (c *WSClient) reconnect(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.reconnectDelay):
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("retrying reconnect", zap.Error(err))
			continue
		}
		c.setConn(conn)
		c.logger.Info("reconnected successfully")
		return true
	}
}

func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, err
	}
	if len(c.streams) == 0 {
		return conn, nil
	}

	subMsg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": c.streams,
		"id":     time.Now().UnixMilli(),
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("websocket subscribe failed: %w", err)
	}
	return conn, nil
}

func (c *WSClient) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
}

func (c *WSClient) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}
