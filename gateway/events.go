package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const pingInterval = 30 * time.Second

// SubscribeEvents opens a websocket stream of contract events matching the
// given filter (an event type prefix such as "<package>::suis3") and
// invokes onEvent for each one until ctx is cancelled or the connection
// drops. The subscription is read-only; it never mutates ledger state.
func (c *Client) SubscribeEvents(ctx context.Context, filter string, onEvent func(Event)) error {
	if filter == "" {
		return fmt.Errorf("filter cannot be empty")
	}

	wsScheme := "ws"
	if c.baseURL.Scheme == "https" {
		wsScheme = "wss"
	}
	wsURL := url.URL{
		Scheme: wsScheme,
		Host:   c.baseURL.Host,
		Path:   "/ledger/api/v1/events/subscribe",
	}
	query := wsURL.Query()
	query.Set("filter", filter)
	query.Set("token", c.apiKey)
	wsURL.RawQuery = query.Encode()

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", c.apiKey)
	}

	var tlsConfig *tls.Config
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		tlsConfig = transport.TLSClientConfig
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
		TLSClientConfig:  tlsConfig,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil {
			c.logger.Error("Websocket dial failed", "url", wsURL.String(), "status", resp.Status, "error", err)
			return fmt.Errorf("failed to dial websocket %s (status: %s): %w", wsURL.String(), resp.Status, err)
		}
		c.logger.Error("Websocket dial failed", "url", wsURL.String(), "error", err)
		return fmt.Errorf("failed to dial websocket %s: %w", wsURL.String(), err)
	}
	defer conn.Close()

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.logger.Error("Error sending ping", "error", err)
					return
				}
			case <-ctx.Done():
				err := conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				if err != nil {
					c.logger.Debug("Error sending close message", "error", err)
				}
				conn.Close()
				return
			}
		}
	}()

	c.logger.Info("Subscribed to contract events", "filter", filter)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("Error reading from websocket", "error", err)
				return err
			}
			c.logger.Info("Websocket closed", "error", err)
			return nil
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		var event Event
		if err := json.Unmarshal(message, &event); err != nil {
			c.logger.Error("Failed to unmarshal event", "error", err, "message", string(message))
			continue
		}
		if onEvent != nil {
			onEvent(event)
		}
	}
}
