package platform

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"hookfleet/pkg/logger"
)

const (
	opDispatch  = 0
	opHeartbeat = 1
	opIdentify  = 2
	opHello     = 10

	eventWebhooksUpdate = "WEBHOOKS_UPDATE"

	reconnectBaseDelay = 2 * time.Second
	reconnectMaxDelay  = time.Minute
)

type gatewayFrame struct {
	Op   int             `json:"op"`
	Type string          `json:"t,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"` // milliseconds
}

// Gateway maintains a websocket subscription to the platform event stream
// and forwards webhook-set change events to a handler.
type Gateway struct {
	url     string
	token   string
	handler EventHandler
}

// NewGateway creates a gateway subscription. The handler receives every
// WEBHOOKS_UPDATE dispatch; delivery is at-least-once across reconnects.
func NewGateway(url, token string, handler EventHandler) *Gateway {
	return &Gateway{
		url:     url,
		token:   token,
		handler: handler,
	}
}

// Run connects and reads events until the context is cancelled,
// reconnecting with backoff on any failure.
func (g *Gateway) Run(ctx context.Context) {
	delay := reconnectBaseDelay
	for {
		if ctx.Err() != nil {
			return
		}

		err := g.session(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.WarnCtx(ctx, "gateway session ended: %v, reconnecting in %v", err, delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

// session runs one connect/identify/read loop
func (g *Gateway) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// close the socket when the context is cancelled so ReadJSON unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// hello carries the heartbeat interval
	var hello gatewayFrame
	if err := conn.ReadJSON(&hello); err != nil {
		return err
	}
	var helloPayload helloData
	heartbeat := 30 * time.Second
	if hello.Op == opHello && json.Unmarshal(hello.Data, &helloPayload) == nil && helloPayload.HeartbeatInterval > 0 {
		heartbeat = time.Duration(helloPayload.HeartbeatInterval) * time.Millisecond
	}

	identify, _ := json.Marshal(map[string]string{"token": g.token})
	if err := conn.WriteJSON(gatewayFrame{Op: opIdentify, Data: identify}); err != nil {
		return err
	}

	stopBeat := make(chan struct{})
	defer close(stopBeat)
	go func() {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-stopBeat:
				return
			case <-ticker.C:
				if err := conn.WriteJSON(gatewayFrame{Op: opHeartbeat}); err != nil {
					return
				}
			}
		}
	}()

	logger.InfoCtx(ctx, "gateway connected, heartbeat interval %v", heartbeat)

	for {
		var frame gatewayFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		if frame.Op != opDispatch || frame.Type != eventWebhooksUpdate {
			continue
		}

		var event WebhooksUpdate
		if err := json.Unmarshal(frame.Data, &event); err != nil {
			logger.WarnCtx(ctx, "failed to decode webhooks update event: %v", err)
			continue
		}
		g.handler.OnWebhooksUpdate(event)
	}
}
