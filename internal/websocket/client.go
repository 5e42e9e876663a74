// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

// Package websocket serves the live packet stream to browser dashboards
// over gorilla/websocket connections fed by the broadcast hub.
package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/intelliguard/intelliguard/internal/broadcast"
	"github.com/intelliguard/intelliguard/internal/logging"
	"github.com/intelliguard/intelliguard/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Message types sent to dashboard clients.
const (
	MessageTypeTelemetry = "telemetry"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
)

// Message is the envelope for every frame sent to a client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Upgrader upgrades HTTP requests to websocket connections. Origin checks
// are delegated to the router's CORS middleware.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Client bridges one websocket connection to a hub subscription. The read
// pump only consumes client-side pings; all data flows outward.
type Client struct {
	conn *websocket.Conn
	sub  *broadcast.Subscription
	pong chan Message
}

// NewClient wraps an upgraded connection and its hub subscription.
func NewClient(conn *websocket.Conn, sub *broadcast.Subscription) *Client {
	return &Client{
		conn: conn,
		sub:  sub,
		pong: make(chan Message, 4),
	}
}

// Start runs the pumps. It returns when the client disconnects or the hub
// shuts the subscription down.
func (c *Client) Start() {
	go c.writePump()
	c.readPump()
}

// readPump consumes inbound frames until the connection drops. Closing the
// subscription here unblocks the write pump as well.
func (c *Client) readPump() {
	defer func() {
		c.sub.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set websocket read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		if msg.Type == MessageTypePing {
			select {
			case c.pong <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

// writePump forwards hub packets and keepalive pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case pkt, ok := <-c.sub.C():
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set websocket write deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(telemetryMessage(pkt)); err != nil {
				return
			}

		case msg := <-c.pong:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func telemetryMessage(pkt models.ProcessedPacket) Message {
	return Message{Type: MessageTypeTelemetry, Data: pkt}
}
