/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is one live websocket connection (Session Manager, component F).
type Client struct {
	conn   *websocket.Conn
	send   chan any
	connID string
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan any, 16),
		connID: uuid.NewString(),
	}
}

// maxFrameSize is the per-message size cap named in §5; oversize frames
// cause gorilla/websocket to fail the read and close the connection.
const maxFrameSize = 100 * 1024

// serve runs a connection end-to-end: it starts the write pump, then blocks
// in the read pump until the socket closes, at which point it tears down
// the presence binding and notifies the remaining roster.
func (e *Engine) serve(cfg *Config, client *Client) {
	logf(cfg, "SESSION: %s connected", client.connID)

	go client.writePump()
	e.readPump(cfg, client)

	_ = client.conn.Close()
	logf(cfg, "SESSION: %s disconnected", client.connID)

	if userID, ok := e.cache.FindBySocket(client.conn); ok {
		if e.cache.RemoveIfCurrent(userID, client) {
			e.broadcastOnlineUsers()
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (e *Engine) readPump(cfg *Config, client *Client) {
	client.conn.SetReadLimit(maxFrameSize)

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logf(cfg, "ROUTER: %s sent malformed frame: %v", client.connID, err)
			continue
		}

		e.route(cfg, client, msg)
	}
}

// handleSetOnline binds or unbinds a socket under a user id (§4.6). The
// previous binding for that user id, if any, is evicted and told it has
// been replaced (Invariant 6, §3; SPEC_FULL.md §11).
func (e *Engine) handleSetOnline(cfg *Config, client *Client, msg InboundMessage) error {
	if msg.UserID == "" {
		return nil
	}

	online := msg.Online == nil || *msg.Online

	if !online {
		if e.cache.RemoveIfCurrent(msg.UserID, client) {
			e.broadcastOnlineUsers()
		}
		return nil
	}

	user, err := e.store.FindUser(context.Background(), msg.UserID)
	if err != nil {
		return err
	}

	evicted, hadPrior := e.cache.SetOnline(msg.UserID, user.Name, client)
	if hadPrior && evicted != client {
		go func(c *Client) {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(4000, "replaced by newer connection"),
				time.Now().Add(time.Second))
			_ = c.conn.Close()
		}(evicted)
	}

	logf(cfg, "SESSION: user %q bound to connection %s", msg.UserID, client.connID)

	e.broadcastOnlineUsers()
	return nil
}

func (e *Engine) broadcastOnlineUsers() {
	e.broadcastAll(OnlineUsersMessage{Type: "onlineUsers", Users: e.cache.OnlineRoster()})
}
