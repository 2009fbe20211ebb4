/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket is a Coupling that upgrades HTTP requests at Path to
// WebSocket connections.
//
// Each message is a Request in the Transmitter's Codec, and each gets
// one Response message.  JSON goes in text messages; CBOR goes in
// binary messages.
type WebSocket struct {
	Addr string
	Path string

	Transmitter *Transmitter

	Upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	wg    sync.WaitGroup

	server
}

func NewWebSocket(t *Transmitter, addr, path string) *WebSocket {
	return &WebSocket{
		Addr:        addr,
		Path:        path,
		Transmitter: t,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (c *WebSocket) Name() string {
	return "websocket"
}

func (c *WebSocket) logger() *zap.Logger {
	return orDefault(c.Transmitter.Logger).With(zap.String("coupling", "websocket"))
}

// messageType is the WebSocket message type for a Codec.
func messageType(codec Codec) int {
	if codec.Name() == "json" {
		return websocket.TextMessage
	}
	return websocket.BinaryMessage
}

func (c *WebSocket) track(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped() {
		return false
	}
	if c.conns == nil {
		c.conns = make(map[*websocket.Conn]struct{})
	}
	c.conns[conn] = struct{}{}
	c.wg.Add(1)
	return true
}

func (c *WebSocket) untrack(conn *websocket.Conn) {
	c.mu.Lock()
	delete(c.conns, conn)
	c.mu.Unlock()
	c.wg.Done()
}

func (c *WebSocket) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := c.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		c.logger().Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if !c.track(conn) {
		return
	}
	defer c.untrack(conn)

	var (
		ctx   = r.Context()
		t     = c.Transmitter
		codec = t.codec()
		log   = c.logger().With(zap.String("remote", conn.RemoteAddr().String()))
	)
	conn.SetReadLimit(int64(MaxFrame))
	log.Debug("connection opened")

	for {
		_, bs, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.stopped() {
				log.Warn("read failed", zap.Error(err))
			}
			break
		}
		if bs, err = t.TransmitWith(ctx, codec, bs); err != nil {
			log.Error("encoding response", zap.Error(err))
			break
		}
		if err = conn.WriteMessage(messageType(codec), bs); err != nil {
			log.Warn("write failed", zap.Error(err))
			break
		}
	}
	log.Debug("connection closed")
}

// Start listens on Addr.
func (c *WebSocket) Start(ctx context.Context) error {
	path := c.Path
	if path == "" {
		path = "/ws"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, c.handle)
	if err := c.start(c.Addr, mux); err != nil {
		return err
	}
	c.logger().Info("listening",
		zap.Stringer("addr", c.addr()),
		zap.String("path", path))
	return nil
}

// ListenAddr returns the listener's address (or nil before Start).
func (c *WebSocket) ListenAddr() net.Addr {
	return c.addr()
}

// Serve returns after every connection has closed.
func (c *WebSocket) Serve(ctx context.Context) error {
	err := c.serve(ctx)
	c.closeAll()
	c.wg.Wait()
	return err
}

func (c *WebSocket) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for conn := range c.conns {
		conn.Close()
	}
}

// Stop shuts down the server and closes all connections.
func (c *WebSocket) Stop(ctx context.Context) error {
	err := c.shutdown(ctx)
	c.closeAll()
	return err
}

// WSClient sends Requests to a WebSocket coupling.
//
// Requests are sent one at a time.
type WSClient struct {
	Codec Codec

	mu   sync.Mutex
	conn *websocket.Conn
}

// DialWS connects to a WebSocket coupling at url.
func DialWS(ctx context.Context, url string, codec Codec) (*WSClient, error) {
	if codec == nil {
		codec = JSONCodec{}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("can't dial %s: %w", url, err)
	}
	return &WSClient{
		Codec: codec,
		conn:  conn,
	}, nil
}

// Do sends one Request and waits for its Response.
func (c *WSClient) Do(ctx context.Context, req *Request) (*Response, error) {
	bs, err := c.Codec.Marshal(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, _ := ctx.Deadline()
	c.conn.SetWriteDeadline(deadline)
	c.conn.SetReadDeadline(deadline)

	if err = c.conn.WriteMessage(messageType(c.Codec), bs); err != nil {
		return nil, err
	}
	if _, bs, err = c.conn.ReadMessage(); err != nil {
		return nil, err
	}

	var r Response
	if err = c.Codec.Unmarshal(bs, &r); err != nil {
		return nil, fmt.Errorf("can't decode response: %w", err)
	}
	return &r, nil
}

// Close sends a close message and closes the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}
