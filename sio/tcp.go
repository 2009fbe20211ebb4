/* Copyright 2018 Comcast Cable Communications Management, LLC
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
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
)

// TCP is a Coupling that accepts TCP connections.
//
// Each connection carries either JSON lines (see
// Transmitter.ServeLines) or, when Framed, length-prefixed frames
// (see ReadFrame) in the Transmitter's Codec.  Connections are
// handled concurrently; requests on one connection are handled in
// order.
type TCP struct {
	Addr   string
	Framed bool

	// Render is the initial render mode for line connections.
	Render string

	Transmitter *Transmitter

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup

	stopper
}

func NewTCP(t *Transmitter, addr string, framed bool) *TCP {
	return &TCP{
		Addr:        addr,
		Framed:      framed,
		Render:      "json",
		Transmitter: t,
	}
}

func (c *TCP) Name() string {
	return "tcp"
}

func (c *TCP) logger() *zap.Logger {
	return orDefault(c.Transmitter.Logger).With(zap.String("coupling", "tcp"))
}

// Start listens on Addr.
func (c *TCP) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.listener = l
	c.conns = make(map[net.Conn]struct{})
	c.mu.Unlock()
	c.logger().Info("listening", zap.Stringer("addr", l.Addr()))
	return nil
}

// ListenAddr returns the listener's address (or nil before Start).
func (c *TCP) ListenAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

// Serve accepts connections until Stop or ctx is done.  Serve waits
// for open connections to close before returning.
func (c *TCP) Serve(ctx context.Context) error {
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()
	if l == nil {
		return NotStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.watch(ctx, func() {
		c.Stop(context.Background())
	})

	var err error
	for {
		var conn net.Conn
		if conn, err = l.Accept(); err != nil {
			if c.stopped() {
				err = nil
			}
			break
		}
		if !c.track(conn) {
			conn.Close()
			break
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.handle(ctx, conn)
		}()
	}

	c.Stop(ctx)
	c.wg.Wait()
	return err
}

func (c *TCP) track(conn net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped() {
		return false
	}
	c.conns[conn] = struct{}{}
	return true
}

func (c *TCP) handle(ctx context.Context, conn net.Conn) {
	log := c.logger().With(zap.Stringer("remote", conn.RemoteAddr()))
	log.Debug("connection opened")

	defer func() {
		c.mu.Lock()
		delete(c.conns, conn)
		c.mu.Unlock()
		conn.Close()
		log.Debug("connection closed")
	}()

	var err error
	if c.Framed {
		err = c.frames(ctx, conn)
	} else {
		err = c.Transmitter.ServeLines(ctx, conn, conn, c.Render)
	}
	if err != nil && !c.stopped() {
		log.Warn("connection failed", zap.Error(err))
	}
}

func (c *TCP) frames(ctx context.Context, conn net.Conn) error {
	for {
		bs, err := ReadFrame(conn)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if bs, err = c.Transmitter.Transmit(ctx, bs); err != nil {
			return err
		}
		if err = WriteFrame(conn, bs); err != nil {
			return err
		}
	}
}

// Stop closes the listener and all open connections.
func (c *TCP) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop()
	var err error
	if c.listener != nil {
		err = c.listener.Close()
		c.listener = nil
	}
	for conn := range c.conns {
		conn.Close()
	}
	return err
}
