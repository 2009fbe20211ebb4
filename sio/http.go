/* Copyright 2019 Comcast Cable Communications Management, LLC
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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Comcast/xcall/tools"
	"github.com/Comcast/xcall/util"

	"go.uber.org/zap"
)

// server is the listener and http.Server shared by the HTTP and
// WebSocket couplings.
type server struct {
	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server

	stopper
}

func (s *server) start(addr string, h http.Handler) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = l
	s.srv = &http.Server{
		Handler:        h,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	s.mu.Unlock()
	return nil
}

func (s *server) addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *server) serve(ctx context.Context) error {
	s.mu.Lock()
	l, srv := s.listener, s.srv
	s.mu.Unlock()
	if l == nil {
		return NotStarted
	}

	s.watch(ctx, func() {
		s.shutdown(context.Background())
	})

	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	// Serve can return before Shutdown is done with the
	// connections.
	s.shutdown(ctx)
	return err
}

func (s *server) shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	s.stop()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// HTTP is a Coupling for an HTTP service:
//
//	POST /api    a Request in the body; the Response is the reply
//	GET  /kinds  an HTML reference for the Command kinds
//	GET  /ping   "pong"
//
// The body's Content-Type selects the Codec (see CodecFor).
type HTTP struct {
	Addr string

	Transmitter *Transmitter

	server
}

func NewHTTP(t *Transmitter, addr string) *HTTP {
	return &HTTP{
		Addr:        addr,
		Transmitter: t,
	}
}

func (c *HTTP) Name() string {
	return "http"
}

func (c *HTTP) logger() *zap.Logger {
	return orDefault(c.Transmitter.Logger).With(zap.String("coupling", "http"))
}

// Handler returns the coupling's http.Handler.
func (c *HTTP) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "\"pong\"\n")
	})

	mux.HandleFunc("GET /kinds", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tools.RenderKindsHTML(w); err != nil {
			c.logger().Error("kinds", zap.Error(err))
		}
	})

	mux.HandleFunc("POST /api", func(w http.ResponseWriter, r *http.Request) {
		codec := CodecFor(r.Header.Get("Content-Type"))

		bs, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(MaxFrame)))
		if err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}

		if bs, err = c.Transmitter.TransmitWith(r.Context(), codec, bs); err != nil {
			c.logger().Error("encoding response", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", codec.ContentType())
		w.Write(bs)
	})

	return mux
}

// Start listens on Addr.
func (c *HTTP) Start(ctx context.Context) error {
	if err := c.start(c.Addr, c.Handler()); err != nil {
		return err
	}
	c.logger().Info("listening", zap.Stringer("addr", c.addr()))
	return nil
}

// ListenAddr returns the listener's address (or nil before Start).
func (c *HTTP) ListenAddr() net.Addr {
	return c.addr()
}

func (c *HTTP) Serve(ctx context.Context) error {
	return c.serve(ctx)
}

// Stop shuts down the server gracefully.
func (c *HTTP) Stop(ctx context.Context) error {
	return c.shutdown(ctx)
}

// HTTPClient sends Requests to an HTTP coupling.
type HTTPClient struct {
	// URL is the service's base URL (without "/api").
	URL string

	Codec  Codec
	Client *http.Client
}

// NewHTTPClient makes an HTTPClient whose http.Client has a cookie
// jar.
func NewHTTPClient(url string, codec Codec, timeout time.Duration) (*HTTPClient, error) {
	client, err := util.NewHTTPClient(timeout)
	if err != nil {
		return nil, err
	}
	if codec == nil {
		codec = JSONCodec{}
	}
	return &HTTPClient{
		URL:    strings.TrimSuffix(url, "/"),
		Codec:  codec,
		Client: client,
	}, nil
}

// Do sends one Request and returns its Response.
func (c *HTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	bs, err := c.Codec.Marshal(req)
	if err != nil {
		return nil, err
	}

	hr, err := http.NewRequestWithContext(ctx, "POST", c.URL+"/api", bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	hr.Header.Set("Content-Type", c.Codec.ContentType())

	resp, err := c.Client.Do(hr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if bs, err = io.ReadAll(resp.Body); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(bs))
	}

	var r Response
	if err = c.Codec.Unmarshal(bs, &r); err != nil {
		return nil, fmt.Errorf("can't decode response: %w", err)
	}
	return &r, nil
}

// Close closes idle connections.
func (c *HTTPClient) Close() error {
	c.Client.CloseIdleConnections()
	return nil
}
