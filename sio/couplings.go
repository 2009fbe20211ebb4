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
	"context"
	"errors"
	"sync"

	"github.com/Comcast/xcall/util"

	"go.uber.org/zap"
)

// Coupling connects a Transmitter to some source of requests.
//
// For example, an implementation could couple an Interpreter to an
// MQTT broker.
type Coupling interface {
	// Name is used in logs.
	Name() string

	// Start acquires resources (listeners, broker sessions).  A
	// Coupling that fails to Start needs no Stop.
	Start(context.Context) error

	// Serve handles requests until the context is done, the input
	// ends, or Stop is called.  Serve returns nil in all of those
	// cases.
	Serve(context.Context) error

	// Stop releases what Start acquired and causes Serve to
	// return.  Stop can be called more than once.
	Stop(context.Context) error
}

// NotStarted is returned by Serve when Start didn't succeed.
var NotStarted = errors.New("coupling not started")

// stopper is a close-once channel.  The zero value is ready to use.
type stopper struct {
	mu   sync.Mutex
	once sync.Once
	c    chan struct{}
}

func (s *stopper) done() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		s.c = make(chan struct{})
	}
	return s.c
}

func (s *stopper) stop() {
	s.once.Do(func() {
		close(s.done())
	})
}

func (s *stopper) stopped() bool {
	select {
	case <-s.done():
		return true
	default:
		return false
	}
}

// watch calls f when ctx is done, unless the stopper stops first.
func (s *stopper) watch(ctx context.Context, f func()) {
	go func() {
		select {
		case <-ctx.Done():
			f()
		case <-s.done():
		}
	}()
}

func orDefault(l *zap.Logger) *zap.Logger {
	if l == nil {
		return util.Logger()
	}
	return l
}
