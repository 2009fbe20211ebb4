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
	"io"
	"os"
)

// Stdio is a fairly simple Coupling that uses stdin for input and
// stdout for output.  See Transmitter.ServeLines for the line
// protocol.
type Stdio struct {
	// In is coupled to request input.
	In io.Reader

	// Out is coupled to response output.
	Out io.Writer

	// Render is the initial render mode.
	Render string

	Transmitter *Transmitter

	stopper
}

// NewStdio creates a new Stdio.
//
// In and Out are initialized with os.Stdin and os.Stdout
// respectively.
func NewStdio(t *Transmitter, render string) *Stdio {
	return &Stdio{
		In:          os.Stdin,
		Out:         os.Stdout,
		Render:      render,
		Transmitter: t,
	}
}

func (s *Stdio) Name() string {
	return "stdio"
}

// Start does nothing.
func (s *Stdio) Start(ctx context.Context) error {
	return nil
}

// Serve processes input until EOF, "quit", Stop, or ctx is done.
//
// A read that's blocked on In isn't interrupted.  In that case Serve
// returns anyway, and the reader goroutine exits when its read
// completes.
func (s *Stdio) Serve(ctx context.Context) error {
	if s.stopped() {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	orDefault(s.Transmitter.Logger).Info("stdio serving")

	errs := make(chan error, 1)
	go func() {
		errs <- s.Transmitter.ServeLines(ctx, s.In, s.Out, s.Render)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return nil
	case <-s.done():
		return nil
	}
}

// Stop cancels the requests in progress and ends Serve.
func (s *Stdio) Stop(ctx context.Context) error {
	s.stop()
	return nil
}
