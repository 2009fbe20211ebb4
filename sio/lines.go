package sio

import (
	"bufio"
	"context"
	"io"
	"strings"

	"go.uber.org/zap"
)

// ServeLines reads one JSON Request per line from in and writes one
// rendered Response to out for each.
//
// Blank lines and lines that start with '#' are ignored.  A line that
// is just a render mode ("json", "prettyjson", "yaml") switches the
// rendering.  The line "quit" ends the input.
//
// Requests are handled in order.  ServeLines returns nil when the
// input ends or ctx is done.
func (t *Transmitter) ServeLines(ctx context.Context, in io.Reader, out io.Writer, render string) error {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), MaxFrame)

	for s.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if line == "quit" {
			return nil
		}
		if isRender(line) {
			render = line
			continue
		}

		req, r := t.Decode(JSONCodec{}, []byte(line))
		if req != nil {
			r = t.Do(ctx, req)
		}

		bs, err := Render(render, r)
		if err != nil {
			orDefault(t.Logger).Warn("render failed",
				zap.String("render", render),
				zap.Error(err))
			if bs, err = Render("json", r); err != nil {
				return err
			}
		}

		if _, err = out.Write(bs); err != nil {
			return err
		}
	}

	return s.Err()
}
