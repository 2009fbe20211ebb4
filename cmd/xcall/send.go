package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Comcast/xcall/sio"

	"github.com/spf13/cobra"
)

var sendFlags struct {
	codec   string
	render  string
	timeout time.Duration
}

var sendCmd = &cobra.Command{
	Use:   "send URL [REQUEST...]",
	Short: "Send requests to a WebSocket or HTTP coupling",
	Long: `Sends each JSON request (from the arguments or, if there are none, one
per line from stdin) and prints each response.  The URL's scheme picks the
client: ws:// or wss:// for WebSockets, http:// or https:// for HTTP.

Example:
  xcall send http://localhost:8080 \
    '{"command":{"kind":"GetGlobalField","payload":[{"t":"p","v":"Math.PI"}]}}'`,
	Args: cobra.MinimumNArgs(1),
	RunE: send,
}

func init() {
	f := sendCmd.Flags()
	f.StringVar(&sendFlags.codec, "codec", "json", "Wire codec (json or cbor)")
	f.StringVar(&sendFlags.render, "render", "json", "Render mode (json, prettyjson, yaml)")
	f.DurationVar(&sendFlags.timeout, "timeout", 30*time.Second, "Timeout for each request")
}

// client is what WSClient and HTTPClient have in common.
type client interface {
	Do(context.Context, *sio.Request) (*sio.Response, error)
	Close() error
}

func dial(ctx context.Context, url string, codec sio.Codec, timeout time.Duration) (client, error) {
	switch {
	case strings.HasPrefix(url, "ws://"), strings.HasPrefix(url, "wss://"):
		return sio.DialWS(ctx, url, codec)
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return sio.NewHTTPClient(url, codec, timeout)
	default:
		return nil, fmt.Errorf("unsupported URL '%s'", url)
	}
}

// sendAll sends each request and renders each response to out.
func sendAll(ctx context.Context, c client, requests []string, out io.Writer, render string, timeout time.Duration) error {
	for _, js := range requests {
		var req sio.Request
		if err := (sio.JSONCodec{}).Unmarshal([]byte(js), &req); err != nil {
			return fmt.Errorf("bad request %s: %w", sio.JShort(js), err)
		}

		rctx, cancel := context.WithTimeout(ctx, timeout)
		r, err := c.Do(rctx, &req)
		cancel()
		if err != nil {
			return err
		}

		bs, err := sio.Render(render, r)
		if err != nil {
			return err
		}
		if _, err = out.Write(bs); err != nil {
			return err
		}
	}
	return nil
}

// readRequests returns the non-blank, non-comment lines of in.
func readRequests(in io.Reader) ([]string, error) {
	var acc []string
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), sio.MaxFrame)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		acc = append(acc, line)
	}
	return acc, s.Err()
}

func send(cmd *cobra.Command, args []string) error {
	codec, err := sio.FindCodec(sendFlags.codec)
	if err != nil {
		return err
	}

	requests := args[1:]
	if len(requests) == 0 {
		if requests, err = readRequests(cmd.InOrStdin()); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := dial(ctx, args[0], codec, sendFlags.timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	return sendAll(ctx, c, requests, cmd.OutOrStdout(), sendFlags.render, sendFlags.timeout)
}
