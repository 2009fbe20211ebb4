package sio

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStdio(t *testing.T) {
	input := `# A comment

{"id":"c","command":{"kind":"CreateInstance","payload":[{"t":"p","v":"Counter"},{"t":"p","v":1}]}}
{"id":"i","command":{"kind":"InvokeInstanceMethod","payload":[{"t":"ref","ref":1},{"t":"p","v":"increment"}]}}
{"id":"bad"
yaml
{"id":"j","command":{"kind":"InvokeInstanceMethod","payload":[{"t":"ref","ref":1},{"t":"p","v":"increment"}]}}
quit
{"id":"never","command":{"kind":"GetGlobalField","payload":[{"t":"p","v":"Counter"}]}}
`
	var out bytes.Buffer
	s := NewStdio(newTransmitter(t, nil), "json")
	s.In = strings.NewReader(input)
	s.Out = &out

	ctx := withTimeout(t)
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Serve(ctx))
	require.NoError(t, s.Stop(ctx))

	lines := bufio.NewScanner(&out)
	var got []string
	for lines.Scan() {
		got = append(got, lines.Text())
	}
	require.Equal(t, []string{
		`{"id":"c","result":{"t":"ref","ref":1}}`,
		`{"id":"i","result":{"t":"p","v":2}}`,
		`{"id":"","error":{"kind":"MalformedCommand","message":"can't decode request: unexpected EOF"}}`,
		`id: j`,
		`result:`,
		`  t: p`,
		`  v: 3`,
	}, got)
}

func TestStdioStopped(t *testing.T) {
	s := NewStdio(newTransmitter(t, nil), "json")
	s.In = strings.NewReader("{}\n")
	s.Out = &bytes.Buffer{}
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Serve(context.Background()))
	require.Equal(t, 0, s.Out.(*bytes.Buffer).Len())
}
