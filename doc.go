// Package xcall drives objects in a host language runtime from
// another process through a small, serializable command protocol.
//
// The core code is in package 'core', JavaScript support is in
// 'interpreters/goja', the couplings (stdio, TCP, HTTP, WebSocket,
// MQTT) are in 'sio', and the command-line tool is in `cmd/xcall`.
package xcall
