// Package mcp implements a Model Context Protocol client and the
// session that owns its lifetime.
//
// The protocol is JSON-RPC 2.0 over one of two transports: an HTTP
// transport posting each request to a remote endpoint, or a stdio
// transport framing newline-delimited messages to a subprocess. The
// Client layers typed MCP operations (initialize, tools/list,
// tools/call, ping) on top of a Transport, and the Session adds the
// connect/degrade/close state machine the rest of the process reads.
package mcp
