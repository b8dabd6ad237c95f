package toolhost

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// ServeStdio serves the tool host over newline-delimited JSON-RPC on
// the given reader/writer pair (normally stdin/stdout, matching the
// framing of the stdio client transport). It returns when the reader
// reaches EOF or the context is cancelled.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var writeMu sync.Mutex
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			s.logger.Debug("unparseable stdio line", "error", err)
			writeMu.Lock()
			_ = enc.Encode(errorResponse(0, codeParseError, "parse error"))
			writeMu.Unlock()
			continue
		}

		// Notifications produce no reply on stdio either.
		if msg.ID == nil {
			s.logger.Debug("notification received", "method", msg.Method)
			continue
		}

		resp := s.dispatch(ctx, &msg)
		writeMu.Lock()
		err := enc.Encode(resp)
		writeMu.Unlock()
		if err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}
