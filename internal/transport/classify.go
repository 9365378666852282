package transport

import (
	"context"
	"errors"
	"io"
	"strings"
)

// deadlineExceeded reports whether err is (or wraps) a context deadline,
// the only case Call must distinguish as a TimeoutError rather than a
// generic RPCError.
func deadlineExceeded(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// looksLikeDeadProcess reports whether err indicates the child process is
// gone rather than having returned a tool-level error. mcp-go's stdio
// transport surfaces a closed pipe as a plain wrapped io.EOF or a
// "broken pipe" os-level error string; there is no typed sentinel to match
// on, so this falls back to substring matching over common process-death
// markers when classifying subprocess failures.
func looksLikeDeadProcess(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"broken pipe", "closed pipe", "eof", "process already finished", "connection reset"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
