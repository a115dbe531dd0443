package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// statusError is a non-OK HTTP response from the model server. Status
// errors are never retried: the server answered, it just said no.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("model server error (%d): %s", e.code, e.body)
}

// isRetryable reports whether the request should be attempted again.
// Only timeouts qualify. A refused connection means the server is not
// running, and an HTTP error status means the request itself is bad;
// neither improves with a retry.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
