package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ClassifyTransport maps a transport-level failure onto the client taxonomy:
// deadline expiry becomes a TimeoutError carrying the elapsed wait, anything
// else is reported as a network failure. Timeouts and network failures are
// deliberately distinct kinds; callers apply different retry policy to each.
func ClassifyTransport(err error, elapsed time.Duration) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{Elapsed: elapsed}
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
