package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"
)

// Dialer opens a raw connection. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// TCPChecker connects and hangs up without sending anything.
type TCPChecker struct {
	Dialer Dialer
}

func NewTCPChecker(timeout time.Duration) *TCPChecker {
	return &TCPChecker{Dialer: &net.Dialer{Timeout: timeout}}
}

// Check reports a refused connection as a failure wrapping
// ErrConnectionRefused; other dial errors (bad address, timeout) are carried
// as is so callers can tell the two apart.
func (t *TCPChecker) Check(ctx context.Context, host string, port uint16) Result {
	conn, err := t.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return Failure(CauseGeneric, fmt.Errorf("%w: %w", ErrConnectionRefused, err))
		}
		return Failure(CauseGeneric, err)
	}
	_ = conn.Close()
	return Success()
}
