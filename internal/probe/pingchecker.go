package probe

import (
	"context"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

const defaultPingTimeout = time.Second

// Pinger reports whether host answered a reachability probe within timeout.
type Pinger interface {
	Ping(ctx context.Context, host string, timeout time.Duration) (bool, error)
}

// ICMPPinger sends a single ICMP echo. Unprivileged mode uses UDP ping
// sockets and needs net.ipv4.ping_group_range to cover the process group.
type ICMPPinger struct {
	Privileged bool
}

func (p ICMPPinger) Ping(ctx context.Context, host string, timeout time.Duration) (bool, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false, err
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(p.Privileged)
	if err := pinger.RunWithContext(ctx); err != nil {
		return false, err
	}
	return pinger.Statistics().PacketsRecv > 0, nil
}

type PingChecker struct {
	Pinger Pinger
}

func NewPingChecker(privileged bool) *PingChecker {
	return &PingChecker{Pinger: ICMPPinger{Privileged: privileged}}
}

func (p *PingChecker) Check(ctx context.Context, host string, timeoutMS uint32) Result {
	timeout := time.Duration(timeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ok, err := p.Pinger.Ping(ctx, host, timeout)
	if err != nil {
		return Failure(CauseGeneric, err)
	}
	if !ok {
		return Failure(CauseGeneric, ErrNoReply)
	}
	return Success()
}
