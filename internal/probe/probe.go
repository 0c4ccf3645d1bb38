package probe

import (
	"errors"
	"fmt"
)

// Cause classifies why a probe failed.
type Cause int

const (
	// CauseGeneric covers refused connections, unhealthy responses and
	// every fault that has no more specific cause.
	CauseGeneric Cause = iota
	// CauseCertificateInvalid: the peer certificate failed trust or hostname validation.
	CauseCertificateInvalid
	// CauseTLSHandshakeFailed: TLS negotiation failed for another reason.
	CauseTLSHandshakeFailed
	// CauseUnreachable: every candidate address failed at the network layer.
	CauseUnreachable
)

func (c Cause) String() string {
	switch c {
	case CauseGeneric:
		return "generic"
	case CauseCertificateInvalid:
		return "certificate_invalid"
	case CauseTLSHandshakeFailed:
		return "tls_handshake_failed"
	case CauseUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

var (
	ErrConnectionRefused = errors.New("connection refused")
	ErrUnhealthyStatus   = errors.New("unhealthy http status")
	ErrUnhealthyResponse = errors.New("unhealthy dns response")
	ErrNoReply           = errors.New("no echo reply")
)

// Result is the outcome of a single probe. The zero value is a generic
// failure; use Success and Failure to build one.
type Result struct {
	ok    bool
	cause Cause
	err   error
}

func Success() Result {
	return Result{ok: true}
}

func Failure(cause Cause, err error) Result {
	return Result{cause: cause, err: err}
}

func (r Result) OK() bool { return r.ok }

// Cause is only meaningful when OK is false.
func (r Result) Cause() Cause { return r.cause }

// Err is the underlying fault of a failure, if any.
func (r Result) Err() error { return r.err }

func (r Result) String() string {
	if r.ok {
		return "success"
	}
	if r.err == nil {
		return fmt.Sprintf("failure(%s)", r.cause)
	}
	return fmt.Sprintf("failure(%s): %v", r.cause, r.err)
}
