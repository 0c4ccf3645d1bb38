package monitor

import (
	"net/http"
	"strconv"

	"github.com/hamed0406/imisu/internal/probe"
)

// Status is the HTTP status code reported for a health check.
type Status int

const (
	StatusOK                  Status = http.StatusOK
	StatusInternalServerError Status = http.StatusInternalServerError
	StatusServerIsDown        Status = 521
	StatusOriginUnreachable   Status = 523
	StatusSSLHandshakeFailed  Status = 525
	StatusInvalidCertificate  Status = 526
)

var reasons = map[Status]string{
	StatusServerIsDown:       "Server Is Down",
	StatusOriginUnreachable:  "Origin Is Unreachable",
	StatusSSLHandshakeFailed: "SSL Handshake Failed",
	StatusInvalidCertificate: "Invalid SSL certificate",
}

func (s Status) Code() int { return int(s) }

// Text returns the reason phrase, including the non-standard 52x ones.
func (s Status) Text() string {
	if r, ok := reasons[s]; ok {
		return r
	}
	return http.StatusText(int(s))
}

func (s Status) String() string {
	return strconv.Itoa(int(s)) + " " + s.Text()
}

// ToStatus maps an evaluation outcome onto the status code reported to
// callers. An evaluation error wins over whatever result came with it.
func ToStatus(res probe.Result, err error) Status {
	if err != nil {
		return StatusInternalServerError
	}
	if res.OK() {
		return StatusOK
	}
	switch res.Cause() {
	case probe.CauseCertificateInvalid:
		return StatusInvalidCertificate
	case probe.CauseTLSHandshakeFailed:
		return StatusSSLHandshakeFailed
	case probe.CauseUnreachable:
		return StatusOriginUnreachable
	default:
		return StatusServerIsDown
	}
}
