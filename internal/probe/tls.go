package probe

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"strings"
)

const handshakeTimeout = "TLS handshake timeout"

// classifyTransport maps an HTTP client error onto the failure taxonomy.
func classifyTransport(err error) Cause {
	var (
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		rootsErr    x509.SystemRootsError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr),
		errors.As(err, &rootsErr):
		return CauseCertificateInvalid
	case errors.As(err, &recordErr),
		errors.As(err, &alertErr),
		errors.Is(err, http.ErrSchemeMismatch):
		return CauseTLSHandshakeFailed
	}
	msg := err.Error()
	// net/http reports a stalled handshake with an unexported error type.
	if strings.Contains(msg, handshakeTimeout) {
		return CauseTLSHandshakeFailed
	}
	// Last resort: peer alerts surface as an unexported type inside a
	// net.OpError and only the message identifies them.
	if strings.Contains(msg, "tls: ") {
		return CauseTLSHandshakeFailed
	}
	return CauseGeneric
}
