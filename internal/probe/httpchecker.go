package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPChecker probes an endpoint with HEAD, falling back to GET when the
// server rejects HEAD. Certificate validation is chosen per call by picking
// one of two fixed clients.
type HTTPChecker struct {
	Client   Doer // full chain and hostname validation
	Insecure Doer // skips certificate validation
}

// NewHTTPChecker caps the TLS handshake at half of timeout so a stalled
// handshake is reported as such instead of as a plain client timeout.
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	strict := newTransport(timeout)
	insecure := newTransport(timeout)
	insecure.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return &HTTPChecker{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: strict,
		},
		Insecure: &http.Client{
			Timeout:   timeout,
			Transport: insecure,
		},
	}
}

func newTransport(timeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if half := timeout / 2; half > 0 && half < t.TLSHandshakeTimeout {
		t.TLSHandshakeTimeout = half
	}
	return t
}

func (h *HTTPChecker) Check(ctx context.Context, endpoint string, validateCertificates bool) Result {
	client := h.Client
	if !validateCertificates {
		client = h.Insecure
	}

	status, err := h.do(ctx, client, http.MethodHead, endpoint)
	if err != nil {
		return Failure(classifyTransport(err), err)
	}

	// Fallback is status driven only: a transport error on HEAD is final.
	if status == http.StatusMethodNotAllowed || status == http.StatusRequestTimeout {
		status, err = h.do(ctx, client, http.MethodGet, endpoint)
		if err != nil {
			return Failure(classifyTransport(err), err)
		}
	}

	if status >= 200 && status < 300 {
		return Success()
	}
	return Failure(CauseGeneric, fmt.Errorf("%w: %d", ErrUnhealthyStatus, status))
}

func (h *HTTPChecker) do(ctx context.Context, client Doer, method, endpoint string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// drain a little so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}
