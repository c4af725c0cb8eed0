package providers

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/brisapay/gateway/pkg/metrics"
	"github.com/brisapay/gateway/pkg/types"
)

const (
	ConnectTimeout = 10 * time.Second
	RequestTimeout = 30 * time.Second

	// Creation and token calls get one extra attempt on transient failure;
	// refunds and status polls never do.
	maxAttempts = 2
	retryDelay  = 1 * time.Second
)

// NewHTTPClient builds the shared bounded-timeout client. cert, when
// non-nil, is presented as the TLS client certificate (Efí mTLS).
func NewHTTPClient(cert *tls.Certificate) *http.Client {
	dialer := &net.Dialer{Timeout: ConnectTimeout}
	tr := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: ConnectTimeout,
		MaxIdleConnsPerHost: 8,
	}
	if cert != nil {
		tr.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{*cert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return &http.Client{Transport: tr, Timeout: RequestTimeout}
}

// Retryable classifies transport-level failures: network blips and 5xx are
// retryable, anything the provider answered with a 4xx is not.
func Retryable(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
			return true
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return true
		}
		return false
	}
	return status >= 500
}

// outcome buckets one HTTP exchange for the provider_requests_total counter.
func outcome(status int, err error) string {
	switch {
	case err != nil:
		return "network_error"
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "rejected"
	default:
		return "ok"
	}
}

// DoRequest executes one provider HTTP exchange. build must return a fresh
// request per attempt (bodies are single-use). When retry is true, a
// transient failure is attempted once more after a fixed delay. Every
// attempt is counted under provider/op in the request counter.
func DoRequest(ctx context.Context, hc *http.Client, provider types.Provider, op string, retry bool, build func(ctx context.Context) (*http.Request, error)) (int, []byte, error) {
	attempts := 1
	if retry {
		attempts = maxAttempts
	}

	var lastStatus int
	var lastBody []byte
	var lastErr error

	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		req, err := build(ctx)
		if err != nil {
			return 0, nil, err
		}

		resp, err := hc.Do(req)
		if err != nil {
			metrics.ProviderRequests.WithLabelValues(string(provider), op, outcome(0, err)).Inc()
			lastStatus, lastBody, lastErr = 0, nil, err
			if Retryable(0, err) {
				continue
			}
			return 0, nil, err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			metrics.ProviderRequests.WithLabelValues(string(provider), op, outcome(0, err)).Inc()
			lastStatus, lastBody, lastErr = 0, nil, err
			continue
		}

		metrics.ProviderRequests.WithLabelValues(string(provider), op, outcome(resp.StatusCode, nil)).Inc()
		lastStatus, lastBody, lastErr = resp.StatusCode, body, nil
		if Retryable(resp.StatusCode, nil) {
			continue
		}
		return resp.StatusCode, body, nil
	}

	return lastStatus, lastBody, lastErr
}
