package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/brisapay/gateway/pkg/metrics"
	"github.com/brisapay/gateway/pkg/types"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryable(t *testing.T) {
	require.True(t, Retryable(0, timeoutErr{}))
	require.True(t, Retryable(0, syscall.ECONNREFUSED))
	require.True(t, Retryable(0, syscall.ECONNRESET))
	require.True(t, Retryable(0, io.ErrUnexpectedEOF))
	require.True(t, Retryable(500, nil))
	require.True(t, Retryable(503, nil))
	require.False(t, Retryable(200, nil))
	require.False(t, Retryable(400, nil))
	require.False(t, Retryable(422, nil))
	require.False(t, Retryable(0, errors.New("certificate problem")))
}

func TestDoRequest_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	status, body, err := DoRequest(context.Background(), srv.Client(), types.ProviderEfi, "create_charge", true, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"ok":true}`, string(body))
	require.EqualValues(t, 2, calls.Load())
}

func TestDoRequest_NoRetryWhenDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	status, _, err := DoRequest(context.Background(), srv.Client(), types.ProviderAsaas, "refund", false, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, status)
	require.EqualValues(t, 1, calls.Load())
}

func TestDoRequest_NoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	status, _, err := DoRequest(context.Background(), srv.Client(), types.ProviderRede, "create_charge", true, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, status)
	require.EqualValues(t, 1, calls.Load())
}

func TestDoRequest_RebuildsRequestPerAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, `{"v":1}`, string(body))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	builds := 0
	status, _, err := DoRequest(context.Background(), srv.Client(), types.ProviderRede, "create_charge", true, func(ctx context.Context) (*http.Request, error) {
		builds++
		return http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, strings.NewReader(`{"v":1}`))
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 2, builds)
}

func TestDoRequest_CountsEveryAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	serverErrBefore := testutil.ToFloat64(metrics.ProviderRequests.WithLabelValues("efi", "get_status", "server_error"))
	okBefore := testutil.ToFloat64(metrics.ProviderRequests.WithLabelValues("efi", "get_status", "ok"))

	_, _, err := DoRequest(context.Background(), srv.Client(), types.ProviderEfi, "get_status", true, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	require.NoError(t, err)

	require.Equal(t, serverErrBefore+1, testutil.ToFloat64(metrics.ProviderRequests.WithLabelValues("efi", "get_status", "server_error")))
	require.Equal(t, okBefore+1, testutil.ToFloat64(metrics.ProviderRequests.WithLabelValues("efi", "get_status", "ok")))
}

func TestOutcomeBuckets(t *testing.T) {
	require.Equal(t, "network_error", outcome(0, errors.New("dial refused")))
	require.Equal(t, "server_error", outcome(503, nil))
	require.Equal(t, "rejected", outcome(422, nil))
	require.Equal(t, "ok", outcome(201, nil))
}
