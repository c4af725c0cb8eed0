package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/brisapay/gateway/internal/app/service/payments"
	"github.com/brisapay/gateway/internal/app/store"
	"github.com/brisapay/gateway/internal/models"
	"github.com/brisapay/gateway/pkg/types"
)

type stubManager struct {
	pixRes    *payments.CreateResult
	pixErr    error
	cardRes   *payments.CreateResult
	cardErr   error
	getRes    *models.Payment
	getErr    error
	finalized []string
}

func (s *stubManager) CreatePixPayment(_ context.Context, _ *payments.CreatePixRequest) (*payments.CreateResult, error) {
	return s.pixRes, s.pixErr
}

func (s *stubManager) CreateCreditCardPayment(_ context.Context, _ *payments.CreateCardRequest) (*payments.CreateResult, error) {
	return s.cardRes, s.cardErr
}

func (s *stubManager) GetPayment(_ context.Context, _, _ string) (*models.Payment, error) {
	return s.getRes, s.getErr
}

func (s *stubManager) Scan(_ context.Context, _ *store.ScanRequest) (*store.ScanResponse, error) {
	return &store.ScanResponse{}, nil
}

func (s *stubManager) FinalizeFromProvider(_ context.Context, _ types.Provider, nativeID string, status types.PaymentStatus, _ json.RawMessage) error {
	s.finalized = append(s.finalized, nativeID+":"+string(status))
	return nil
}

func postJSON(t *testing.T, r *gin.Engine, path string, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestApiCreatePixPayment_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr := &stubManager{pixRes: &payments.CreateResult{
		Payment: &models.Payment{TransactionID: "txn-1", Status: types.PaymentStatusPending},
	}}
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1"), mgr)

	w := postJSON(t, r, "/api/v1/payments/pix",
		map[string]string{"X-Company-ID": "company-a"},
		map[string]any{"transaction_id": "txn-1", "amount": "25.50"})

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"transaction_id":"txn-1"`)
	require.Contains(t, w.Body.String(), `"status":"pending"`)
}

func TestApiCreatePixPayment_MissingCompanyHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1"), &stubManager{})

	w := postJSON(t, r, "/api/v1/payments/pix", nil, map[string]any{"amount": "10"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "X-Company-ID")
}

func TestApiCreatePixPayment_GatewayInconsistentIs502(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr := &stubManager{pixErr: payments.ErrGatewayInconsistent}
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1"), mgr)

	w := postJSON(t, r, "/api/v1/payments/pix",
		map[string]string{"X-Company-ID": "company-a"},
		map[string]any{"amount": "10"})
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestApiCreateCreditCardPayment_DeclineBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr := &stubManager{cardRes: &payments.CreateResult{
		Payment:       &models.Payment{TransactionID: "txn-2", Status: types.PaymentStatusFailed},
		ReturnCode:    "105",
		ReturnMessage: "Transacao nao autorizada",
	}}
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1"), mgr)

	w := postJSON(t, r, "/api/v1/payments/credit-card",
		map[string]string{"X-Company-ID": "company-a"},
		map[string]any{"amount": "10", "card": map[string]any{"number": "5448280000000007"}})

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"return_code":"105"`)
	require.Contains(t, w.Body.String(), `"status":"failed"`)
}

func TestApiGetPayment_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr := &stubManager{getErr: store.ErrNotFound}
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1"), mgr)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/txn-x", nil)
	req.Header.Set("X-Company-ID", "company-a")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterPaymentRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1"), &stubManager{})

	routes := r.Routes()
	contains := func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}

	require.True(t, contains("POST /api/v1/payments/pix"))
	require.True(t, contains("POST /api/v1/payments/credit-card"))
	require.True(t, contains("GET /api/v1/payments/:transaction_id"))
}
