package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brisapay/gateway/internal/platform/providers"
	"github.com/brisapay/gateway/pkg/types"
	"go.uber.org/zap"
)

const (
	qrCodeAttempts     = 5
	qrCodeInitialDelay = 2 * time.Second
)

type Options struct {
	BaseURL string
}

// Client talks to the Asaas REST API. Authentication is a per-company
// access_token header, no OAuth dance.
type Client struct {
	opts  Options
	creds providers.CredentialStore
	hc    *http.Client
	log   *zap.SugaredLogger
}

func NewClient(opts Options, creds providers.CredentialStore, log *zap.SugaredLogger) *Client {
	return &Client{
		opts:  opts,
		creds: creds,
		hc:    providers.NewHTTPClient(nil),
		log:   log,
	}
}

func (c *Client) Provider() types.Provider { return types.ProviderAsaas }

func (c *Client) do(ctx context.Context, companyID, op string, retry bool, method, path string, body any) (int, []byte, error) {
	cred, err := c.creds.Asaas(ctx, companyID)
	if err != nil {
		return 0, nil, err
	}
	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
	}
	return providers.DoRequest(ctx, c.hc, types.ProviderAsaas, op, retry, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("access_token", cred.APIKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

type paymentResponse struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	Value             float64 `json:"value"`
	ExternalReference string  `json:"externalReference"`
	DateCreated       string  `json:"dateCreated"`
}

type errorsResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

func (e *errorsResponse) first() (code, description string) {
	if len(e.Errors) == 0 {
		return "", ""
	}
	return e.Errors[0].Code, e.Errors[0].Description
}

type qrCodeResponse struct {
	EncodedImage string `json:"encodedImage"`
	Payload      string `json:"payload"`
}

func (c *Client) CreateCharge(ctx context.Context, companyID string, req *providers.ChargeRequest) (*providers.Result, error) {
	body, err := BuildPaymentBody(req, time.Now().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	status, respBody, err := c.do(ctx, companyID, "create_charge", true, http.MethodPost, "/v3/payments", body)
	if err != nil {
		return nil, &providers.UnavailableError{Provider: types.ProviderAsaas, Err: err}
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		var payment paymentResponse
		if err := json.Unmarshal(respBody, &payment); err != nil || payment.ID == "" {
			return nil, &providers.InconsistentError{Provider: types.ProviderAsaas, Detail: "unparseable payment response"}
		}
		result := &providers.Result{
			Status:   MapStatus(payment.Status),
			NativeID: payment.ID,
			Raw:      respBody,
		}
		if req.Kind == types.PaymentKindPix && !result.Status.Terminal() {
			// The QR code is generated asynchronously on their side.
			qr, err := c.fetchQRCode(ctx, companyID, payment.ID)
			if err != nil {
				return nil, err
			}
			result.PixCopyPaste = qr.Payload
			result.QRCodeImage = qr.EncodedImage
		}
		return result, nil
	case status >= 400 && status < 500:
		var resp errorsResponse
		_ = json.Unmarshal(respBody, &resp)
		code, description := resp.first()
		return nil, &providers.RejectedError{
			Provider: types.ProviderAsaas,
			Reason:   providers.RejectReasonDeclined,
			Code:     code,
			Message:  description,
		}
	default:
		return nil, &providers.UnavailableError{Provider: types.ProviderAsaas, Err: fmt.Errorf("payment creation failed with status %d", status)}
	}
}

// fetchQRCode polls the pixQrCode endpoint with exponential backoff. The
// endpoint answers 404 or an empty payload until generation finishes.
func (c *Client) fetchQRCode(ctx context.Context, companyID, paymentID string) (*qrCodeResponse, error) {
	delay := qrCodeInitialDelay
	path := fmt.Sprintf("/v3/payments/%s/pixQrCode", url.PathEscape(paymentID))

	for attempt := 1; attempt <= qrCodeAttempts; attempt++ {
		status, body, err := c.do(ctx, companyID, "qr_code", false, http.MethodGet, path, nil)
		if err == nil && status == http.StatusOK {
			var qr qrCodeResponse
			if jsonErr := json.Unmarshal(body, &qr); jsonErr == nil && qr.Payload != "" {
				return &qr, nil
			}
		}
		if err != nil {
			c.log.Warnw("asaas qr code fetch failed", "payment_id", paymentID, "attempt", attempt, "error", err)
		}
		if attempt == qrCodeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &providers.UnavailableError{Provider: types.ProviderAsaas, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, &providers.InconsistentError{Provider: types.ProviderAsaas, Detail: "qr code not available after retries"}
}

func (c *Client) GetStatus(ctx context.Context, companyID, nativeID string) (*providers.Result, error) {
	status, body, err := c.do(ctx, companyID, "get_status", false, http.MethodGet, "/v3/payments/"+url.PathEscape(nativeID), nil)
	if err != nil {
		return nil, &providers.UnavailableError{Provider: types.ProviderAsaas, Err: err}
	}
	if status == http.StatusNotFound {
		return &providers.Result{Status: providers.StatusPending, NativeID: nativeID}, nil
	}
	if status < 200 || status >= 300 {
		return nil, &providers.UnavailableError{Provider: types.ProviderAsaas, Err: fmt.Errorf("status lookup failed with status %d", status)}
	}

	var payment paymentResponse
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, &providers.InconsistentError{Provider: types.ProviderAsaas, Detail: "unparseable payment response"}
	}
	return &providers.Result{Status: MapStatus(payment.Status), NativeID: nativeID, Raw: body}, nil
}

func (c *Client) CreateRefund(ctx context.Context, companyID, nativeID string) (*providers.Result, error) {
	path := fmt.Sprintf("/v3/payments/%s/refund", url.PathEscape(nativeID))
	status, body, err := c.do(ctx, companyID, "refund", false, http.MethodPost, path, nil)
	if err != nil {
		return nil, &providers.UnavailableError{Provider: types.ProviderAsaas, Err: err}
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return &providers.Result{Status: providers.StatusCanceled, NativeID: nativeID, Raw: body}, nil
	case status == http.StatusNotFound:
		return nil, &providers.RejectedError{Provider: types.ProviderAsaas, Reason: providers.RejectReasonNotFound, Message: "payment not found"}
	case status >= 400 && status < 500:
		var resp errorsResponse
		_ = json.Unmarshal(body, &resp)
		code, description := resp.first()
		reason := providers.RejectReasonDeclined
		if strings.Contains(strings.ToLower(description), "prazo") || strings.Contains(strings.ToLower(description), "expired") {
			reason = providers.RejectReasonWindowExpired
		}
		return nil, &providers.RejectedError{Provider: types.ProviderAsaas, Reason: reason, Code: code, Message: description}
	default:
		return nil, &providers.UnavailableError{Provider: types.ProviderAsaas, Err: fmt.Errorf("refund failed with status %d", status)}
	}
}
