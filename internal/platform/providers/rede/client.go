package rede

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/brisapay/gateway/internal/platform/providers"
	"github.com/brisapay/gateway/pkg/types"
	"go.uber.org/zap"
)

// approvedReturnCode is the only code that means the authorizer took the money.
const approvedReturnCode = "00"

type Options struct {
	BaseURL string
}

// Client talks to the e-Rede card API using HTTP basic auth with the
// company's merchant id and integration key.
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

func (c *Client) Provider() types.Provider { return types.ProviderRede }

func (c *Client) do(ctx context.Context, companyID, op string, retry bool, method, path string, body any) (int, []byte, error) {
	cred, err := c.creds.Rede(ctx, companyID)
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
	return providers.DoRequest(ctx, c.hc, types.ProviderRede, op, retry, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(cred.MerchantID, cred.IntegrationKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

type transactionResponse struct {
	TID           string `json:"tid"`
	Reference     string `json:"reference"`
	ReturnCode    string `json:"returnCode"`
	ReturnMessage string `json:"returnMessage"`
	Authorization struct {
		Status string `json:"status"`
	} `json:"authorization"`
}

func (r *transactionResponse) result(raw []byte) *providers.Result {
	status := providers.StatusFailed
	if r.ReturnCode == approvedReturnCode {
		status = providers.StatusApproved
	}
	return &providers.Result{
		Status:        status,
		NativeID:      r.TID,
		ReturnCode:    r.ReturnCode,
		ReturnMessage: r.ReturnMessage,
		Raw:           raw,
	}
}

// CreateCharge authorizes and captures in one shot. A parseable decline is
// a failed Result, not an error: the authorizer answered, the card said no.
func (c *Client) CreateCharge(ctx context.Context, companyID string, req *providers.ChargeRequest) (*providers.Result, error) {
	body, err := BuildTransactionBody(req)
	if err != nil {
		return nil, err
	}

	status, respBody, err := c.do(ctx, companyID, "create_charge", true, http.MethodPost, "/v2/transactions", body)
	if err != nil {
		return nil, &providers.UnavailableError{Provider: types.ProviderRede, Err: err}
	}

	switch {
	case status >= 200 && status < 300:
		var txn transactionResponse
		if err := json.Unmarshal(respBody, &txn); err != nil || txn.ReturnCode == "" {
			return nil, &providers.InconsistentError{Provider: types.ProviderRede, Detail: "unparseable transaction response"}
		}
		return txn.result(respBody), nil
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		// Business declines come back on 4xx with a returnCode too.
		var txn transactionResponse
		if err := json.Unmarshal(respBody, &txn); err == nil && txn.ReturnCode != "" {
			return txn.result(respBody), nil
		}
		return nil, &providers.InconsistentError{Provider: types.ProviderRede, Detail: fmt.Sprintf("unparseable decline with status %d", status)}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, &providers.RejectedError{Provider: types.ProviderRede, Reason: providers.RejectReasonDeclined, Message: "merchant credentials rejected"}
	default:
		return nil, &providers.UnavailableError{Provider: types.ProviderRede, Err: fmt.Errorf("transaction failed with status %d", status)}
	}
}

func (c *Client) GetStatus(ctx context.Context, companyID, tid string) (*providers.Result, error) {
	status, body, err := c.do(ctx, companyID, "get_status", false, http.MethodGet, "/v2/transactions/"+url.PathEscape(tid), nil)
	if err != nil {
		return nil, &providers.UnavailableError{Provider: types.ProviderRede, Err: err}
	}
	if status == http.StatusNotFound {
		return nil, &providers.RejectedError{Provider: types.ProviderRede, Reason: providers.RejectReasonNotFound, Message: "transaction not found"}
	}
	if status < 200 || status >= 300 {
		return nil, &providers.UnavailableError{Provider: types.ProviderRede, Err: fmt.Errorf("status lookup failed with status %d", status)}
	}

	var txn transactionResponse
	if err := json.Unmarshal(body, &txn); err != nil || txn.ReturnCode == "" {
		return nil, &providers.InconsistentError{Provider: types.ProviderRede, Detail: "unparseable transaction response"}
	}
	return txn.result(body), nil
}

func (c *Client) CreateRefund(ctx context.Context, companyID, tid string) (*providers.Result, error) {
	path := fmt.Sprintf("/v2/transactions/%s/refunds", url.PathEscape(tid))
	status, body, err := c.do(ctx, companyID, "refund", false, http.MethodPost, path, nil)
	if err != nil {
		return nil, &providers.UnavailableError{Provider: types.ProviderRede, Err: err}
	}

	switch {
	case status >= 200 && status < 300:
		return &providers.Result{Status: providers.StatusCanceled, NativeID: tid, Raw: body}, nil
	case status == http.StatusNotFound:
		return nil, &providers.RejectedError{Provider: types.ProviderRede, Reason: providers.RejectReasonNotFound, Message: "transaction not found"}
	case status >= 400 && status < 500:
		var txn transactionResponse
		_ = json.Unmarshal(body, &txn)
		return nil, &providers.RejectedError{
			Provider: types.ProviderRede,
			Reason:   providers.RejectReasonDeclined,
			Code:     txn.ReturnCode,
			Message:  txn.ReturnMessage,
		}
	default:
		return nil, &providers.UnavailableError{Provider: types.ProviderRede, Err: fmt.Errorf("refund failed with status %d", status)}
	}
}
