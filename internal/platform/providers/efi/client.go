package efi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/brisapay/gateway/internal/platform/providers"
	"github.com/brisapay/gateway/pkg/tool"
	"github.com/brisapay/gateway/pkg/types"
	"go.uber.org/zap"
)

// Pix devolutions are accepted by the scheme for 90 days after settlement.
const pixRefundWindow = 90 * 24 * time.Hour

type Options struct {
	BaseURL  string
	TokenTTL time.Duration
}

// Client talks to the Efí Pix API. Every call runs over a company-specific
// mTLS client and carries an OAuth bearer token cached per company.
type Client struct {
	opts  Options
	creds providers.CredentialStore
	certs providers.CertificateStore
	log   *zap.SugaredLogger

	tokens *tokenCache

	mu          sync.Mutex
	httpClients map[string]*http.Client
}

func NewClient(opts Options, creds providers.CredentialStore, certs providers.CertificateStore, log *zap.SugaredLogger) *Client {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	return &Client{
		opts:        opts,
		creds:       creds,
		certs:       certs,
		log:         log,
		tokens:      newTokenCache(),
		httpClients: make(map[string]*http.Client),
	}
}

func (c *Client) Provider() types.Provider { return types.ProviderEfi }

// httpClientFor returns the mTLS client for the company, building it once.
func (c *Client) httpClientFor(ctx context.Context, companyID string) (*http.Client, error) {
	c.mu.Lock()
	if hc, ok := c.httpClients[companyID]; ok {
		c.mu.Unlock()
		return hc, nil
	}
	c.mu.Unlock()

	cert, err := c.certs.ClientCertificate(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}
	hc := providers.NewHTTPClient(cert)

	c.mu.Lock()
	c.httpClients[companyID] = hc
	c.mu.Unlock()
	return hc, nil
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a valid bearer token for the company, refreshing on demand.
func (c *Client) token(ctx context.Context, companyID string) (string, error) {
	hc, err := c.httpClientFor(ctx, companyID)
	if err != nil {
		return "", err
	}
	cred, err := c.creds.Efi(ctx, companyID)
	if err != nil {
		return "", err
	}

	return c.tokens.fetch(companyID, time.Now(), func() (string, time.Time, error) {
		status, body, err := providers.DoRequest(ctx, hc, types.ProviderEfi, "token", true, func(ctx context.Context) (*http.Request, error) {
			payload := bytes.NewBufferString(`{"grant_type":"client_credentials"}`)
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/oauth/token", payload)
			if err != nil {
				return nil, err
			}
			req.SetBasicAuth(cred.ClientID, cred.ClientSecret)
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		})
		if err != nil {
			return "", time.Time{}, &providers.UnavailableError{Provider: types.ProviderEfi, Err: err}
		}
		if status != http.StatusOK {
			return "", time.Time{}, fmt.Errorf("oauth token request failed with status %d", status)
		}

		var tok oauthResponse
		if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
			return "", time.Time{}, &providers.InconsistentError{Provider: types.ProviderEfi, Detail: "unparseable oauth response"}
		}
		ttl := c.opts.TokenTTL
		if tok.ExpiresIn > 0 {
			ttl = time.Duration(tok.ExpiresIn) * time.Second
		}
		return tok.AccessToken, time.Now().Add(ttl), nil
	})
}

// authorized runs one API exchange with a bearer token, re-fetching the
// token once when the provider answers 401/403.
func (c *Client) authorized(ctx context.Context, companyID, op string, retry bool, build func(ctx context.Context, token string) (*http.Request, error)) (int, []byte, error) {
	hc, err := c.httpClientFor(ctx, companyID)
	if err != nil {
		return 0, nil, err
	}

	tok, err := c.token(ctx, companyID)
	if err != nil {
		return 0, nil, err
	}

	status, body, err := providers.DoRequest(ctx, hc, types.ProviderEfi, op, retry, func(ctx context.Context) (*http.Request, error) {
		return build(ctx, tok)
	})
	if err == nil && (status == http.StatusUnauthorized || status == http.StatusForbidden) {
		c.tokens.invalidate(companyID)
		tok, err = c.token(ctx, companyID)
		if err != nil {
			return 0, nil, err
		}
		return providers.DoRequest(ctx, hc, types.ProviderEfi, op, false, func(ctx context.Context) (*http.Request, error) {
			return build(ctx, tok)
		})
	}
	return status, body, err
}

type cobResponse struct {
	Txid          string `json:"txid"`
	Status        string `json:"status"`
	PixCopiaECola string `json:"pixCopiaECola"`
	Loc           struct {
		ID       int    `json:"id"`
		Location string `json:"location"`
	} `json:"loc"`
	Calendario struct {
		Criacao   time.Time `json:"criacao"`
		Expiracao int       `json:"expiracao"`
	} `json:"calendario"`
	Pix []struct {
		EndToEndID string `json:"endToEndId"`
		Valor      string `json:"valor"`
	} `json:"pix"`
}

type apiError struct {
	Nome     string `json:"nome"`
	Title    string `json:"title"`
	Mensagem string `json:"mensagem"`
	Detail   string `json:"detail"`
}

func (e *apiError) code() string {
	if e.Nome != "" {
		return e.Nome
	}
	return e.Title
}

func (e *apiError) message() string {
	if e.Mensagem != "" {
		return e.Mensagem
	}
	return e.Detail
}

func mapCobStatus(s string) providers.Status {
	switch {
	case s == "CONCLUIDA":
		return providers.StatusApproved
	case strings.HasPrefix(s, "REMOVIDA"):
		return providers.StatusCanceled
	default:
		// ATIVA and anything unrecognized keep the charge pending.
		return providers.StatusPending
	}
}

func (c *Client) CreateCharge(ctx context.Context, companyID string, req *providers.ChargeRequest) (*providers.Result, error) {
	body, err := BuildChargeBody(req)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	status, respBody, err := c.authorized(ctx, companyID, "create_charge", true, func(ctx context.Context, token string) (*http.Request, error) {
		u := fmt.Sprintf("%s/v2/cob/%s", c.opts.BaseURL, url.PathEscape(req.Txid))
		r, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+token)
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	})
	if err != nil {
		return nil, &providers.UnavailableError{Provider: types.ProviderEfi, Err: err}
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		var cob cobResponse
		if err := json.Unmarshal(respBody, &cob); err != nil || cob.Txid == "" {
			return nil, &providers.InconsistentError{Provider: types.ProviderEfi, Detail: "unparseable cob response"}
		}
		refundableUntil := cob.Calendario.Criacao.Add(pixRefundWindow)
		return &providers.Result{
			Status:          mapCobStatus(cob.Status),
			NativeID:        cob.Txid,
			PixCopyPaste:    cob.PixCopiaECola,
			QRCodeImage:     cob.Loc.Location,
			RefundableUntil: &refundableUntil,
			Raw:             respBody,
		}, nil
	case status >= 400 && status < 500:
		var apiErr apiError
		_ = json.Unmarshal(respBody, &apiErr)
		return nil, &providers.RejectedError{
			Provider: types.ProviderEfi,
			Reason:   providers.RejectReasonDeclined,
			Code:     apiErr.code(),
			Message:  apiErr.message(),
		}
	default:
		return nil, &providers.UnavailableError{Provider: types.ProviderEfi, Err: fmt.Errorf("cob creation failed with status %d", status)}
	}
}

type probeResult struct {
	endpoint string
	status   int
	body     []byte
	err      error
}

// GetStatus probes the immediate-charge and due-date-charge endpoints
// concurrently: the same txid may live under either depending on how the
// charge was created. The first recognized terminal status wins; a 404 on
// both just means the charge is not visible yet.
func (c *Client) GetStatus(ctx context.Context, companyID, txid string) (*providers.Result, error) {
	endpoints := []string{"/v2/cob/", "/v2/cobv/"}
	results := make(chan probeResult, len(endpoints))

	for _, ep := range endpoints {
		go func(ep string) {
			status, body, err := c.authorized(ctx, companyID, "get_status", false, func(ctx context.Context, token string) (*http.Request, error) {
				u := c.opts.BaseURL + ep + url.PathEscape(txid)
				r, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
				if err != nil {
					return nil, err
				}
				r.Header.Set("Authorization", "Bearer "+token)
				return r, nil
			})
			results <- probeResult{endpoint: ep, status: status, body: body, err: err}
		}(ep)
	}

	var pending *providers.Result
	notFound := 0
	var lastErr error

	for range endpoints {
		p := <-results
		if p.err != nil {
			lastErr = p.err
			continue
		}
		if p.status == http.StatusNotFound {
			notFound++
			continue
		}
		if p.status < 200 || p.status >= 300 {
			c.log.Warnw("efi status probe returned unexpected code", "endpoint", p.endpoint, "status", p.status, "txid", txid)
			continue
		}
		var cob cobResponse
		if err := json.Unmarshal(p.body, &cob); err != nil {
			c.log.Warnw("efi status probe unparseable", "endpoint", p.endpoint, "txid", txid)
			continue
		}
		res := &providers.Result{Status: mapCobStatus(cob.Status), NativeID: txid, Raw: p.body}
		if res.Status.Terminal() {
			// First terminal answer wins; the second probe is ignored.
			return res, nil
		}
		pending = res
	}

	if pending != nil {
		return pending, nil
	}
	if notFound == len(endpoints) {
		// Not visible under either endpoint yet: keep polling.
		return &providers.Result{Status: providers.StatusPending, NativeID: txid}, nil
	}
	if lastErr != nil {
		return nil, &providers.UnavailableError{Provider: types.ProviderEfi, Err: lastErr}
	}
	return &providers.Result{Status: providers.StatusPending, NativeID: txid}, nil
}

type devolucaoResponse struct {
	ID     string `json:"id"`
	RtrID  string `json:"rtrId"`
	Status string `json:"status"`
}

// CreateRefund issues a full devolution. The cob is fetched first to learn
// the settled end-to-end id and amount; refunds are never retried.
func (c *Client) CreateRefund(ctx context.Context, companyID, txid string) (*providers.Result, error) {
	status, body, err := c.authorized(ctx, companyID, "get_charge", false, func(ctx context.Context, token string) (*http.Request, error) {
		u := fmt.Sprintf("%s/v2/cob/%s", c.opts.BaseURL, url.PathEscape(txid))
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+token)
		return r, nil
	})
	if err != nil {
		return nil, &providers.UnavailableError{Provider: types.ProviderEfi, Err: err}
	}
	if status == http.StatusNotFound {
		return nil, &providers.RejectedError{Provider: types.ProviderEfi, Reason: providers.RejectReasonNotFound, Message: "charge not found"}
	}
	if status < 200 || status >= 300 {
		return nil, &providers.UnavailableError{Provider: types.ProviderEfi, Err: fmt.Errorf("cob lookup failed with status %d", status)}
	}

	var cob cobResponse
	if err := json.Unmarshal(body, &cob); err != nil || len(cob.Pix) == 0 {
		return nil, &providers.RejectedError{Provider: types.ProviderEfi, Reason: providers.RejectReasonNotFound, Message: "no settled pix for txid"}
	}
	settled := cob.Pix[0]

	refundID := tool.GeneratePixTxid()
	payload, err := json.Marshal(map[string]string{"valor": settled.Valor})
	if err != nil {
		return nil, err
	}

	status, respBody, err := c.authorized(ctx, companyID, "refund", false, func(ctx context.Context, token string) (*http.Request, error) {
		u := fmt.Sprintf("%s/v2/pix/%s/devolucao/%s", c.opts.BaseURL, url.PathEscape(settled.EndToEndID), refundID)
		r, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+token)
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	})
	if err != nil {
		return nil, &providers.UnavailableError{Provider: types.ProviderEfi, Err: err}
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		var dev devolucaoResponse
		if err := json.Unmarshal(respBody, &dev); err != nil {
			return nil, &providers.InconsistentError{Provider: types.ProviderEfi, Detail: "unparseable devolution response"}
		}
		if dev.Status == "NAO_REALIZADO" {
			return nil, &providers.RejectedError{Provider: types.ProviderEfi, Reason: providers.RejectReasonDeclined, Message: "devolution not performed"}
		}
		// EM_PROCESSAMENTO and DEVOLVIDO both count as a confirmed refund.
		return &providers.Result{Status: providers.StatusCanceled, NativeID: txid, Raw: respBody}, nil
	case status == http.StatusNotFound:
		return nil, &providers.RejectedError{Provider: types.ProviderEfi, Reason: providers.RejectReasonNotFound, Message: "pix not found"}
	case status >= 400 && status < 500:
		var apiErr apiError
		_ = json.Unmarshal(respBody, &apiErr)
		reason := providers.RejectReasonDeclined
		if strings.Contains(strings.ToLower(apiErr.code()+apiErr.message()), "prazo") {
			reason = providers.RejectReasonWindowExpired
		}
		return nil, &providers.RejectedError{Provider: types.ProviderEfi, Reason: reason, Code: apiErr.code(), Message: apiErr.message()}
	default:
		return nil, &providers.UnavailableError{Provider: types.ProviderEfi, Err: fmt.Errorf("devolution failed with status %d", status)}
	}
}
