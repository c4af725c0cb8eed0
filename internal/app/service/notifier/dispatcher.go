// Package notifier delivers status webhooks to subscriber endpoints.
// Delivery is single-shot, fire and forget: one POST, one log line, one
// delivery row. Subscribers that need certainty reconcile via the status
// endpoint.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/brisapay/gateway/internal/app/store"
	"github.com/brisapay/gateway/internal/models"
	"github.com/brisapay/gateway/pkg/logctx"
	"github.com/brisapay/gateway/pkg/metrics"
	"github.com/brisapay/gateway/pkg/tool"
	"github.com/brisapay/gateway/pkg/types"
	"github.com/samber/lo"

	"github.com/golang-jwt/jwt"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const deliveryTimeout = 5 * time.Second

// Event is the payload POSTed to the subscriber's webhook URL.
type Event struct {
	TransactionID string              `json:"transaction_id"`
	Status        types.PaymentStatus `json:"status"`
	Provider      types.Provider      `json:"provider"`
	Txid          string              `json:"txid,omitempty"`
	Payload       json.RawMessage     `json:"payload,omitempty"`
	DataMarketing json.RawMessage     `json:"data_marketing,omitempty"`
}

type Dispatcher struct {
	// Client is overridable for tests; defaults to a 5s timeout client.
	Client    *http.Client
	db        *gorm.DB
	companies store.CompanyStore
	log       *zap.SugaredLogger
}

func New(db *gorm.DB, companies store.CompanyStore, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		Client:    &http.Client{Timeout: deliveryTimeout},
		db:        db,
		companies: companies,
		log:       log,
	}
}

// Notify delivers one event. It never returns an error: a failed delivery
// is logged and recorded, and the payment state is unaffected either way.
func (d *Dispatcher) Notify(ctx context.Context, companyID, url string, evt *Event) {
	if url == "" {
		return
	}
	l := logctx.FromCtx(ctx, d.log)

	body, err := json.Marshal(evt)
	if err != nil {
		l.Errorw("webhook payload marshal failed", "transaction_id", evt.TransactionID, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		l.Errorw("webhook request build failed", "transaction_id", evt.TransactionID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	if sig := d.signature(ctx, companyID, evt); sig != "" {
		req.Header.Set("X-Signature", sig)
	}

	resp, err := d.Client.Do(req)
	outcome := "delivered"
	var deliveryErr *string
	if err != nil {
		outcome = "failed"
		deliveryErr = lo.ToPtr(err.Error())
		l.Warnw("webhook delivery failed", "transaction_id", evt.TransactionID, "url", url, "error", err)
	} else {
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			outcome = "failed"
			deliveryErr = lo.ToPtr(http.StatusText(resp.StatusCode))
			l.Warnw("webhook delivery rejected", "transaction_id", evt.TransactionID, "url", url, "status", resp.StatusCode)
		} else {
			l.Infow("webhook delivered", "transaction_id", evt.TransactionID, "url", url, "status", evt.Status)
		}
	}
	metrics.WebhookDeliveries.WithLabelValues(outcome).Inc()

	d.record(ctx, companyID, url, evt, body, outcome, deliveryErr)
}

// signature builds an HS256 JWT over the event claims when the company has
// a webhook secret configured. No secret means no header.
func (d *Dispatcher) signature(ctx context.Context, companyID string, evt *Event) string {
	if d.companies == nil {
		return ""
	}
	company, err := d.companies.Get(ctx, companyID)
	if err != nil || company.WebhookSecret == nil || *company.WebhookSecret == "" {
		return ""
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"transaction_id": evt.TransactionID,
		"status":         string(evt.Status),
		"iat":            time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte(*company.WebhookSecret))
	if err != nil {
		logctx.FromCtx(ctx, d.log).Errorw("webhook signature failed", "company_id", companyID, "error", err)
		return ""
	}
	return signed
}

func (d *Dispatcher) record(ctx context.Context, companyID, url string, evt *Event, body []byte, outcome string, deliveryErr *string) {
	if d.db == nil {
		return
	}
	status := models.WebhookDeliveryStatusDelivered
	if outcome != "delivered" {
		status = models.WebhookDeliveryStatusFailed
	}
	row := &models.WebhookDelivery{
		ID:            tool.GenerateUUIDV7(),
		CompanyID:     companyID,
		TransactionID: evt.TransactionID,
		URL:           url,
		Payload:       body,
		Status:        status,
		Error:         deliveryErr,
	}
	go func() {
		if err := d.db.Create(row).Error; err != nil {
			logctx.FromCtx(ctx, d.log).Errorf("failed to save webhook delivery: %v", err)
		}
	}()
}

// Module exposes the dispatcher via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
