package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/brisapay/gateway/internal/app/service/notification_log"
	"github.com/brisapay/gateway/internal/app/service/payments"
	"github.com/brisapay/gateway/internal/app/store"
	"github.com/brisapay/gateway/internal/models"
	"github.com/brisapay/gateway/pkg/logctx"
	"github.com/brisapay/gateway/pkg/response"
	"github.com/brisapay/gateway/pkg/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// efiWebhookBody is the Pix settlement callback shape: a batch of settled
// pix items, each carrying the charge txid.
type efiWebhookBody struct {
	Pix []struct {
		Txid       string `json:"txid"`
		EndToEndID string `json:"endToEndId"`
		Valor      string `json:"valor"`
		Horario    string `json:"horario"`
	} `json:"pix"`
}

// asaasWebhookBody is the Asaas event callback shape.
type asaasWebhookBody struct {
	Event   string `json:"event"`
	Payment struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
}

func logNotification(logSvc *notification_log.Service, c *gin.Context, provider types.Provider, nativeID string, raw []byte, handleErr error) {
	status := models.ProviderNotificationLogStatusHandled
	if handleErr != nil {
		status = models.ProviderNotificationLogStatusHandleFailed
	}
	entry := &models.ProviderNotificationLog{
		Provider:         string(provider),
		ProviderNativeID: nativeID,
		NotificationTime: time.Now(),
		Data:             raw,
		Status:           status,
	}
	if tid, ok := c.Get("traceID"); ok {
		if s, ok := tid.(string); ok {
			entry.TraceID = s
		}
	}
	logSvc.Save(c.Request.Context(), entry)
}

// @Summary      Efí Pix webhook
// @Description  Receives Pix settlement notifications from Efí. Unknown txids are acknowledged so the provider stops retrying.
// @Tags         ProviderWebhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /webhooks/efi [post]
func ApiEfiWebhook(mgr payments.Manager, logSvc *notification_log.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		l := logctx.FromGin(c, log)
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "unreadable body"))
			return
		}
		var body efiWebhookBody
		if err := json.Unmarshal(raw, &body); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "unparseable body"))
			return
		}

		for _, pix := range body.Pix {
			if pix.Txid == "" {
				continue
			}
			// A pix item in the callback means money landed on the charge.
			err := mgr.FinalizeFromProvider(c.Request.Context(), types.ProviderEfi, pix.Txid, types.PaymentStatusApproved, raw)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				l.Errorw("efi webhook handling failed", "txid", pix.Txid, "error", err)
			}
			logNotification(logSvc, c, types.ProviderEfi, pix.Txid, raw, err)
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// asaasEventStatus maps the event name to a terminal status; empty means
// the event is not one we act on.
func asaasEventStatus(event string) types.PaymentStatus {
	switch event {
	case "PAYMENT_RECEIVED", "PAYMENT_CONFIRMED":
		return types.PaymentStatusApproved
	case "PAYMENT_REFUNDED":
		return types.PaymentStatusCanceled
	default:
		return ""
	}
}

// @Summary      Asaas webhook
// @Description  Receives payment event notifications from Asaas. Events outside the handled set are acknowledged and logged.
// @Tags         ProviderWebhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /webhooks/asaas [post]
func ApiAsaasWebhook(mgr payments.Manager, logSvc *notification_log.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		l := logctx.FromGin(c, log)
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "unreadable body"))
			return
		}
		var body asaasWebhookBody
		if err := json.Unmarshal(raw, &body); err != nil || body.Payment.ID == "" {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "unparseable body"))
			return
		}

		status := asaasEventStatus(body.Event)
		if status == "" {
			l.Infow("asaas webhook event ignored", "event", body.Event, "payment_id", body.Payment.ID)
			logNotification(logSvc, c, types.ProviderAsaas, body.Payment.ID, raw, nil)
			c.JSON(http.StatusOK, response.OKT[any](nil))
			return
		}

		handleErr := mgr.FinalizeFromProvider(c.Request.Context(), types.ProviderAsaas, body.Payment.ID, status, raw)
		if handleErr != nil && !errors.Is(handleErr, store.ErrNotFound) {
			l.Errorw("asaas webhook handling failed", "payment_id", body.Payment.ID, "event", body.Event, "error", handleErr)
		}
		logNotification(logSvc, c, types.ProviderAsaas, body.Payment.ID, raw, handleErr)
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterProviderWebhookRoutes(r gin.IRouter, mgr payments.Manager, logSvc *notification_log.Service, log *zap.SugaredLogger) {
	r.POST("/efi", ApiEfiWebhook(mgr, logSvc, log))
	r.POST("/asaas", ApiAsaasWebhook(mgr, logSvc, log))
}
