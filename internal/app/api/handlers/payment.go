package handlers

import (
	"errors"
	"net/http"

	"github.com/brisapay/gateway/internal/app/api/middleware"
	"github.com/brisapay/gateway/internal/app/service/payments"
	"github.com/brisapay/gateway/internal/app/store"
	"github.com/brisapay/gateway/internal/platform/providers"
	"github.com/brisapay/gateway/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createPixRequest struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Description   string          `json:"description"`
	WebhookURL    string          `json:"webhook_url"`
	PayerName     string          `json:"payer_name"`
	PayerTaxID    string          `json:"payer_tax_id"`
	DataMarketing map[string]any  `json:"data_marketing"`
}

type createCardRequest struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Description   string          `json:"description"`
	WebhookURL    string          `json:"webhook_url"`
	Installments  int             `json:"installments"`
	CardToken     string          `json:"card_token"`
	Card          map[string]any  `json:"card"`
	DataMarketing map[string]any  `json:"data_marketing"`
}

func companyID(c *gin.Context) (string, bool) {
	id := c.GetHeader(middleware.CompanyIDHeader)
	if id == "" {
		c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing X-Company-ID header"))
		return "", false
	}
	return id, true
}

// writeCreateResult translates the orchestrator outcome to HTTP. Replays
// and first-time creations share the same shape; the payment row is the
// contract either way.
func writeCreateResult(c *gin.Context, res *payments.CreateResult) {
	c.JSON(http.StatusOK, response.OKT(PaymentView{
		Payment:          res.Payment,
		AlreadyProcessed: res.AlreadyProcessed,
		ReturnCode:       res.ReturnCode,
		ReturnMessage:    res.ReturnMessage,
	}))
}

func writeCreateError(c *gin.Context, err error) {
	switch {
	case providers.IsValidation(err):
		c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeNotFound, "company not found"))
	case errors.Is(err, payments.ErrUnsupportedProvider):
		c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
	case errors.Is(err, payments.ErrGatewayInconsistent):
		c.JSON(http.StatusBadGateway, response.ErrorT[any](response.APIResponseCodeUpstream, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
	}
}

// @Summary      Create Pix payment
// @Description  Creates a Pix charge routed through the company's configured provider. Idempotent on transaction_id.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        X-Company-ID  header  string            true  "Company identifier"
// @Param        request       body    createPixRequest  true  "Pix charge request"
// @Success      200  {object}  handlers.RespPayment
// @Router       /api/v1/payments/pix [post]
func ApiCreatePixPayment(mgr payments.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, ok := companyID(c)
		if !ok {
			return
		}
		var req createPixRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := mgr.CreatePixPayment(c.Request.Context(), &payments.CreatePixRequest{
			CompanyID:     cid,
			TransactionID: req.TransactionID,
			Amount:        req.Amount,
			Description:   req.Description,
			WebhookURL:    req.WebhookURL,
			PayerName:     req.PayerName,
			PayerTaxID:    req.PayerTaxID,
			DataMarketing: marshalOpaque(req.DataMarketing),
		})
		if err != nil {
			writeCreateError(c, err)
			return
		}
		writeCreateResult(c, res)
	}
}

// @Summary      Create credit card payment
// @Description  Authorizes and captures a card charge synchronously. Card material is accepted as a vault token or raw fields and is never persisted.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        X-Company-ID  header  string             true  "Company identifier"
// @Param        request       body    createCardRequest  true  "Card charge request"
// @Success      200  {object}  handlers.RespPayment
// @Router       /api/v1/payments/credit-card [post]
func ApiCreateCreditCardPayment(mgr payments.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, ok := companyID(c)
		if !ok {
			return
		}
		var req createCardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := mgr.CreateCreditCardPayment(c.Request.Context(), &payments.CreateCardRequest{
			CompanyID:     cid,
			TransactionID: req.TransactionID,
			Amount:        req.Amount,
			Description:   req.Description,
			WebhookURL:    req.WebhookURL,
			Installments:  req.Installments,
			CardToken:     req.CardToken,
			Card:          req.Card,
			DataMarketing: marshalOpaque(req.DataMarketing),
		})
		if err != nil {
			writeCreateError(c, err)
			return
		}
		writeCreateResult(c, res)
	}
}

// @Summary      Get payment
// @Description  Returns the current payment state. Subscribers without a webhook URL reconcile through this endpoint.
// @Tags         Payment
// @Produce      json
// @Param        X-Company-ID    header  string  true  "Company identifier"
// @Param        transaction_id  path    string  true  "Transaction identifier"
// @Success      200  {object}  handlers.RespPayment
// @Router       /api/v1/payments/{transaction_id} [get]
func ApiGetPayment(mgr payments.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, ok := companyID(c)
		if !ok {
			return
		}
		payment, err := mgr.GetPayment(c.Request.Context(), cid, c.Param("transaction_id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeNotFound, "payment not found"))
				return
			}
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(PaymentView{Payment: payment}))
	}
}

func RegisterPaymentRoutes(r gin.IRouter, mgr payments.Manager) {
	r.POST("/payments/pix", ApiCreatePixPayment(mgr))
	r.POST("/payments/credit-card", ApiCreateCreditCardPayment(mgr))
	r.GET("/payments/:transaction_id", ApiGetPayment(mgr))
}
