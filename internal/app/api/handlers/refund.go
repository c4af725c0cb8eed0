package handlers

import (
	"errors"
	"net/http"

	"github.com/brisapay/gateway/internal/app/service/refunds"
	"github.com/brisapay/gateway/internal/app/store"
	"github.com/brisapay/gateway/pkg/response"
	"github.com/brisapay/gateway/pkg/types"
	"github.com/gin-gonic/gin"
)

type refundResponse struct {
	Payment  PaymentView    `json:"payment"`
	Provider types.Provider `json:"provider"`
}

// @Summary      Refund payment
// @Description  Refunds the full amount of an approved payment inside the refund window. Pix refunds may fall back to the secondary provider.
// @Tags         Payment
// @Produce      json
// @Param        X-Company-ID    header  string  true  "Company identifier"
// @Param        transaction_id  path    string  true  "Transaction identifier"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/payments/{transaction_id}/refund [post]
func ApiRefundPayment(svc *refunds.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, ok := companyID(c)
		if !ok {
			return
		}

		res, err := svc.Refund(c.Request.Context(), cid, c.Param("transaction_id"))
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeNotFound, "payment not found"))
			case errors.Is(err, refunds.ErrNotRefundable),
				errors.Is(err, refunds.ErrWindowExpired),
				errors.Is(err, refunds.ErrMissingNativeID):
				c.JSON(http.StatusConflict, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			case errors.Is(err, refunds.ErrRefundFailed):
				c.JSON(http.StatusBadGateway, response.ErrorT[any](response.APIResponseCodeUpstream, err.Error()))
			default:
				c.JSON(http.StatusBadGateway, response.ErrorT[any](response.APIResponseCodeUpstream, err.Error()))
			}
			return
		}

		c.JSON(http.StatusOK, response.OKT(refundResponse{
			Payment:  PaymentView{Payment: res.Payment},
			Provider: res.Provider,
		}))
	}
}

func RegisterRefundRoutes(r gin.IRouter, svc *refunds.Service) {
	r.POST("/payments/:transaction_id/refund", ApiRefundPayment(svc))
}
