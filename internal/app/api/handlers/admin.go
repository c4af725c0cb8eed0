package handlers

import (
	"net/http"

	"github.com/brisapay/gateway/internal/app/service/payments"
	"github.com/brisapay/gateway/internal/app/store"
	"github.com/brisapay/gateway/pkg/response"
	"github.com/gin-gonic/gin"
)

// @Summary      Scan payments
// @Description  Lists payments matching the given filters, paginated. Operator surface.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body store.ScanRequest true "Scan filters and pagination"
// @Success      200  {object}  handlers.RespScanPayments
// @Router       /api/v1/admin/payments/scan [post]
func ApiScanPayments(mgr payments.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req store.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.Size <= 0 || req.Size > 200 {
			req.Size = 50
		}

		res, err := mgr.Scan(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, mgr payments.Manager) {
	r.POST("/payments/scan", ApiScanPayments(mgr))
}
