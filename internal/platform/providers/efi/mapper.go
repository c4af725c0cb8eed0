package efi

import (
	"github.com/brisapay/gateway/internal/platform/providers"
	"github.com/shopspring/decimal"
)

// QR codes expire after an hour; the charge itself stays queryable.
const chargeExpirationSeconds = 3600

// FormatAmount renders the charge amount the way the Pix API expects it: a
// decimal string with exactly two places, rounded half-up.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// BuildChargeBody translates the canonical charge into a cob request body.
// Pure: validation failures surface before any network I/O.
func BuildChargeBody(req *providers.ChargeRequest) (map[string]any, error) {
	if req == nil {
		return nil, providers.NewValidationError("", "nil charge request")
	}
	if req.PixKey == "" {
		return nil, providers.NewValidationError("chave", "is required for pix charges")
	}
	if req.Txid == "" {
		return nil, providers.NewValidationError("txid", "is required for pix charges")
	}
	if !req.Amount.IsPositive() {
		return nil, providers.NewValidationError("valor", "must be greater than zero")
	}

	body := map[string]any{
		"calendario": map[string]any{"expiracao": chargeExpirationSeconds},
		"chave":      req.PixKey,
		"valor":      map[string]any{"original": FormatAmount(req.Amount)},
	}
	if req.Description != "" {
		body["solicitacaoPagador"] = req.Description
	}
	if req.PayerName != "" && req.PayerTaxID != "" {
		devedor := map[string]any{"nome": req.PayerName}
		if len(req.PayerTaxID) > 11 {
			devedor["cnpj"] = req.PayerTaxID
		} else {
			devedor["cpf"] = req.PayerTaxID
		}
		body["devedor"] = devedor
	}
	return body, nil
}
