package rede

import (
	"github.com/brisapay/gateway/internal/platform/providers"
	"github.com/shopspring/decimal"
)

// AmountCents converts a decimal amount to integer cents, rounding half up.
func AmountCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

type transactionBody struct {
	Capture         bool   `json:"capture"`
	Kind            string `json:"kind"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Installments    int    `json:"installments"`
	CardholderName  string `json:"cardholderName"`
	CardNumber      string `json:"cardNumber"`
	ExpirationMonth int    `json:"expirationMonth"`
	ExpirationYear  int    `json:"expirationYear"`
	SecurityCode    string `json:"securityCode"`
}

// BuildTransactionBody validates the card material and builds the
// /v2/transactions body. Amounts go over the wire as integer cents.
func BuildTransactionBody(req *providers.ChargeRequest) (*transactionBody, error) {
	if !req.Amount.IsPositive() {
		return nil, providers.NewValidationError("amount", "must be greater than zero")
	}
	if req.Card == nil {
		return nil, providers.NewValidationError("card", "card fields are required")
	}
	card := req.Card
	if card.Number == "" {
		return nil, providers.NewValidationError("card.number", "is required")
	}
	if card.HolderName == "" {
		return nil, providers.NewValidationError("card.holder_name", "is required")
	}
	if card.ExpMonth < 1 || card.ExpMonth > 12 {
		return nil, providers.NewValidationError("card.exp_month", "must be between 1 and 12")
	}
	if card.ExpYear < 2000 {
		return nil, providers.NewValidationError("card.exp_year", "must be a four digit year")
	}
	if card.CVV == "" {
		return nil, providers.NewValidationError("card.cvv", "is required")
	}

	installments := req.Installments
	if installments < 1 {
		installments = 1
	}
	return &transactionBody{
		Capture:         true,
		Kind:            "credit",
		Reference:       req.TransactionID,
		Amount:          AmountCents(req.Amount),
		Installments:    installments,
		CardholderName:  card.HolderName,
		CardNumber:      card.Number,
		ExpirationMonth: card.ExpMonth,
		ExpirationYear:  card.ExpYear,
		SecurityCode:    card.CVV,
	}, nil
}
