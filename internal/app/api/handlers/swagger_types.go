package handlers

import (
	"encoding/json"

	"github.com/brisapay/gateway/internal/models"
	"github.com/brisapay/gateway/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// PaymentView is the payment row plus per-request creation metadata.
type PaymentView struct {
	*models.Payment
	AlreadyProcessed bool   `json:"already_processed,omitempty"`
	ReturnCode       string `json:"return_code,omitempty"`
	ReturnMessage    string `json:"return_message,omitempty"`
}

// RespPayment wraps PaymentView in the standard envelope.
type RespPayment struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    PaymentView              `json:"data"`
}

// RespScanPayments wraps a payment listing in the standard envelope.
type RespScanPayments struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    struct {
		Items []*models.Payment `json:"items"`
		Total int64             `json:"total"`
	} `json:"data"`
}

// marshalOpaque serializes a free-form JSON object, returning nil on empty
// input so the column default applies.
func marshalOpaque(m map[string]any) json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}
