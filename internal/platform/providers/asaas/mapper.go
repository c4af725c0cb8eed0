package asaas

import (
	"fmt"

	"github.com/brisapay/gateway/internal/platform/providers"
	"github.com/brisapay/gateway/pkg/types"
)

type creditCardBody struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CCV         string `json:"ccv"`
}

type paymentBody struct {
	Customer          string          `json:"customer,omitempty"`
	BillingType       string          `json:"billingType"`
	Value             float64         `json:"value"`
	DueDate           string          `json:"dueDate"`
	Description       string          `json:"description,omitempty"`
	ExternalReference string          `json:"externalReference"`
	InstallmentCount  int             `json:"installmentCount,omitempty"`
	CreditCard        *creditCardBody `json:"creditCard,omitempty"`
}

// BuildPaymentBody validates the request and builds the /v3/payments body.
// Asaas takes amounts as decimal numbers, never integer cents.
func BuildPaymentBody(req *providers.ChargeRequest, dueDate string) (*paymentBody, error) {
	if !req.Amount.IsPositive() {
		return nil, providers.NewValidationError("amount", "must be greater than zero")
	}
	body := &paymentBody{
		Value:             req.Amount.Round(2).InexactFloat64(),
		DueDate:           dueDate,
		Description:       req.Description,
		ExternalReference: req.TransactionID,
	}

	switch req.Kind {
	case types.PaymentKindPix:
		body.BillingType = "PIX"
	case types.PaymentKindCreditCard:
		body.BillingType = "CREDIT_CARD"
		if req.Card == nil {
			return nil, providers.NewValidationError("card", "card fields are required")
		}
		body.CreditCard = &creditCardBody{
			HolderName:  req.Card.HolderName,
			Number:      req.Card.Number,
			ExpiryMonth: fmt.Sprintf("%02d", req.Card.ExpMonth),
			ExpiryYear:  fmt.Sprintf("%d", req.Card.ExpYear),
			CCV:         req.Card.CVV,
		}
		if req.Installments > 1 {
			body.InstallmentCount = req.Installments
		}
	default:
		return nil, providers.NewValidationError("kind", "unsupported payment kind")
	}
	return body, nil
}

// MapStatus converts an Asaas payment status to ours. RECEIVED and
// CONFIRMED both mean the money is good; refund statuses land on canceled.
func MapStatus(s string) providers.Status {
	switch s {
	case "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH":
		return providers.StatusApproved
	case "REFUNDED", "REFUNDED_PARTIAL", "REFUND_REQUESTED", "REFUND_IN_PROGRESS":
		return providers.StatusCanceled
	default:
		return providers.StatusPending
	}
}
