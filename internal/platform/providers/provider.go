package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brisapay/gateway/pkg/types"
	"github.com/shopspring/decimal"
)

// Status is the normalized provider-side charge status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusFailed || s == StatusCanceled
}

// PaymentStatus converts to the payment lifecycle vocabulary.
func (s Status) PaymentStatus() types.PaymentStatus {
	switch s {
	case StatusApproved:
		return types.PaymentStatusApproved
	case StatusFailed:
		return types.PaymentStatusFailed
	case StatusCanceled:
		return types.PaymentStatusCanceled
	default:
		return types.PaymentStatusPending
	}
}

// Result is the normalized union every client call returns.
type Result struct {
	Status Status
	// NativeID is the provider's identifier for the charge.
	NativeID string

	// Pix display payload, set on pix charge creation.
	PixCopyPaste string
	QRCodeImage  string
	// RefundableUntil is the provider-reported refund deadline, when the
	// provider reports one at charge creation.
	RefundableUntil *time.Time

	// Acquirer return code/message on business declines.
	ReturnCode    string
	ReturnMessage string

	// Raw is the provider response body, passed through to webhooks.
	Raw json.RawMessage
}

// CardFields is normalized card material: number as digit string, expiry
// month/year as integers.
type CardFields struct {
	Number     string
	HolderName string
	ExpMonth   int
	ExpYear    int
	CVV        string
}

// ChargeRequest is the canonical charge handed to a client. Each provider's
// mapper translates it to the wire format, including its own amount
// representation rule.
type ChargeRequest struct {
	TransactionID string
	// Txid is the caller-assigned pix txid for providers that require one.
	Txid   string
	Amount decimal.Decimal
	Kind   types.PaymentKind

	PixKey      string
	Description string

	PayerName  string
	PayerTaxID string

	Installments int
	Card         *CardFields
}

// Client is the uniform surface over the provider integrations. Timeouts
// and the creation/token retry policy live behind this interface; callers
// never re-derive them.
type Client interface {
	Provider() types.Provider
	// CreateCharge creates the charge. A nil error with a terminal Result
	// status means the provider answered synchronously; StatusPending means
	// settlement is asynchronous and needs polling or a provider webhook.
	CreateCharge(ctx context.Context, companyID string, req *ChargeRequest) (*Result, error)
	// GetStatus fetches the current charge status by provider-native id.
	GetStatus(ctx context.Context, companyID, nativeID string) (*Result, error)
	// CreateRefund refunds the full charge amount. Never retried.
	CreateRefund(ctx context.Context, companyID, nativeID string) (*Result, error)
}
