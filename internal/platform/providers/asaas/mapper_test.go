package asaas

import (
	"testing"

	"github.com/brisapay/gateway/internal/platform/providers"
	"github.com/brisapay/gateway/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBuildPaymentBody_Pix(t *testing.T) {
	body, err := BuildPaymentBody(&providers.ChargeRequest{
		TransactionID: "txn-1",
		Amount:        decimal.NewFromFloat(150.75),
		Kind:          types.PaymentKindPix,
		Description:   "order 42",
	}, "2026-08-28")
	require.NoError(t, err)
	require.Equal(t, "PIX", body.BillingType)
	require.Equal(t, 150.75, body.Value)
	require.Equal(t, "txn-1", body.ExternalReference)
	require.Equal(t, "2026-08-28", body.DueDate)
	require.Nil(t, body.CreditCard)
}

func TestBuildPaymentBody_CreditCardPadsExpiryMonth(t *testing.T) {
	body, err := BuildPaymentBody(&providers.ChargeRequest{
		TransactionID: "txn-2",
		Amount:        decimal.NewFromFloat(50),
		Kind:          types.PaymentKindCreditCard,
		Installments:  6,
		Card: &providers.CardFields{
			Number:     "5448280000000007",
			HolderName: "JOAO SILVA",
			ExpMonth:   3,
			ExpYear:    2030,
			CVV:        "123",
		},
	}, "2026-08-28")
	require.NoError(t, err)
	require.Equal(t, "CREDIT_CARD", body.BillingType)
	require.NotNil(t, body.CreditCard)
	require.Equal(t, "03", body.CreditCard.ExpiryMonth)
	require.Equal(t, "2030", body.CreditCard.ExpiryYear)
	require.Equal(t, 6, body.InstallmentCount)
}

func TestBuildPaymentBody_SingleInstallmentOmitted(t *testing.T) {
	body, err := BuildPaymentBody(&providers.ChargeRequest{
		TransactionID: "txn-3",
		Amount:        decimal.NewFromFloat(10),
		Kind:          types.PaymentKindCreditCard,
		Installments:  1,
		Card: &providers.CardFields{
			Number: "5448280000000007", HolderName: "A", ExpMonth: 1, ExpYear: 2030, CVV: "999",
		},
	}, "2026-08-28")
	require.NoError(t, err)
	require.Zero(t, body.InstallmentCount)
}

func TestBuildPaymentBody_CardRequiredForCreditCard(t *testing.T) {
	_, err := BuildPaymentBody(&providers.ChargeRequest{
		TransactionID: "txn-4",
		Amount:        decimal.NewFromFloat(10),
		Kind:          types.PaymentKindCreditCard,
	}, "2026-08-28")
	require.Error(t, err)
	require.True(t, providers.IsValidation(err))
}

func TestMapStatus(t *testing.T) {
	require.Equal(t, providers.StatusApproved, MapStatus("RECEIVED"))
	require.Equal(t, providers.StatusApproved, MapStatus("CONFIRMED"))
	require.Equal(t, providers.StatusCanceled, MapStatus("REFUNDED"))
	require.Equal(t, providers.StatusCanceled, MapStatus("REFUNDED_PARTIAL"))
	require.Equal(t, providers.StatusCanceled, MapStatus("REFUND_REQUESTED"))
	require.Equal(t, providers.StatusPending, MapStatus("PENDING"))
	require.Equal(t, providers.StatusPending, MapStatus("AWAITING_RISK_ANALYSIS"))
}
