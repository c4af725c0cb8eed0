package types

// Provider identifies an external payment integration.
type Provider string

const (
	// ProviderEfi is the bank-style Pix provider (Efí / Gerencianet Pix API,
	// mTLS OAuth, cob/cobv charges).
	ProviderEfi Provider = "efi"
	// ProviderAsaas is the generic PSP, usable for both Pix and credit card.
	ProviderAsaas Provider = "asaas"
	// ProviderRede is the card acquirer (e-Rede).
	ProviderRede Provider = "rede"
)

// ValidForPix reports whether the provider can process Pix charges.
func (p Provider) ValidForPix() bool {
	return p == ProviderEfi || p == ProviderAsaas
}

// ValidForCredit reports whether the provider can process credit-card charges.
func (p Provider) ValidForCredit() bool {
	return p == ProviderRede || p == ProviderAsaas
}

const (
	DefaultPixProvider    = ProviderEfi
	DefaultCreditProvider = ProviderRede
)

type PaymentKind string

const (
	PaymentKindPix        PaymentKind = "pix"
	PaymentKindCreditCard PaymentKind = "credit_card"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusCanceled PaymentStatus = "canceled"
)

// Terminal reports whether the status admits no further automatic
// transition. The only manual exception is approved → canceled via refund.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusApproved, PaymentStatusFailed, PaymentStatusCanceled:
		return true
	}
	return false
}
