package providers

import (
	"context"
	"crypto/tls"
)

// EfiCredentials is the OAuth client pair plus the company's receiving pix
// key.
type EfiCredentials struct {
	ClientID     string
	ClientSecret string
	PixKey       string
}

type AsaasCredentials struct {
	APIKey string
}

type RedeCredentials struct {
	MerchantID     string
	IntegrationKey string
}

// CredentialStore supplies per-company provider credentials. Read-only from
// the clients' perspective; the surrounding system manages writes.
type CredentialStore interface {
	Efi(ctx context.Context, companyID string) (*EfiCredentials, error)
	Asaas(ctx context.Context, companyID string) (*AsaasCredentials, error)
	Rede(ctx context.Context, companyID string) (*RedeCredentials, error)
}

// CertificateStore supplies per-company mTLS client certificates. Material
// is loaded once and cached by the implementation, not re-fetched per call.
type CertificateStore interface {
	ClientCertificate(ctx context.Context, companyID string) (*tls.Certificate, error)
}
