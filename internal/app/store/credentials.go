package store

import (
	"context"
	"fmt"

	"github.com/brisapay/gateway/internal/platform/providers"
)

// companyCredentials adapts CompanyStore to the per-provider credential
// lookups the clients need. A company missing the fields for a provider
// gets an error naming the gap rather than empty credentials.
type companyCredentials struct {
	companies CompanyStore
}

func NewCredentialStore(companies CompanyStore) providers.CredentialStore {
	return &companyCredentials{companies: companies}
}

func (s *companyCredentials) Efi(ctx context.Context, companyID string) (*providers.EfiCredentials, error) {
	c, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c.EfiClientID == nil || c.EfiClientSecret == nil {
		return nil, fmt.Errorf("company %s has no efi credentials", companyID)
	}
	cred := &providers.EfiCredentials{
		ClientID:     *c.EfiClientID,
		ClientSecret: *c.EfiClientSecret,
	}
	if c.PixKey != nil {
		cred.PixKey = *c.PixKey
	}
	return cred, nil
}

func (s *companyCredentials) Asaas(ctx context.Context, companyID string) (*providers.AsaasCredentials, error) {
	c, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c.AsaasAPIKey == nil {
		return nil, fmt.Errorf("company %s has no asaas credentials", companyID)
	}
	return &providers.AsaasCredentials{APIKey: *c.AsaasAPIKey}, nil
}

func (s *companyCredentials) Rede(ctx context.Context, companyID string) (*providers.RedeCredentials, error) {
	c, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c.RedeMerchantID == nil || c.RedeIntegrationKey == nil {
		return nil, fmt.Errorf("company %s has no rede credentials", companyID)
	}
	return &providers.RedeCredentials{
		MerchantID:     *c.RedeMerchantID,
		IntegrationKey: *c.RedeIntegrationKey,
	}, nil
}
