package app

import (
	"github.com/brisapay/gateway/internal/platform/cardvault"
	"github.com/brisapay/gateway/internal/platform/certstore"
	"github.com/brisapay/gateway/internal/platform/providers"
	"github.com/brisapay/gateway/internal/platform/providers/asaas"
	"github.com/brisapay/gateway/internal/platform/providers/efi"
	"github.com/brisapay/gateway/internal/platform/providers/rede"
	cfgpkg "github.com/brisapay/gateway/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newCertificateStore(cfg *cfgpkg.Config) providers.CertificateStore {
	return certstore.New(cfg.Certificates.Dir)
}

func newCardVault() cardvault.Vault {
	return cardvault.NewMemoryVault()
}

func newEfiClient(cfg *cfgpkg.Config, creds providers.CredentialStore, certs providers.CertificateStore, log *zap.SugaredLogger) *efi.Client {
	return efi.NewClient(efi.Options{
		BaseURL:  cfg.Providers.Efi.BaseURL,
		TokenTTL: cfg.Providers.Efi.TokenTTL,
	}, creds, certs, log)
}

func newAsaasClient(cfg *cfgpkg.Config, creds providers.CredentialStore, log *zap.SugaredLogger) *asaas.Client {
	return asaas.NewClient(asaas.Options{BaseURL: cfg.Providers.Asaas.BaseURL}, creds, log)
}

func newRedeClient(cfg *cfgpkg.Config, creds providers.CredentialStore, log *zap.SugaredLogger) *rede.Client {
	return rede.NewClient(rede.Options{BaseURL: cfg.Providers.Rede.BaseURL}, creds, log)
}

func newRegistry(e *efi.Client, a *asaas.Client, r *rede.Client) *providers.Registry {
	return providers.NewRegistry(e, a, r)
}

// providersModule wires the provider clients and their shared stores.
var providersModule = fx.Options(
	fx.Provide(newCertificateStore),
	fx.Provide(newCardVault),
	fx.Provide(newEfiClient),
	fx.Provide(newAsaasClient),
	fx.Provide(newRedeClient),
	fx.Provide(newRegistry),
)
