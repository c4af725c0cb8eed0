package store

import "go.uber.org/fx"

// Module exposes the stores via Fx.
var Module = fx.Options(
	fx.Provide(NewPaymentStore),
	fx.Provide(NewCompanyStore),
	fx.Provide(NewCredentialStore),
)
