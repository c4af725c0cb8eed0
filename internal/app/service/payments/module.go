package payments

import "go.uber.org/fx"

// Module exposes the payment orchestrator via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(func(s *Service) Manager { return s }),
)
