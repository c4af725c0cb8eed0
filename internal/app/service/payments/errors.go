package payments

import "errors"

var (
	// ErrGatewayInconsistent means the provider gave an answer we could not
	// interpret. The payment stays pending; the poller or an operator sorts
	// it out.
	ErrGatewayInconsistent = errors.New("provider response inconsistent")

	// ErrUnsupportedProvider means the company's configured provider cannot
	// process the requested payment kind.
	ErrUnsupportedProvider = errors.New("provider does not support this payment kind")
)
