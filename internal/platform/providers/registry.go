package providers

import (
	"fmt"

	"github.com/brisapay/gateway/pkg/types"
)

// Registry resolves a provider enum to its client once per request, instead
// of string-switching at every branch.
type Registry struct {
	byProvider map[types.Provider]Client
}

func NewRegistry(clients ...Client) *Registry {
	r := &Registry{byProvider: make(map[types.Provider]Client, len(clients))}
	for _, c := range clients {
		r.byProvider[c.Provider()] = c
	}
	return r
}

func (r *Registry) Get(p types.Provider) (Client, error) {
	c, ok := r.byProvider[p]
	if !ok {
		return nil, fmt.Errorf("no client registered for provider %q", p)
	}
	return c, nil
}
