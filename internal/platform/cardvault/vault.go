// Package cardvault resolves card tokens to raw card material. Card data
// never touches the payment row; it lives only long enough to build the
// provider request.
package cardvault

import (
	"context"
	"fmt"
	"sync"
)

// ErrTokenNotFound is returned when a token has no stored card behind it.
var ErrTokenNotFound = fmt.Errorf("cardvault: token not found")

type Vault interface {
	// Resolve returns the raw card fields stored under a token.
	Resolve(ctx context.Context, companyID, token string) (map[string]any, error)
	// Store saves card fields under a token for later resolution.
	Store(ctx context.Context, companyID, token string, fields map[string]any) error
}

// MemoryVault keeps tokenized cards in process memory, keyed per company.
type MemoryVault struct {
	mu    sync.RWMutex
	cards map[string]map[string]any
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{cards: make(map[string]map[string]any)}
}

func key(companyID, token string) string {
	return companyID + "/" + token
}

func (v *MemoryVault) Resolve(_ context.Context, companyID, token string) (map[string]any, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	fields, ok := v.cards[key(companyID, token)]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return fields, nil
}

func (v *MemoryVault) Store(_ context.Context, companyID, token string, fields map[string]any) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cards[key(companyID, token)] = fields
	return nil
}
