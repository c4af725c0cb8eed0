// Package certstore loads per-company mTLS client certificates from disk.
package certstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"
)

// Store caches certificates after the first load. Files are named
// <companyID>.pem and <companyID>.key under the configured directory.
type Store struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*tls.Certificate
}

func New(dir string) *Store {
	return &Store{dir: dir, cache: make(map[string]*tls.Certificate)}
}

func (s *Store) ClientCertificate(_ context.Context, companyID string) (*tls.Certificate, error) {
	s.mu.RLock()
	cert, ok := s.cache[companyID]
	s.mu.RUnlock()
	if ok {
		return cert, nil
	}

	certFile := filepath.Join(s.dir, companyID+".pem")
	keyFile := filepath.Join(s.dir, companyID+".key")
	loaded, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load certificate for company %s: %w", companyID, err)
	}

	s.mu.Lock()
	s.cache[companyID] = &loaded
	s.mu.Unlock()
	return &loaded, nil
}
