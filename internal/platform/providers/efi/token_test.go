package efi

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenCache_ReusesUnexpiredToken(t *testing.T) {
	cache := newTokenCache()
	now := time.Now()
	calls := 0
	refresh := func() (string, time.Time, error) {
		calls++
		return "tok-1", now.Add(time.Hour), nil
	}

	tok, err := cache.fetch("company-a", now, refresh)
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok)

	tok, err = cache.fetch("company-a", now.Add(time.Minute), refresh)
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok)
	require.Equal(t, 1, calls)
}

func TestTokenCache_RefreshesInsideMargin(t *testing.T) {
	cache := newTokenCache()
	now := time.Now()
	calls := 0
	refresh := func() (string, time.Time, error) {
		calls++
		return "tok", now.Add(refreshMargin / 2), nil
	}

	_, err := cache.fetch("company-a", now, refresh)
	require.NoError(t, err)
	// Expiry falls inside the refresh margin, so the next fetch refreshes.
	_, err = cache.fetch("company-a", now, refresh)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestTokenCache_PerCompanyIsolation(t *testing.T) {
	cache := newTokenCache()
	now := time.Now()

	tokA, err := cache.fetch("company-a", now, func() (string, time.Time, error) {
		return "tok-a", now.Add(time.Hour), nil
	})
	require.NoError(t, err)
	tokB, err := cache.fetch("company-b", now, func() (string, time.Time, error) {
		return "tok-b", now.Add(time.Hour), nil
	})
	require.NoError(t, err)
	require.Equal(t, "tok-a", tokA)
	require.Equal(t, "tok-b", tokB)
}

func TestTokenCache_InvalidateForcesRefresh(t *testing.T) {
	cache := newTokenCache()
	now := time.Now()
	calls := 0
	refresh := func() (string, time.Time, error) {
		calls++
		return "tok", now.Add(time.Hour), nil
	}

	_, err := cache.fetch("company-a", now, refresh)
	require.NoError(t, err)
	cache.invalidate("company-a")
	_, err = cache.fetch("company-a", now, refresh)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestTokenCache_RefreshErrorNotCached(t *testing.T) {
	cache := newTokenCache()
	now := time.Now()

	_, err := cache.fetch("company-a", now, func() (string, time.Time, error) {
		return "", time.Time{}, errors.New("oauth down")
	})
	require.Error(t, err)

	tok, err := cache.fetch("company-a", now, func() (string, time.Time, error) {
		return "tok", now.Add(time.Hour), nil
	})
	require.NoError(t, err)
	require.Equal(t, "tok", tok)
}
