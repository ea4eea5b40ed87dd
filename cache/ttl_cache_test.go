// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCache(t *testing.T) {
	tests := []struct {
		name           string
		evict          bool
		waitBeforeNext time.Duration
		expectedCount  int
	}{
		{
			name:          "empty cache, fetch",
			expectedCount: 1,
		},
		{
			name:          "fresh entry, no fetch",
			expectedCount: 1,
		},
		{
			name:          "evicted, fetch",
			evict:         true,
			expectedCount: 2,
		},
		{
			name:           "ttl expired, fetch",
			waitBeforeNext: 150 * time.Millisecond,
			expectedCount:  3,
		},
	}

	cache := NewTTLCache[string, int](100 * time.Millisecond)
	fetchCount := 0
	fetch := func(_ string) (int, error) {
		fetchCount++
		return 42, nil
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			if tt.evict {
				cache.Evict("key")
			}
			if tt.waitBeforeNext > 0 {
				time.Sleep(tt.waitBeforeNext)
			}

			val, err := cache.Get("key", fetch)
			require.NoError(err)
			require.Equal(42, val)
			require.Equal(tt.expectedCount, fetchCount)
		})
	}
}

func TestTTLCacheFetchError(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, int](time.Minute)
	errFetch := errors.New("fetch failed")

	_, err := cache.Get("key", func(string) (int, error) {
		return 0, errFetch
	})
	require.ErrorIs(err, errFetch)
	require.Zero(cache.Len())

	// Failed fetches are not cached.
	val, err := cache.Get("key", func(string) (int, error) {
		return 7, nil
	})
	require.NoError(err)
	require.Equal(7, val)
	require.Equal(1, cache.Len())
}

func TestTTLCacheSweepsExpiredOnStore(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, int](50 * time.Millisecond)
	fetch := func(_ string) (int, error) { return 1, nil }

	_, err := cache.Get("a", fetch)
	require.NoError(err)
	_, err = cache.Get("b", fetch)
	require.NoError(err)
	require.Equal(2, cache.Len())

	time.Sleep(100 * time.Millisecond)

	// Storing "c" sweeps the expired "a" and "b".
	_, err = cache.Get("c", fetch)
	require.NoError(err)
	require.Equal(1, cache.Len())
}
