package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/kv"
)

const (
	tokenKeyPrefix        = "token:"
	defaultTokenTTLMargin = 60 * time.Second
	minTokenTTL           = 5 * time.Second
)

// tokenCache keeps provider access tokens in the key-value store so
// restarts and sibling processes reuse them instead of hammering the
// provider's token endpoint. Tokens expire a safety margin before the
// provider-reported TTL.
type tokenCache struct {
	store  kv.Store
	margin time.Duration
}

func newTokenCache(store kv.Store, margin time.Duration) tokenCache {
	if margin <= 0 {
		margin = defaultTokenTTLMargin
	}
	return tokenCache{store: store, margin: margin}
}

// getOrFetch returns the cached token under key, calling fetch on a miss.
// fetch reports the token and the provider's TTL for it.
func (c tokenCache) getOrFetch(
	ctx context.Context,
	key string,
	fetch func(ctx context.Context) (token string, ttl time.Duration, err error),
) (string, error) {
	cached, err := c.store.Get(ctx, tokenKeyPrefix+key)
	if err == nil && len(cached) > 0 {
		return string(cached), nil
	}

	token, ttl, err := fetch(ctx)
	if err != nil {
		return "", err
	}

	ttl -= c.margin
	if ttl < minTokenTTL {
		ttl = minTokenTTL
	}
	if err := c.store.Put(ctx, tokenKeyPrefix+key, []byte(token), ttl); err != nil {
		return "", fmt.Errorf("cache token: %w", err)
	}
	return token, nil
}
