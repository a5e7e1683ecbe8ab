package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for the token cache.
var (
	tokenCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odata_auth_token_cache_hits_total",
		Help: "Token cache hits",
	})

	tokenCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odata_auth_token_cache_misses_total",
		Help: "Token cache misses",
	})

	tokenCacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odata_auth_token_cache_errors_total",
		Help: "Token cache operation errors",
	}, []string{"operation"})
)

// expiryMargin is subtracted from a token's declared lifetime so a cached
// token is never handed out moments before the upstream rejects it.
const expiryMargin = 30 * time.Second

// tokenSource is implemented by the strategies that fetch bearer tokens over
// the network and can therefore be cached.
type tokenSource interface {
	fetchToken(ctx context.Context) (token string, ttl time.Duration, err error)
	cacheKey() string
}

// Cached wraps a token-fetching strategy with a Redis-backed cache keyed by
// strategy and endpoint. Tokens are reused until their expires_in-declared
// expiry; tokens without a declared lifetime are never cached. Redis being
// unavailable degrades to a direct fetch, it never fails the request.
type Cached struct {
	source tokenSource
	redis  *redis.Client
	logger zerolog.Logger
}

// NewCached wraps provider with the token cache. The provider must be one of
// the token-fetching strategies; Basic has nothing to cache and is returned
// unchanged.
func NewCached(provider Provider, redisClient *redis.Client) Provider {
	source, ok := provider.(tokenSource)
	if !ok {
		return provider
	}
	return &Cached{
		source: source,
		redis:  redisClient,
		logger: log.With().Str("component", "auth").Str("strategy", "cached").Logger(),
	}
}

// Apply resolves a bearer token through the cache and attaches it.
func (c *Cached) Apply(ctx context.Context, req *http.Request) error {
	key := c.source.cacheKey()

	token, err := c.redis.Get(ctx, key).Result()
	if err == nil && token != "" {
		tokenCacheHits.Inc()
		c.logger.Debug().Str("key", key).Msg("Token cache hit")
		setBearer(req, token)
		return nil
	}
	if err != nil && err != redis.Nil {
		tokenCacheErrors.WithLabelValues("get").Inc()
		c.logger.Warn().Err(err).Msg("Token cache get failed, fetching directly")
	} else {
		tokenCacheMisses.Inc()
	}

	token, ttl, err := c.source.fetchToken(ctx)
	if err != nil {
		return err
	}

	if ttl > expiryMargin {
		if err := c.redis.Set(ctx, key, token, ttl-expiryMargin).Err(); err != nil {
			tokenCacheErrors.WithLabelValues("set").Inc()
			c.logger.Warn().Err(err).Msg("Token cache set failed")
		} else {
			c.logger.Debug().Str("key", key).Dur("ttl", ttl-expiryMargin).Msg("Cached token")
		}
	}

	setBearer(req, token)
	return nil
}
