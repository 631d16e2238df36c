package carrier

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pakettikauppa/internal/rate"
)

// DefaultCatalogTTL is how long the service list is cached.
const DefaultCatalogTTL = 24 * time.Hour

// Catalog caches the carrier's service list in Redis. A nil cache disables caching.
type Catalog struct {
	client Client
	cache  *redis.Client
	ttl    time.Duration
	key    string
	log    zerolog.Logger
}

func NewCatalog(client Client, cache *redis.Client, ttl time.Duration, mode string, log zerolog.Logger) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	if mode == "" {
		mode = "test"
	}
	return &Catalog{client: client, cache: cache, ttl: ttl, key: "pakettikauppa:services:" + mode, log: log}
}

// Services returns the carrier's services, from cache when possible.
// Cache failures are logged and bypassed.
func (c *Catalog) Services(ctx context.Context) ([]Service, error) {
	if c.cache != nil {
		data, err := c.cache.Get(ctx, c.key).Bytes()
		switch {
		case err == nil:
			var services []Service
			if err := json.Unmarshal(data, &services); err == nil {
				return services, nil
			}
			c.log.Warn().Str("key", c.key).Msg("discarding undecodable service cache entry")
		case !errors.Is(err, redis.Nil):
			c.log.Warn().Err(err).Str("key", c.key).Msg("service cache read failed")
		}
	}

	services, err := c.client.ListShippingMethods(ctx)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		data, err := json.Marshal(services)
		if err == nil {
			err = c.cache.Set(ctx, c.key, data, c.ttl).Err()
		}
		if err != nil {
			c.log.Warn().Err(err).Str("key", c.key).Msg("service cache write failed")
		}
	}
	return services, nil
}

// Lookup returns a label resolver over a single fetch of the service list.
func (c *Catalog) Lookup(ctx context.Context) (rate.LabelLookup, error) {
	services, err := c.Services(ctx)
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(services))
	for _, s := range services {
		titles[s.Code] = s.Title()
	}
	return func(code string) (string, bool) {
		t, ok := titles[code]
		return t, ok
	}, nil
}

// Invalidate drops the cached service list.
func (c *Catalog) Invalidate(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Del(ctx, c.key).Err()
}
