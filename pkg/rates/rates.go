// Package rates is C9: the fiat<->crypto rate-source adapter. It fetches a
// quoted price for an asset pair from an HTTP oracle and caches it for
// cfg.Rates.CacheTTL, in Redis when configured or in an in-process map
// otherwise, so C4's buy/sell/swap quotes don't hit the oracle on every
// call.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/afritokeni/platform/internal/logger"
	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/errs"
)

// Quote is a priced asset pair as of FetchedAt (unix seconds).
type Quote struct {
	Pair      string
	Price     decimal.Decimal
	FetchedAt int64
}

// Source fetches a fresh quote for pair (e.g. "BTC/UGX", "CKBTC/CKUSDC")
// from an upstream oracle.
type Source interface {
	Fetch(ctx context.Context, pair string) (decimal.Decimal, error)
}

// HTTPSource queries cfg.Rates.OracleURL + "/rate/{pair}", expecting a
// {"price": "12345.67"} JSON body so the price can round-trip through
// decimal.Decimal without float precision loss.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(cfg config.RatesConfig) *HTTPSource {
	return &HTTPSource{
		baseURL: cfg.OracleURL,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type oracleResponse struct {
	Price string `json:"price"`
}

func (h *HTTPSource) Fetch(ctx context.Context, pair string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/rate/"+pair, nil)
	if err != nil {
		return decimal.Zero, errs.New(errs.RateUnavailable, "failed to build rate request")
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return decimal.Zero, errs.New(errs.RateUnavailable, "rate oracle unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, errs.New(errs.RateUnavailable, "rate oracle returned a non-200 status")
	}

	var body oracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, errs.New(errs.RateUnavailable, "failed to decode rate oracle response")
	}
	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		return decimal.Zero, errs.New(errs.RateUnavailable, "rate oracle returned a malformed price")
	}
	return price, nil
}

// cache is the TTL-bounded store backing Service. Both implementations are
// safe for concurrent use.
type cache interface {
	get(pair string) (decimal.Decimal, int64, bool)
	set(pair string, price decimal.Decimal, fetchedAt int64, ttl time.Duration)
}

type memCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	price     decimal.Decimal
	fetchedAt int64
	expiresAt time.Time
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]memEntry)}
}

func (c *memCache) get(pair string) (decimal.Decimal, int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[pair]
	if !ok || time.Now().After(e.expiresAt) {
		return decimal.Zero, 0, false
	}
	return e.price, e.fetchedAt, true
}

func (c *memCache) set(pair string, price decimal.Decimal, fetchedAt int64, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[pair] = memEntry{price: price, fetchedAt: fetchedAt, expiresAt: time.Now().Add(ttl)}
}

// redisCache stores a "price:fetchedAt" string per pair with a Redis-native
// expiry, so a crashed process loses no correctness (the TTL is enforced
// server-side, not just read-side as in memCache).
type redisCache struct {
	client *redis.Client
}

func newRedisCache(addr string) *redisCache {
	return &redisCache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (c *redisCache) get(pair string) (decimal.Decimal, int64, bool) {
	val, err := c.client.Get(context.Background(), "rate:"+pair).Result()
	if err != nil {
		return decimal.Zero, 0, false
	}
	var stored struct {
		Price     string `json:"price"`
		FetchedAt int64  `json:"fetched_at"`
	}
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		return decimal.Zero, 0, false
	}
	price, err := decimal.NewFromString(stored.Price)
	if err != nil {
		return decimal.Zero, 0, false
	}
	return price, stored.FetchedAt, true
}

func (c *redisCache) set(pair string, price decimal.Decimal, fetchedAt int64, ttl time.Duration) {
	payload, _ := json.Marshal(struct {
		Price     string `json:"price"`
		FetchedAt int64  `json:"fetched_at"`
	}{Price: price.String(), FetchedAt: fetchedAt})
	c.client.Set(context.Background(), "rate:"+pair, payload, ttl)
}

// Service is C9's public surface: a cached view over a Source.
type Service struct {
	source Source
	cache  cache
	ttl    time.Duration
	log    *logger.Logger
}

// NewService wires cfg.Rates into a Service, using Redis when RedisAddr is
// set and falling back to an in-memory cache otherwise so the adapter runs
// standalone without an external dependency.
func NewService(cfg config.RatesConfig, log *logger.Logger) *Service {
	var c cache
	if cfg.RedisAddr != "" {
		c = newRedisCache(cfg.RedisAddr)
		log.WithField("redis_addr", cfg.RedisAddr).Info("rates: using redis cache")
	} else {
		c = newMemCache()
		log.Info("rates: using in-memory cache")
	}
	return &Service{
		source: NewHTTPSource(cfg),
		cache:  c,
		ttl:    cfg.CacheTTL,
		log:    log,
	}
}

// NewServiceWithSource is the same as NewService but lets callers supply a
// fake Source for tests without a live oracle.
func NewServiceWithSource(source Source, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{source: source, cache: newMemCache(), ttl: ttl, log: log}
}

// GetQuote returns the cached quote for pair if it's still fresh, otherwise
// fetches a new one from the source and caches it.
func (s *Service) GetQuote(ctx context.Context, pair string, now int64) (Quote, error) {
	if price, fetchedAt, ok := s.cache.get(pair); ok {
		return Quote{Pair: pair, Price: price, FetchedAt: fetchedAt}, nil
	}

	price, err := s.source.Fetch(ctx, pair)
	if err != nil {
		return Quote{}, err
	}
	if price.IsZero() || price.IsNegative() {
		return Quote{}, errs.New(errs.RateUnavailable, fmt.Sprintf("rate oracle returned a non-positive price for %s", pair))
	}
	s.cache.set(pair, price, now, s.ttl)
	return Quote{Pair: pair, Price: price, FetchedAt: now}, nil
}
