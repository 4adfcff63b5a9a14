// Package aside implements the cache-aside layer: stable key derivation from
// arbitrary filter structures, tiered TTL classes, and get-or-set over the
// cache store. The relational store stays the source of truth; every cache
// failure is converted into a miss.
package aside

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/casavia/matchengine/internal/cache"
)

// TTLClass selects one of the tiered expiration policies.
type TTLClass int

// TTL classes. Exact durations are configuration, not contract.
const (
	// TTLShort is for single-entity reads that change often.
	TTLShort TTLClass = iota
	// TTLMedium is for search-result pages.
	TTLMedium
	// TTLLong is for near-static aggregates.
	TTLLong
)

// Store is the consumer interface for the underlying key-value cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	DelPrefix(ctx context.Context, prefix string) error
}

// Config holds cache-aside policy values.
type Config struct {
	KeyPrefix string
	OpTimeout time.Duration
	ShortTTL  time.Duration
	MediumTTL time.Duration
	LongTTL   time.Duration
}

// Cache wraps a key-value store with get-or-set semantics.
type Cache struct {
	store      Store
	prefix     string
	opTimeout  time.Duration
	ttls       [3]time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a cache-aside wrapper.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(store Store, cfg Config, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	c := &Cache{
		store:      store,
		prefix:     cfg.KeyPrefix,
		opTimeout:  cfg.OpTimeout,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
	if c.opTimeout <= 0 {
		c.opTimeout = 250 * time.Millisecond
	}
	c.ttls[TTLShort] = cfg.ShortTTL
	c.ttls[TTLMedium] = cfg.MediumTTL
	c.ttls[TTLLong] = cfg.LongTTL
	return c
}

// Key builds a plain single-entity key.
func (c *Cache) Key(namespace, id string) string {
	return c.prefix + namespace + ":" + id
}

// StableKey derives a cache key from an arbitrary filter/query structure.
// Two logically identical queries produce the same key regardless of map
// construction order or present-but-nil fields: nil and empty values are
// stripped and the remainder is marshaled with lexically sorted keys.
func (c *Cache) StableKey(namespace string, query map[string]any) string {
	canonical := stripEmpty(query)
	data, err := json.Marshal(canonical)
	if err != nil {
		// Maps of plain values never fail to marshal; keep a deterministic
		// fallback rather than panicking on an exotic caller type.
		data = []byte(fmt.Sprintf("%#v", canonical))
	}
	h := sha256.Sum256(data)
	return c.prefix + namespace + ":q:" + hex.EncodeToString(h[:])
}

// stripEmpty removes nil values, empty strings, and empty containers
// recursively. encoding/json already sorts map keys, which makes the
// marshaled form canonical once empties are gone.
func stripEmpty(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			cleaned := stripEmpty(val)
			if cleaned == nil {
				continue
			}
			out[k] = cleaned
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			if cleaned := stripEmpty(val); cleaned != nil {
				out = append(out, cleaned)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return t
	case nil:
		return nil
	default:
		return v
	}
}

// TTL resolves a TTL class to its configured duration.
func (c *Cache) TTL(class TTLClass) time.Duration {
	if class < TTLShort || class > TTLLong {
		return c.ttls[TTLShort]
	}
	return c.ttls[class]
}

// Invalidate removes a single key. Called by mutation paths; the cache has
// no implicit invalidation beyond TTL expiry.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.store.Del(opCtx, key); err != nil {
		c.logger.Warn("Failed to invalidate cache key", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateNamespace removes every derived query key under a namespace.
func (c *Cache) InvalidateNamespace(ctx context.Context, namespace string) {
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.store.DelPrefix(opCtx, c.prefix+namespace+":"); err != nil {
		c.logger.Warn("Failed to invalidate cache namespace",
			zap.String("namespace", namespace), zap.Error(err))
	}
}

// GetOrSet checks the cache for key; on hit it decodes the cached value, on
// miss it runs loader, stores the result under the class TTL, and returns it.
// Concurrent misses for the same key are tolerated: redundant loader runs are
// an acceptable cost, correctness never depends on cache presence.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, class TTLClass, loader func(context.Context) (T, error)) (T, error) {
	if cached, ok := c.lookup(ctx, key); ok {
		var value T
		if err := json.Unmarshal(cached, &value); err == nil {
			c.count("hit")
			return value, nil
		}
		// Undecodable entries are treated as misses and overwritten below.
		c.logger.Warn("Failed to decode cached value", zap.String("key", key))
	}
	c.count("miss")

	value, err := loader(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.put(ctx, key, class, value)
	return value, nil
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.store.Get(opCtx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrKeyNotFound) {
			c.logger.Warn("Cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) put(ctx context.Context, key string, class TTLClass, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to encode value for cache", zap.String("key", key), zap.Error(err))
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.store.SetWithTTL(opCtx, key, data, c.TTL(class)); err != nil {
		c.logger.Warn("Failed to store cache value", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) count(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
