// Package cache provides a Redis-backed cache of scan results keyed by a
// dataset fingerprint, so repeated scans of unchanged datasets are served
// without re-running detection.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/lgpdkit/pii-sentinel/internal/dataset"
	"github.com/lgpdkit/pii-sentinel/internal/pii"
)

const keyPrefix = "scan:"

// fingerprintSampleRows caps how many rows per column feed the fingerprint
const fingerprintSampleRows = 64

// Config contains Redis cache configuration
type Config struct {
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
}

// Stats tracks cache performance
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	TotalKeys int64   `json:"total_keys"`
}

// ScanCache handles Redis-based caching of scan results
type ScanCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	hits   int64
	misses int64
}

// NewScanCache creates a Redis-backed scan cache
func NewScanCache(config *Config, logger *zap.Logger) (*ScanCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	cache := &ScanCache{
		client: redis.NewClient(opts),
		config: config,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Scan cache initialized successfully",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

// ping tests the Redis connection
func (c *ScanCache) ping(ctx context.Context) error {
	_, err := c.client.Ping(ctx).Result()
	return err
}

// Fingerprint derives a stable key for a table from its schema and a sample
// of its cells. Unchanged data maps to the same key; any edit changes it.
func Fingerprint(table dataset.Table) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(table.RowCount())))
	for _, name := range table.ColumnNames() {
		h.Write([]byte{0})
		h.Write([]byte(name))
		column, ok := table.Column(name)
		if !ok {
			continue
		}
		for i, v := range column.Values {
			if i >= fingerprintSampleRows {
				break
			}
			h.Write([]byte{1})
			h.Write([]byte(v.Text()))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached scan result for a fingerprint, if present
func (c *ScanCache) Get(ctx context.Context, fingerprint string) (*pii.ScanResult, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+fingerprint).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	var result pii.ScanResult
	if err := json.Unmarshal(data, &result); err != nil {
		// A corrupt entry behaves like a miss; it will be overwritten
		atomic.AddInt64(&c.misses, 1)
		c.logger.Warn("Discarding corrupt cache entry", zap.String("fingerprint", fingerprint))
		return nil, false, nil
	}

	atomic.AddInt64(&c.hits, 1)
	c.logger.Debug("Scan cache hit", zap.String("fingerprint", fingerprint))
	return &result, true, nil
}

// Set stores a scan result under a fingerprint with the default TTL
func (c *ScanCache) Set(ctx context.Context, fingerprint string, result *pii.ScanResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal scan result: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+fingerprint, data, c.config.DefaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to store scan result: %w", err)
	}

	c.logger.Debug("Scan result cached",
		zap.String("fingerprint", fingerprint),
		zap.Int("findings", len(result.Findings)))
	return nil
}

// GetStats returns cache statistics
func (c *ScanCache) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	keys, err := c.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count cache keys: %w", err)
	}
	stats.TotalKeys = int64(len(keys))

	return stats, nil
}

// Clear removes all cached scan results
func (c *ScanCache) Clear(ctx context.Context) error {
	keys, err := c.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return fmt.Errorf("failed to list cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	c.logger.Info("Scan cache cleared", zap.Int("keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (c *ScanCache) Close() error {
	return c.client.Close()
}

// maskRedisURL hides credentials in log output
func maskRedisURL(redisURL string) string {
	parsed, err := url.Parse(redisURL)
	if err != nil {
		return "invalid-url"
	}
	if parsed.User != nil {
		parsed.User = url.UserPassword(parsed.User.Username(), "****")
	}
	return parsed.String()
}
