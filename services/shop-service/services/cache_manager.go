package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/shopnow-backend/pkg/aws"
)

const (
	ProductCachePrefix     = "product:detail:"
	ProductListCachePrefix = "products:v:"
	CacheVersionKey        = "products:version"

	DefaultCacheTTL   = 10 * time.Minute
	cacheWriteTimeout = 5 * time.Second
)

// CacheManager handles Redis caching of product reads. With a nil client every lookup
// is a miss and every write is dropped.
type CacheManager struct {
	redis   redis.Cmdable
	ttl     time.Duration
	metrics awspkg.MetricsRecorder
}

func NewCacheManager(client redis.Cmdable, ttl time.Duration, metrics awspkg.MetricsRecorder) *CacheManager {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CacheManager{redis: client, ttl: ttl, metrics: metrics}
}

// GetProductList returns the cached body of a list request.
func (cm *CacheManager) GetProductList(ctx context.Context, values url.Values) (json.RawMessage, bool) {
	if cm.redis == nil {
		return nil, false
	}
	version, err := cm.getCacheVersion(ctx)
	if err != nil {
		return nil, false
	}
	return cm.get(ctx, cm.listKey(version, values))
}

// SetProductListAsync caches a list response without blocking the request.
func (cm *CacheManager) SetProductListAsync(values url.Values, body json.RawMessage) {
	if cm.redis == nil {
		return
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()

		version, err := cm.getCacheVersion(bgCtx)
		if err != nil {
			return
		}
		if err := cm.redis.Set(bgCtx, cm.listKey(version, values), []byte(body), cm.ttl).Err(); err != nil {
			zap.L().Warn("Failed to cache product list", zap.Error(err))
		}
	}()
}

// GetProduct returns the cached body of a product detail.
func (cm *CacheManager) GetProduct(ctx context.Context, productID string) (json.RawMessage, bool) {
	if cm.redis == nil {
		return nil, false
	}
	return cm.get(ctx, ProductCachePrefix+productID)
}

// SetProductAsync caches a single product asynchronously
func (cm *CacheManager) SetProductAsync(productID string, body json.RawMessage) {
	if cm.redis == nil {
		return
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()

		if err := cm.redis.Set(bgCtx, ProductCachePrefix+productID, []byte(body), cm.ttl).Err(); err != nil {
			zap.L().Warn("Failed to cache product", zap.Error(err), zap.String("product_id", productID))
		}
	}()
}

// Invalidate invalidates all product list caches by bumping the version
func (cm *CacheManager) Invalidate(ctx context.Context) error {
	if cm.redis == nil {
		return nil
	}
	newVersion, err := cm.redis.Incr(ctx, CacheVersionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	zap.L().Debug("Product cache invalidated", zap.Int64("new_version", newVersion))
	return nil
}

// InvalidateProduct drops the list caches and the detail of productID.
func (cm *CacheManager) InvalidateProduct(ctx context.Context, productID string) {
	if cm.redis == nil {
		return
	}
	if err := cm.Invalidate(ctx); err != nil {
		zap.L().Error("Failed to invalidate product cache", zap.Error(err), zap.String("product_id", productID))
	}
	if err := cm.redis.Del(ctx, ProductCachePrefix+productID).Err(); err != nil {
		zap.L().Warn("Failed to delete product cache", zap.Error(err), zap.String("product_id", productID))
	}
}

func (cm *CacheManager) get(ctx context.Context, key string) (json.RawMessage, bool) {
	data, err := cm.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("Product cache read failed", zap.String("key", key), zap.Error(err))
		}
		cm.record(ctx, awspkg.MetricCacheMisses)
		return nil, false
	}
	if !json.Valid(data) {
		cm.record(ctx, awspkg.MetricCacheMisses)
		return nil, false
	}
	cm.record(ctx, awspkg.MetricCacheHits)
	return json.RawMessage(data), true
}

// getCacheVersion retrieves the current cache version with retry logic
func (cm *CacheManager) getCacheVersion(ctx context.Context) (int64, error) {
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		ver, err := cm.redis.Get(ctx, CacheVersionKey).Int64()
		if err == nil && ver > 0 {
			return ver, nil
		}

		if err == redis.Nil {
			// SETNX so a concurrent Invalidate is not overwritten
			if err := cm.redis.SetNX(ctx, CacheVersionKey, 1, 0).Err(); err != nil {
				return 0, err
			}
			continue
		}

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
		}
	}

	return 0, fmt.Errorf("failed to get cache version after %d retries", maxRetries)
}

// listKey is stable for equivalent requests because Encode sorts by key.
func (cm *CacheManager) listKey(version int64, values url.Values) string {
	return fmt.Sprintf("%s%d:%s", ProductListCachePrefix, version, values.Encode())
}

func (cm *CacheManager) record(ctx context.Context, metric string) {
	if cm.metrics != nil && cm.metrics.IsEnabled() {
		_ = cm.metrics.RecordCount(ctx, metric, nil)
	}
}
