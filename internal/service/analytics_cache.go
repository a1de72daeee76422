package service

import (
	"context"
	"edu_progress_backend/pkg/logger"
	"edu_progress_backend/pkg/monitoring"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AnalyticsCache 教师统计结果的 Redis 快照。统计允许读到旧数据，
// 未配置 Redis 时所有方法都是空操作
type AnalyticsCache struct {
	Redis *redis.Client
	ttl   atomic.Int64
}

func NewAnalyticsCache(rdb *redis.Client, ttl time.Duration) *AnalyticsCache {
	c := &AnalyticsCache{Redis: rdb}
	c.SetTTL(ttl)
	return c
}

// SetTTL 配置热更新时调用
func (c *AnalyticsCache) SetTTL(ttl time.Duration) {
	if c == nil {
		return
	}
	c.ttl.Store(int64(ttl))
}

func (c *AnalyticsCache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return time.Duration(c.ttl.Load())
}

func (c *AnalyticsCache) enabled() bool {
	return c != nil && c.Redis != nil && c.TTL() > 0
}

func analyticsKey(query string, teacherID uint, args ...interface{}) string {
	key := fmt.Sprintf("analytics:%s:%d", query, teacherID)
	for _, arg := range args {
		key += fmt.Sprintf(":%v", arg)
	}
	return key
}

// Get 命中时把快照解码到 dest 并返回 true
func (c *AnalyticsCache) Get(ctx context.Context, query, key string, dest interface{}) bool {
	if !c.enabled() {
		return false
	}

	val, err := c.Redis.Get(ctx, key).Result()
	if err == redis.Nil {
		monitoring.AnalyticsCacheRequests.WithLabelValues(query, "miss").Inc()
		return false
	}
	if err != nil {
		logger.Log.Warn("Analytics cache read failed", zap.String("key", key), zap.Error(err))
		monitoring.AnalyticsCacheRequests.WithLabelValues(query, "error").Inc()
		return false
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		logger.Log.Warn("Analytics cache entry is corrupt", zap.String("key", key), zap.Error(err))
		c.Redis.Del(ctx, key)
		monitoring.AnalyticsCacheRequests.WithLabelValues(query, "error").Inc()
		return false
	}

	monitoring.AnalyticsCacheRequests.WithLabelValues(query, "hit").Inc()
	return true
}

func (c *AnalyticsCache) Set(ctx context.Context, key string, value interface{}) {
	if !c.enabled() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		logger.Log.Warn("Failed to encode analytics snapshot", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.Redis.Set(ctx, key, data, c.TTL()).Err(); err != nil {
		logger.Log.Warn("Analytics cache write failed", zap.String("key", key), zap.Error(err))
	}
}
