package redis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var cacheTracer = otel.Tracer("redis.cache")

// AuditCache 审计报告缓存。键内含内容指纹，内容变化后旧键自然过期
type AuditCache struct {
	client *Client
	prefix string
}

// NewAuditCache 创建审计缓存，prefix 用于多实例隔离
func NewAuditCache(client *Client, prefix string) *AuditCache {
	return &AuditCache{client: client, prefix: prefix}
}

func (c *AuditCache) key(k string) string {
	return c.prefix + k
}

// GetReport 读取缓存，未命中返回 ok=false
func (c *AuditCache) GetReport(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.GetReport",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if IsNil(err) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return val, true, nil
}

// SetReport 写入缓存
func (c *AuditCache) SetReport(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := cacheTracer.Start(ctx, "cache.SetReport",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	if err := c.client.rdb.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Invalidate 删除某项目的全部审计缓存（项目删除时调用）
func (c *AuditCache) Invalidate(ctx context.Context, projectID string) error {
	ctx, span := cacheTracer.Start(ctx, "cache.Invalidate",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	pattern := c.key("audit:" + projectID + ":*")
	iter := c.client.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.rdb.Del(ctx, keys...).Err()
}
