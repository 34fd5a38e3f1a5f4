package review

import (
	"context"
	"sync"
	"time"
)

// MemoryReportCache 进程内审计缓存，redis 未启用时使用
type MemoryReportCache struct {
	mu    sync.Mutex
	items map[string]cacheItem
	now   func() time.Time
}

type cacheItem struct {
	value   []byte
	expires time.Time
}

// NewMemoryReportCache 创建进程内缓存
func NewMemoryReportCache() *MemoryReportCache {
	return &MemoryReportCache{items: make(map[string]cacheItem), now: time.Now}
}

func (m *MemoryReportCache) GetReport(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !it.expires.IsZero() && m.now().After(it.expires) {
		delete(m.items, key)
		return nil, false, nil
	}
	return it.value, true, nil
}

// SetReport 写入缓存，顺带清理已过期的条目
func (m *MemoryReportCache) SetReport(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, it := range m.items {
		if !it.expires.IsZero() && now.After(it.expires) {
			delete(m.items, k)
		}
	}
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}
	m.items[key] = cacheItem{value: append([]byte(nil), value...), expires: expires}
	return nil
}
