package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheItem 包装缓存数据和过期时间
type cacheItem[V any] struct {
	data      V
	expiresAt time.Time
}

// TTLCache 本地 LRU 缓存，每个条目带过期时间
type TTLCache[V any] struct {
	lru *lru.Cache[string, cacheItem[V]]
	now func() time.Time
}

func NewTTLCache[V any](size int) (*TTLCache[V], error) {
	l, err := lru.New[string, cacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[V]{lru: l, now: time.Now}, nil
}

// WithClock replaces the clock used for expiry checks.
func (c *TTLCache[V]) WithClock(now func() time.Time) *TTLCache[V] {
	c.now = now
	return c
}

// Set 设置缓存，ttl <= 0 时不缓存
func (c *TTLCache[V]) Set(key string, data V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.lru.Add(key, cacheItem[V]{data: data, expiresAt: c.now().Add(ttl)})
}

// Get 获取缓存，不存在或已过期时 ok 为 false
func (c *TTLCache[V]) Get(key string) (data V, ok bool) {
	item, found := c.lru.Get(key)
	if !found {
		return data, false
	}
	if c.now().After(item.expiresAt) {
		c.lru.Remove(key)
		return data, false
	}
	return item.data, true
}

func (c *TTLCache[V]) Delete(key string) {
	c.lru.Remove(key)
}

// Purge 清空所有缓存，写操作后调用
func (c *TTLCache[V]) Purge() {
	c.lru.Purge()
}
