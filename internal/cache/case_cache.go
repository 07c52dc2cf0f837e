package cache

import (
	"sync"
	"time"

	"commtrack/backend/internal/domain"
)

// CaseCache 案件投影的本地 TTL 缓存。
//
// 复制引擎在一次 move/clone 中会反复读取同一批案件，
// 短 TTL 缓存避免对存储层的重复查询。写路径不经过缓存，
// 案件属性（Embargo、机构状态）由外部系统变更，TTL 到期即失效。
type CaseCache struct {
	data sync.Map
	ttl  time.Duration
}

type caseEntry struct {
	kase      *domain.Case
	expiresAt time.Time
}

// NewCaseCache 创建案件缓存。
func NewCaseCache(ttl time.Duration) *CaseCache {
	c := &CaseCache{ttl: ttl}

	// 定期清理过期条目
	go c.cleanupLoop()

	return c
}

// Get 获取缓存的案件。
func (c *CaseCache) Get(id string) (*domain.Case, bool) {
	val, ok := c.data.Load(id)
	if !ok {
		return nil, false
	}

	entry := val.(*caseEntry)
	if time.Now().After(entry.expiresAt) {
		c.data.Delete(id)
		return nil, false
	}
	return entry.kase, true
}

// Set 写入案件缓存。
func (c *CaseCache) Set(kase *domain.Case) {
	c.data.Store(kase.ID, &caseEntry{
		kase:      kase,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Invalidate 删除单个案件的缓存。
func (c *CaseCache) Invalidate(id string) {
	c.data.Delete(id)
}

// cleanupLoop 定期清理过期条目。
func (c *CaseCache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.data.Range(func(key, value interface{}) bool {
			entry := value.(*caseEntry)
			if now.After(entry.expiresAt) {
				c.data.Delete(key)
			}
			return true
		})
	}
}
