package service

import (
	"sync"
	"time"
)

const statsCacheKey = "issues:stats"

// CacheService - кэш в памяти с TTL для тяжёлых админских выборок.
// Каждое удаление увеличивает поколение: значение, посчитанное до удаления, не сохраняется.
type CacheService struct {
	mu    sync.RWMutex
	cache map[string]*cacheEntry
	gen   uint64
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

// NewCacheService создаёт кэш и запускает фоновую очистку устаревших записей.
func NewCacheService(cleanupInterval time.Duration) *CacheService {
	cs := &CacheService{
		cache: make(map[string]*cacheEntry),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go cs.cleanup(cleanupInterval)
	}
	return cs
}

// Get возвращает значение, если оно есть и не устарело.
func (cs *CacheService) Get(key string) (interface{}, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, exists := cs.cache[key]
	if !exists || cs.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// Set сохраняет значение на ttl.
func (cs *CacheService) Set(key string, value interface{}, ttl time.Duration) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cache[key] = &cacheEntry{
		data:      value,
		expiresAt: cs.now().Add(ttl),
	}
}

// Delete удаляет ключ.
func (cs *CacheService) Delete(key string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.cache, key)
	cs.gen++
}

// GetOrSet возвращает значение из кэша или вычисляет и сохраняет его.
// Если во время вычисления кэш инвалидировали, результат отдаётся, но не сохраняется.
func (cs *CacheService) GetOrSet(key string, ttl time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	cs.mu.RLock()
	gen := cs.gen
	entry, exists := cs.cache[key]
	if exists && !cs.now().After(entry.expiresAt) {
		cs.mu.RUnlock()
		return entry.data, nil
	}
	cs.mu.RUnlock()

	value, err := fn()
	if err != nil {
		return nil, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.gen == gen {
		cs.cache[key] = &cacheEntry{data: value, expiresAt: cs.now().Add(ttl)}
	}
	return value, nil
}

// Close останавливает фоновую очистку.
func (cs *CacheService) Close() {
	cs.once.Do(func() { close(cs.stop) })
}

func (cs *CacheService) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-cs.stop:
			return
		case <-ticker.C:
			cs.mu.Lock()
			now := cs.now()
			for key, entry := range cs.cache {
				if now.After(entry.expiresAt) {
					delete(cs.cache, key)
				}
			}
			cs.mu.Unlock()
		}
	}
}
