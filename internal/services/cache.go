package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"stock-analyzer-api/internal/config"
	"stock-analyzer-api/internal/models"
)

// Generic in-memory cache with type safety
type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]*cacheItem[V]
	ttl   time.Duration
	now   func() time.Time
}

type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]*cacheItem[V]),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || c.now().After(item.expiration) {
		var zero V
		return zero, false
	}

	return item.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value for ttl, capped at the cache TTL.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if ttl > c.ttl {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheItem[V]{
		value:      value,
		expiration: c.now().Add(ttl),
	}
}

// Purge drops expired entries and returns how many were removed.
func (c *Cache[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, item := range c.items {
		if now.After(item.expiration) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*cacheItem[V])
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// RemoteStore is a shared second cache tier. Values are stored as JSON.
// Get reports found=false for missing or expired keys, and the time the entry has left.
type RemoteStore interface {
	Get(ctx context.Context, collection, key string) (data []byte, ttl time.Duration, found bool, err error)
	Set(ctx context.Context, collection, key string, data []byte, ttl time.Duration) error
	Clear(ctx context.Context, collection string) error
	Ping(ctx context.Context) error
	Name() string
	Close() error
}

const (
	collHistory = "history"
	collSearch  = "search"
	collNews    = "news"
)

// CacheService handles both in-memory and remote caching of upstream payloads.
// Forecasts are never cached.
type CacheService struct {
	config       *config.Config
	remote       RemoteStore
	historyCache *Cache[string, *models.History]
	searchCache  *Cache[string, []models.Suggestion]
	newsCache    *Cache[string, []models.Article]
}

// NewCacheService builds the cache; remote may be nil for memory only.
func NewCacheService(cfg *config.Config, remote RemoteStore) *CacheService {
	return &CacheService{
		config:       cfg,
		remote:       remote,
		historyCache: NewCache[string, *models.History](cfg.Cache.HistoryTTL),
		searchCache:  NewCache[string, []models.Suggestion](cfg.Cache.SearchTTL),
		newsCache:    NewCache[string, []models.Article](cfg.Cache.NewsTTL),
	}
}

// NewRemoteStore opens the backend selected in cfg, nil for the memory backend.
func NewRemoteStore(ctx context.Context, cfg *config.Config) (RemoteStore, error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		s, err := NewRedisStore(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPass, cfg.Cache.RedisDB, cfg.Cache.RedisPrefix)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.CacheFirestore:
		s, err := NewFirestoreStore(ctx, cfg.Cache.Firestore)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, nil
	}
}

// remoteGet reads key from r and, on a hit, copies it into local for the time it has
// left remotely so the two tiers expire together.
func remoteGet[V any](ctx context.Context, r RemoteStore, local *Cache[string, V], collection, key string) (V, bool) {
	var zero V
	if r == nil {
		return zero, false
	}
	data, ttl, found, err := r.Get(ctx, collection, key)
	if err != nil {
		log.Printf("[WARN] %s cache get %s/%s: %v", r.Name(), collection, key, err)
		return zero, false
	}
	if !found {
		return zero, false
	}
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		log.Printf("[WARN] %s cache decode %s/%s: %v", r.Name(), collection, key, err)
		return zero, false
	}
	local.SetWithTTL(key, v, ttl)
	return v, true
}

func remoteSet(ctx context.Context, r RemoteStore, collection, key string, v interface{}, ttl time.Duration) error {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return r.Set(ctx, collection, key, data, ttl)
}

func historyKey(symbol, rng, interval string) string {
	return symbol + ":" + rng + ":" + interval
}

// GetHistory retrieves price history from cache
func (s *CacheService) GetHistory(ctx context.Context, key string) (*models.History, bool) {
	if h, found := s.historyCache.Get(key); found {
		return h, true
	}
	if h, found := remoteGet(ctx, s.remote, s.historyCache, collHistory, key); found {
		return h, true
	}
	return nil, false
}

// SetHistory stores price history in cache
func (s *CacheService) SetHistory(ctx context.Context, key string, h *models.History) error {
	s.historyCache.Set(key, h)
	return remoteSet(ctx, s.remote, collHistory, key, h, s.config.Cache.HistoryTTL)
}

func (s *CacheService) GetSuggestions(ctx context.Context, query string) ([]models.Suggestion, bool) {
	if v, found := s.searchCache.Get(query); found {
		return v, true
	}
	if v, found := remoteGet(ctx, s.remote, s.searchCache, collSearch, query); found {
		return v, true
	}
	return nil, false
}

func (s *CacheService) SetSuggestions(ctx context.Context, query string, v []models.Suggestion) error {
	s.searchCache.Set(query, v)
	return remoteSet(ctx, s.remote, collSearch, query, v, s.config.Cache.SearchTTL)
}

func (s *CacheService) GetNews(ctx context.Context, symbol string) ([]models.Article, bool) {
	if v, found := s.newsCache.Get(symbol); found {
		return v, true
	}
	if v, found := remoteGet(ctx, s.remote, s.newsCache, collNews, symbol); found {
		return v, true
	}
	return nil, false
}

func (s *CacheService) SetNews(ctx context.Context, symbol string, v []models.Article) error {
	s.newsCache.Set(symbol, v)
	return remoteSet(ctx, s.remote, collNews, symbol, v, s.config.Cache.NewsTTL)
}

// Purge drops expired in-memory entries. Remote stores expire on their own.
func (s *CacheService) Purge() int {
	return s.historyCache.Purge() + s.searchCache.Purge() + s.newsCache.Purge()
}

// Clear empties every tier.
func (s *CacheService) Clear(ctx context.Context) error {
	s.historyCache.Clear()
	s.searchCache.Clear()
	s.newsCache.Clear()
	if s.remote == nil {
		return nil
	}
	for _, coll := range []string{collHistory, collSearch, collNews} {
		if err := s.remote.Clear(ctx, coll); err != nil {
			return fmt.Errorf("clear %s: %w", coll, err)
		}
	}
	return nil
}

// Ping checks the remote tier, if any.
func (s *CacheService) Ping(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	return s.remote.Ping(ctx)
}

// Backend names the remote tier, "memory" when there is none.
func (s *CacheService) Backend() string {
	if s.remote == nil {
		return config.CacheMemory
	}
	return s.remote.Name()
}

// Close closes the remote store
func (s *CacheService) Close() error {
	if s.remote != nil {
		return s.remote.Close()
	}
	return nil
}
