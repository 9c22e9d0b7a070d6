package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vaxtrack/internal/clock"
	"vaxtrack/internal/domain"
	"vaxtrack/internal/store"

	"go.uber.org/zap"
)

const (
	// DefaultTTL 日历缓存有效期
	DefaultTTL = 30 * 24 * time.Hour

	keyPrefix     = "vaxtrack:calendar:"
	keyDownloaded = "vaxtrack:calendar:downloaded"
)

// Entry 缓存条目
type Entry struct {
	Data      domain.VaccineData `json:"data"`
	FetchedAt time.Time          `json:"fetchedAt"`
}

// Cache 国家接种日历缓存
// - 每个国家一个 key，值为 {data, fetchedAt}
// - now - fetchedAt >= ttl 视为过期，读取时删除并按未命中返回
// - 另维护一份已下载国家列表
type Cache struct {
	kv     store.KV
	clock  clock.Clock
	ttl    time.Duration
	logger *zap.Logger
}

func New(kv store.KV, clk clock.Clock, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{kv: kv, clock: clk, ttl: ttl, logger: logger}
}

func (c *Cache) entryKey(country domain.Country) string {
	return keyPrefix + country.Key()
}

// TTL 当前有效期
func (c *Cache) TTL() time.Duration { return c.ttl }

// Put 写入（覆盖）缓存，fetchedAt 取当前时间
func (c *Cache) Put(ctx context.Context, country domain.Country, data domain.VaccineData) error {
	entry := Entry{Data: data, FetchedAt: c.clock.Now()}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := c.kv.Set(ctx, c.entryKey(country), string(raw), c.ttl); err != nil {
		return fmt.Errorf("failed to write cache for %s: %w", country, err)
	}
	c.logger.Debug("Calendar cached",
		zap.String("country", string(country)),
		zap.Int("bytes", len(raw)),
	)
	return nil
}

// readEntry 读取未过期条目；过期条目被删除
func (c *Cache) readEntry(ctx context.Context, country domain.Country) (Entry, string, bool, error) {
	key := c.entryKey(country)
	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return Entry{}, "", false, nil
		}
		return Entry{}, "", false, fmt.Errorf("failed to read cache for %s: %w", country, err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.logger.Warn("Corrupt calendar cache entry, evicting",
			zap.String("country", string(country)),
			zap.Error(err),
		)
		_ = c.kv.Delete(ctx, key)
		return Entry{}, "", false, nil
	}

	if c.clock.Now().Sub(entry.FetchedAt) >= c.ttl {
		c.logger.Info("Calendar cache expired, evicting",
			zap.String("country", string(country)),
			zap.Time("fetched_at", entry.FetchedAt),
		)
		if err := c.kv.Delete(ctx, key); err != nil {
			return Entry{}, "", false, fmt.Errorf("failed to evict cache for %s: %w", country, err)
		}
		return Entry{}, "", false, nil
	}
	return entry, raw, true, nil
}

// Get 读取缓存；未命中或已过期返回 ok=false
func (c *Cache) Get(ctx context.Context, country domain.Country) (domain.VaccineData, bool, error) {
	entry, _, ok, err := c.readEntry(ctx, country)
	if err != nil || !ok {
		return domain.VaccineData{}, false, err
	}
	return entry.Data, true, nil
}

// IsCached 是否存在未过期缓存
func (c *Cache) IsCached(ctx context.Context, country domain.Country) (bool, error) {
	_, _, ok, err := c.readEntry(ctx, country)
	return ok, err
}

// CachedAt 缓存时间；无缓存返回 ok=false
func (c *Cache) CachedAt(ctx context.Context, country domain.Country) (time.Time, bool, error) {
	entry, _, ok, err := c.readEntry(ctx, country)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return entry.FetchedAt, true, nil
}

// Size 单个国家缓存的字节数
func (c *Cache) Size(ctx context.Context, country domain.Country) (int, error) {
	_, raw, ok, err := c.readEntry(ctx, country)
	if err != nil || !ok {
		return 0, err
	}
	return len(raw), nil
}

// TotalSize 所有国家缓存的字节数
func (c *Cache) TotalSize(ctx context.Context) (int, error) {
	total := 0
	for _, country := range domain.AllCountries {
		n, err := c.Size(ctx, country)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Clear 删除单个国家缓存
func (c *Cache) Clear(ctx context.Context, country domain.Country) error {
	if err := c.kv.Delete(ctx, c.entryKey(country)); err != nil {
		return fmt.Errorf("failed to clear cache for %s: %w", country, err)
	}
	return nil
}

// ClearAll 删除全部日历缓存；已下载列表保留（只由 RemoveDownloadedCountry 修改）
func (c *Cache) ClearAll(ctx context.Context) error {
	keys := make([]string, 0, len(domain.AllCountries))
	for _, country := range domain.AllCountries {
		keys = append(keys, c.entryKey(country))
	}
	if err := c.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear calendar cache: %w", err)
	}
	c.logger.Info("Calendar cache cleared")
	return nil
}

// DownloadedCountries 已下载国家（按加入顺序）
func (c *Cache) DownloadedCountries(ctx context.Context) ([]domain.Country, error) {
	raw, err := c.kv.Get(ctx, keyDownloaded)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return []domain.Country{}, nil
		}
		return nil, fmt.Errorf("failed to read downloaded countries: %w", err)
	}
	var list []domain.Country
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		c.logger.Warn("Corrupt downloaded-country list, treating as empty", zap.Error(err))
		return []domain.Country{}, nil
	}
	if list == nil {
		list = []domain.Country{}
	}
	return list, nil
}

func (c *Cache) saveDownloaded(ctx context.Context, list []domain.Country) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal downloaded countries: %w", err)
	}
	if err := c.kv.Set(ctx, keyDownloaded, string(raw), 0); err != nil {
		return fmt.Errorf("failed to write downloaded countries: %w", err)
	}
	return nil
}

// AddDownloadedCountry 加入已下载列表（幂等）
func (c *Cache) AddDownloadedCountry(ctx context.Context, country domain.Country) error {
	list, err := c.DownloadedCountries(ctx)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing == country {
			return nil
		}
	}
	return c.saveDownloaded(ctx, append(list, country))
}

// RemoveDownloadedCountry 移出已下载列表，并删除其缓存
func (c *Cache) RemoveDownloadedCountry(ctx context.Context, country domain.Country) error {
	list, err := c.DownloadedCountries(ctx)
	if err != nil {
		return err
	}
	kept := make([]domain.Country, 0, len(list))
	for _, existing := range list {
		if existing != country {
			kept = append(kept, existing)
		}
	}
	if err := c.saveDownloaded(ctx, kept); err != nil {
		return err
	}
	return c.Clear(ctx, country)
}

// IsDownloaded 是否在已下载列表中
func (c *Cache) IsDownloaded(ctx context.Context, country domain.Country) (bool, error) {
	list, err := c.DownloadedCountries(ctx)
	if err != nil {
		return false, err
	}
	for _, existing := range list {
		if existing == country {
			return true, nil
		}
	}
	return false, nil
}
