package calendar

import (
	"context"
	"fmt"
	"time"

	"vaxtrack/internal/cache"
	"vaxtrack/internal/domain"

	"go.uber.org/zap"
)

// CountryInfo 国家选择列表中的一项
type CountryInfo struct {
	Country       domain.Country `json:"country"`
	Flag          string         `json:"flag"`
	BuiltIn       bool           `json:"builtIn"`
	Downloaded    bool           `json:"downloaded"`
	Cached        bool           `json:"cached"`
	CachedAt      *time.Time     `json:"cachedAt,omitempty"`
	CacheSize     int            `json:"cacheSize"`
	NeedsDownload bool           `json:"needsDownload"`
}

// Repository 接种日历仓库
type Repository struct {
	loader *Loader
	cache  *cache.Cache
	logger *zap.Logger
}

func NewRepository(loader *Loader, c *cache.Cache, logger *zap.Logger) *Repository {
	return &Repository{loader: loader, cache: c, logger: logger}
}

// GetSchedule 某国的有序接种日历（强制在前、推荐在后）
func (r *Repository) GetSchedule(ctx context.Context, country domain.Country) (domain.Schedule, error) {
	data, err := r.loader.LoadVaccines(ctx, country)
	if err != nil {
		return domain.Schedule{}, err
	}
	return data.Schedule(country), nil
}

// GetVaccineByID 找不到返回 ok=false，不视为错误
func (r *Repository) GetVaccineByID(ctx context.Context, country domain.Country, vaccineID string) (domain.VaccineDefinition, bool, error) {
	schedule, err := r.GetSchedule(ctx, country)
	if err != nil {
		return domain.VaccineDefinition{}, false, err
	}
	v, ok := schedule.VaccineByID(vaccineID)
	return v, ok, nil
}

// Countries 所有国家及其下载/缓存状态
func (r *Repository) Countries(ctx context.Context) ([]CountryInfo, error) {
	downloaded, err := r.cache.DownloadedCountries(ctx)
	if err != nil {
		return nil, err
	}
	isDownloaded := make(map[domain.Country]bool, len(downloaded))
	for _, c := range downloaded {
		isDownloaded[c] = true
	}

	infos := make([]CountryInfo, 0, len(domain.AllCountries))
	for _, country := range domain.AllCountries {
		info := CountryInfo{
			Country:    country,
			Flag:       country.Flag(),
			BuiltIn:    country.IsBuiltIn(),
			Downloaded: isDownloaded[country],
		}
		if !info.BuiltIn {
			at, ok, err := r.cache.CachedAt(ctx, country)
			if err != nil {
				return nil, err
			}
			if ok {
				info.Cached = true
				info.CachedAt = &at
				if info.CacheSize, err = r.cache.Size(ctx, country); err != nil {
					return nil, err
				}
			}
			info.NeedsDownload = !info.Cached
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Download 预先下载某国日历（内置国家直接返回内置数据）
func (r *Repository) Download(ctx context.Context, country domain.Country) (domain.Schedule, error) {
	schedule, err := r.GetSchedule(ctx, country)
	if err != nil {
		return domain.Schedule{}, err
	}
	r.logger.Info("Country calendar available",
		zap.String("country", string(country)),
		zap.Int("vaccines", len(schedule.Vaccines)),
	)
	return schedule, nil
}

// Remove 删除已下载国家及其缓存
func (r *Repository) Remove(ctx context.Context, country domain.Country) error {
	if !country.IsValid() {
		return newLoadError(ErrUnknownCountry, country, nil)
	}
	if country.IsBuiltIn() {
		return newLoadError(ErrBuiltInCountry, country, nil)
	}
	if err := r.cache.RemoveDownloadedCountry(ctx, country); err != nil {
		return fmt.Errorf("failed to remove country: %w", err)
	}
	return nil
}

// ClearCache 清空全部日历缓存
func (r *Repository) ClearCache(ctx context.Context) error {
	return r.cache.ClearAll(ctx)
}
