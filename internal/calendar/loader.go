package calendar

import (
	"context"
	"time"

	"vaxtrack/internal/cache"
	"vaxtrack/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout 单次下载的超时
const DefaultFetchTimeout = 30 * time.Second

// Loader 离线优先的日历加载
// - 内置国家：只读内置文件，不访问网络
// - 可下载国家：新鲜缓存 → 可达性探测 → 单次下载 → 写入缓存并标记已下载
// - 同一国家的并发加载共享一次下载
type Loader struct {
	bundle  *Bundle
	cache   *cache.Cache
	fetcher Fetcher
	reach   Reachability
	timeout time.Duration
	logger  *zap.Logger

	group singleflight.Group
}

func NewLoader(bundle *Bundle, c *cache.Cache, fetcher Fetcher, reach Reachability, timeout time.Duration, logger *zap.Logger) *Loader {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if reach == nil {
		reach = AlwaysReachable{}
	}
	return &Loader{
		bundle:  bundle,
		cache:   c,
		fetcher: fetcher,
		reach:   reach,
		timeout: timeout,
		logger:  logger,
	}
}

// LoadVaccines 加载某国的接种日历
func (l *Loader) LoadVaccines(ctx context.Context, country domain.Country) (domain.VaccineData, error) {
	if !country.IsValid() {
		return domain.VaccineData{}, newLoadError(ErrUnknownCountry, country, nil)
	}
	if country.IsBuiltIn() {
		return l.bundle.Load(country)
	}

	if data, ok := l.cachedData(ctx, country); ok {
		return data, nil
	}

	ch := l.group.DoChan(country.Key(), func() (any, error) {
		// 下载不随单个调用方取消；只受超时约束
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		return l.download(fetchCtx, country)
	})

	select {
	case <-ctx.Done():
		return domain.VaccineData{}, newLoadError(ErrNetwork, country, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.VaccineData{}, res.Err
		}
		if res.Shared {
			l.logger.Debug("Calendar download shared with concurrent callers",
				zap.String("country", string(country)),
			)
		}
		return res.Val.(domain.VaccineData), nil
	}
}

// cachedData 读取新鲜缓存；缓存后端异常只记日志
func (l *Loader) cachedData(ctx context.Context, country domain.Country) (domain.VaccineData, bool) {
	data, ok, err := l.cache.Get(ctx, country)
	if err != nil {
		l.logger.Warn("Calendar cache unavailable",
			zap.String("country", string(country)),
			zap.Error(err),
		)
		return domain.VaccineData{}, false
	}
	return data, ok
}

func (l *Loader) download(ctx context.Context, country domain.Country) (domain.VaccineData, error) {
	// 等待期间其他调用可能已写入缓存
	if data, ok := l.cachedData(ctx, country); ok {
		return data, nil
	}

	if !l.reach.IsReachable(ctx) {
		l.logger.Warn("No internet connection, calendar not available offline",
			zap.String("country", string(country)),
		)
		return domain.VaccineData{}, newLoadError(ErrNoInternetConnection, country, nil)
	}

	raw, err := l.fetcher.Fetch(ctx, country)
	if err != nil {
		return domain.VaccineData{}, newLoadError(ErrNetwork, country, err)
	}

	data, err := parseCalendar(raw, country)
	if err != nil {
		l.logger.Error("Downloaded calendar is malformed",
			zap.String("country", string(country)),
			zap.Error(err),
		)
		return domain.VaccineData{}, newLoadError(ErrParsing, country, err)
	}

	if err := l.cache.Put(ctx, country, data); err != nil {
		l.logger.Warn("Failed to cache downloaded calendar",
			zap.String("country", string(country)),
			zap.Error(err),
		)
	}
	if err := l.cache.AddDownloadedCountry(ctx, country); err != nil {
		l.logger.Warn("Failed to mark country as downloaded",
			zap.String("country", string(country)),
			zap.Error(err),
		)
	}
	return data, nil
}
