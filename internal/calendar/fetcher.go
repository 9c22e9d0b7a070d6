package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vaxtrack/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Fetcher 下载某国的日历文档（原始字节）
type Fetcher interface {
	Fetch(ctx context.Context, country domain.Country) ([]byte, error)
}

// HTTPFetcher 基于 resty 的远程日历下载
// 不做重试；超时由调用方的 context 和客户端超时共同约束
type HTTPFetcher struct {
	client  *resty.Client
	baseURL string
	logger  *zap.Logger
}

// NewHTTPFetcher 创建下载客户端
func NewHTTPFetcher(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPFetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// RemoteURL 某国日历的下载地址
func (f *HTTPFetcher) RemoteURL(country domain.Country) string {
	return fmt.Sprintf("%s/%s.json", f.baseURL, country.Key())
}

func (f *HTTPFetcher) Fetch(ctx context.Context, country domain.Country) ([]byte, error) {
	url := f.RemoteURL(country)
	f.logger.Info("Downloading vaccine calendar",
		zap.String("country", string(country)),
		zap.String("url", url),
	)

	start := time.Now()
	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		f.logger.Error("Calendar download failed",
			zap.String("country", string(country)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to download calendar: %w", err)
	}

	if resp.IsError() {
		f.logger.Error("Calendar server returned error",
			zap.String("country", string(country)),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("calendar server returned status %d", resp.StatusCode())
	}

	f.logger.Info("Calendar downloaded",
		zap.String("country", string(country)),
		zap.Int("bytes", len(resp.Body())),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp.Body(), nil
}
