package redis

import (
	"context"
	"fmt"
	"time"

	"vaxtrack/internal/config"

	"github.com/go-redis/redis/v8"
)

type Client = redis.Client

// NewRedisClient 记录存储 / 日历缓存使用的 Redis 客户端
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// Ping 启动时确认 Redis 可用，最多等待 5 秒
func Ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis %s: %w", client.Options().Addr, err)
	}
	return nil
}

// Close 关闭客户端；client 为 nil 时忽略
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
