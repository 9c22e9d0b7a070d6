package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vaxtrack/internal/config"

	_ "github.com/lib/pq"
)

// connectTimeout 启动时 Ping 的最长等待
const connectTimeout = 10 * time.Second

// NewPostgresDB 打开 PostgreSQL 连接池并确认可用（kv_store 后端使用）
func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return db, nil
}

// Close 关闭连接池；db 为 nil 时忽略
func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
