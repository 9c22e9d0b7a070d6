package config

import (
	"os"
	"strconv"
	"time"
)

// 存储后端
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config vaxtrack 服务配置
type Config struct {
	HTTP struct {
		Addr string
	}

	// StoreBackend 记录存储与日历缓存共用的 KV 后端：memory / redis / postgres
	StoreBackend string
	Database     DatabaseConfig
	Redis        RedisConfig

	Calendar struct {
		// BaseURL 可下载国家的日历地址前缀，实际请求 <BaseURL>/<country_key>.json
		BaseURL      string
		FetchTimeout time.Duration
		CacheTTL     time.Duration
		// ReachabilityProbe: "tcp" 先拨号探测再请求；"none" 跳过探测
		ReachabilityProbe string
	}

	Reminder struct {
		Enabled       bool
		Interval      time.Duration
		LookaheadDays int
	}

	MQTT MQTTConfig

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置（带默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.StoreBackend = getEnv("STORE_BACKEND", StoreRedis)

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "vaxtrack"
	cfg.Database.SSLMode = "disable"
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Calendar.BaseURL = getEnv("CALENDAR_BASE_URL", "https://raw.githubusercontent.com/vaccine-calendars/data/main")
	cfg.Calendar.FetchTimeout = time.Duration(parseInt(getEnv("CALENDAR_FETCH_TIMEOUT", "30"), 30)) * time.Second
	if cfg.Calendar.FetchTimeout <= 0 {
		cfg.Calendar.FetchTimeout = 30 * time.Second
	}
	ttlDays := parseInt(getEnv("CALENDAR_CACHE_TTL_DAYS", "30"), 30)
	if ttlDays <= 0 {
		ttlDays = 30
	}
	cfg.Calendar.CacheTTL = time.Duration(ttlDays) * 24 * time.Hour
	cfg.Calendar.ReachabilityProbe = getEnv("REACHABILITY_PROBE", "tcp")

	cfg.Reminder.Enabled = getEnv("REMINDER_ENABLED", "true") == "true"
	interval := parseInt(getEnv("REMINDER_INTERVAL", "60"), 60)
	if interval <= 0 {
		interval = 60 // 默认 60 秒检查一次到期提醒
	}
	cfg.Reminder.Interval = time.Duration(interval) * time.Second
	cfg.Reminder.LookaheadDays = parseInt(getEnv("REMINDER_LOOKAHEAD_DAYS", "90"), 90)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "vaxtrack"
	cfg.MQTT.QoS = 1
	cfg.MQTT.TopicPrefix = "vaxtrack/reminders"
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
