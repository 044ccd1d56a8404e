package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// Graph API：版本、页面令牌、是否开 live_comments 推流
	FBGraphVersion    string
	FBPageAccessToken string
	FBUseSSE          bool

	// 预订保留时长与过期清扫间隔
	HoldTTL       time.Duration
	SweepInterval time.Duration

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（引擎原子入流，Relay 异步转 Kafka）
	ReservationEventStream   string
	ReservationEventGroup    string
	ReservationEventConsumer string

	// 管理端接口限流
	AdminRateLimit  int
	AdminRateWindow time.Duration
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DBPath:                   getEnv("DB_PATH", "live_commerce.db"),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:                  0,
		FBGraphVersion:           getEnv("FB_GRAPH_VERSION", "v23.0"),
		FBPageAccessToken:        getEnv("FB_PAGE_ACCESS_TOKEN", ""),
		FBUseSSE:                 strings.EqualFold(getEnv("FB_USE_SSE", "false"), "true"),
		HoldTTL:                  15 * time.Minute,
		SweepInterval:            time.Minute,
		KafkaBrokers:             splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:               getEnv("KAFKA_TOPIC", "reservation-events"),
		KafkaGroupID:             getEnv("KAFKA_GROUP_ID", "reservation-event-journal"),
		ReservationEventStream:   getEnv("RESERVATION_EVENT_STREAM", "live_commerce:reservation_events"),
		ReservationEventGroup:    getEnv("RESERVATION_EVENT_GROUP", "live-commerce-relay-group"),
		ReservationEventConsumer: getEnv("RESERVATION_EVENT_CONSUMER", "live-commerce-relay-1"),
		AdminRateLimit:           60,
		AdminRateWindow:          time.Minute,
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	holdTTLMin, err := getEnvInt("HOLD_TTL_MIN", int(cfg.HoldTTL.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid HOLD_TTL_MIN: %w", err)
	}
	if holdTTLMin <= 0 {
		return AppConfig{}, fmt.Errorf("HOLD_TTL_MIN must be > 0")
	}
	cfg.HoldTTL = time.Duration(holdTTLMin) * time.Minute

	sweepSec, err := getEnvInt("SWEEP_INTERVAL_SEC", int(cfg.SweepInterval.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SWEEP_INTERVAL_SEC: %w", err)
	}
	if sweepSec <= 0 {
		return AppConfig{}, fmt.Errorf("SWEEP_INTERVAL_SEC must be > 0")
	}
	cfg.SweepInterval = time.Duration(sweepSec) * time.Second

	rateLimit, err := getEnvInt("ADMIN_RATE_LIMIT", cfg.AdminRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ADMIN_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("ADMIN_RATE_LIMIT must be > 0")
	}
	cfg.AdminRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("ADMIN_RATE_WINDOW_SEC", int(cfg.AdminRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ADMIN_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("ADMIN_RATE_WINDOW_SEC must be > 0")
	}
	cfg.AdminRateWindow = time.Duration(rateWindowSec) * time.Second

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.ReservationEventStream == "" {
		return AppConfig{}, fmt.Errorf("RESERVATION_EVENT_STREAM must not be empty")
	}
	if cfg.ReservationEventGroup == "" {
		return AppConfig{}, fmt.Errorf("RESERVATION_EVENT_GROUP must not be empty")
	}
	if cfg.ReservationEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("RESERVATION_EVENT_CONSUMER must not be empty")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
