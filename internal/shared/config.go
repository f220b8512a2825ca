package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	GoogleAPIBase      string
	GoogleTokenURL     string
	GoogleClientID     string
	GoogleClientSecret string

	LLMBase  string
	LLMKey   string
	LLMModel string

	KafkaBrokers []string // empty disables event publishing
	KafkaTopic   string

	SyncCron  string
	BatchSize int
	Workers   int
	CacheTTL  time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/reviewradar?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		GoogleAPIBase:      env("GOOGLE_API_BASE", "https://mybusiness.googleapis.com/v4"),
		GoogleTokenURL:     env("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		GoogleClientID:     env("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: env("GOOGLE_CLIENT_SECRET", ""),

		LLMBase:  env("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMKey:   env("LLM_API_KEY", ""),
		LLMModel: env("LLM_MODEL", "gpt-4o-mini"),

		KafkaTopic: env("KAFKA_TOPIC", "review-events"),

		SyncCron:  env("SYNC_CRON", "*/30 * * * *"),
		BatchSize: atoi("SYNC_BATCH_SIZE", 10),
		Workers:   atoi("BACKFILL_WORKERS", 4),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
	}
	if b := env("KAFKA_BROKERS", ""); b != "" {
		for _, p := range strings.Split(b, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.KafkaBrokers = append(c.KafkaBrokers, p)
			}
		}
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		log.Warn().Msg("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET are empty; token refresh will fail")
	}
	if c.LLMKey == "" {
		log.Warn().Msg("LLM_API_KEY is empty; scoring will fail")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
