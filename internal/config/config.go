package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// One-shot inputs. When Keyword or URLs is set, the process resolves
	// them and exits instead of serving the HTTP API.
	Keyword      string
	URLs         []string
	Limit        int
	AcceptStream bool
	SerpFallback bool

	HTTPPort    string
	WorkerCount int
	MaxTabs     int

	PrimaryHost string
	MirrorHost  string

	SerpAPIURL   string
	SerpAPIKey   string
	BingEnabled  bool
	MeiliURL     string
	MeiliAPIKey  string

	MongoURL  string
	MongoDB   string
	NatsURL   string

	ArtifactsDir  string
	DownloadMedia bool

	ItemTimeout   time.Duration
	NavTimeout    time.Duration
	SettleDelay   time.Duration
	ScrollSteps   int
	NavPerMinute  int
}

func Load() *Config {
	// Best effort, env vars win over .env values.
	_ = godotenv.Load()

	return &Config{
		Keyword:      getEnv("KEYWORD", ""),
		URLs:         getEnvList("URLS"),
		Limit:        getEnvInt("LIMIT", 3),
		AcceptStream: getEnvBool("ACCEPT_STREAM", false),
		SerpFallback: getEnvBool("SERP_FALLBACK", true),

		HTTPPort:    getEnv("HTTP_PORT", "8083"),
		WorkerCount: getEnvInt("WORKER_COUNT", 2),
		MaxTabs:     getEnvInt("MAX_BROWSER_TABS", 4),

		PrimaryHost: getEnv("PRIMARY_HOST", "www.kuaishou.com"),
		MirrorHost:  getEnv("MIRROR_HOST", "m.kuaishou.com"),

		SerpAPIURL:  getEnv("SERP_API_URL", ""),
		SerpAPIKey:  getEnv("SERP_API_KEY", ""),
		BingEnabled: getEnvBool("BING_BACKEND", true),
		MeiliURL:    getEnv("MEILI_URL", ""),
		MeiliAPIKey: getEnv("MEILI_API_KEY", ""),

		MongoURL: getEnv("MONGO_URL", ""),
		MongoDB:  getEnv("MONGO_DB", "kuaishou"),
		NatsURL:  getEnv("NATS_URL", ""),

		ArtifactsDir:  getEnv("ARTIFACTS_DIR", "./artifacts"),
		DownloadMedia: getEnvBool("DOWNLOAD_MEDIA", false),

		ItemTimeout:  getEnvDuration("ITEM_TIMEOUT", 3*time.Minute),
		NavTimeout:   getEnvDuration("NAV_TIMEOUT", 45*time.Second),
		SettleDelay:  getEnvDuration("SETTLE_DELAY", 2*time.Second),
		ScrollSteps:  getEnvInt("SCROLL_STEPS", 6),
		NavPerMinute: getEnvInt("NAV_PER_MINUTE", 20),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
