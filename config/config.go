package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Collector CollectorConfig
	Export    ExportConfig
	Courier   CourierConfig
	Packager  PackagerConfig
	Saver     SaverConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// DefaultProxy is the proxy URL for browser traffic.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// CollectorConfig controls page navigation and card scanning.
type CollectorConfig struct {
	// LibraryURL is the ad library page the collector works against.
	LibraryURL string

	// NavigationTimeout is the max time for a page navigation.
	NavigationTimeout time.Duration // default: 30s

	// ScanTimeout bounds one full card scan of the rendered page.
	ScanTimeout time.Duration // default: 20s

	// CardSelector overrides card discovery with an explicit CSS
	// selector. Empty means heuristic discovery by the library ID label.
	CardSelector string
}

// ExportConfig controls bulk export runs.
type ExportConfig struct {
	// BatchSize is the number of records per archive.
	BatchSize int // default: 5

	// Folder is the subdirectory saved files land in.
	Folder string // default: "AdPack"

	// GraceDelay keeps the final status visible before the selection clears.
	GraceDelay time.Duration // default: 3s

	// RestMin/RestMax bound the randomized pause between batches.
	RestMin time.Duration // default: 5s
	RestMax time.Duration // default: 12s

	// WebhookURL, when set, receives export lifecycle events.
	WebhookURL    string
	WebhookSecret string
}

// CourierConfig controls the request channel to the packaging side.
type CourierConfig struct {
	// QueueDepth is the request channel buffer.
	QueueDepth int // default: 8

	// Timeout is the per-call deadline.
	Timeout time.Duration // default: 120s
}

// PackagerConfig controls asset fetching and archive assembly.
type PackagerConfig struct {
	// Proxy is an optional proxy URL for asset fetches.
	Proxy string

	// FetchRatePerSec paces asset fetches; 0 disables pacing.
	FetchRatePerSec float64 // default: 2

	// FetchBurst is the limiter burst size.
	FetchBurst int // default: 4

	// AssetCacheEntries sizes the fetched-asset cache; 0 disables it.
	AssetCacheEntries int // default: 256
}

// SaverConfig controls the on-disk save primitive.
type SaverConfig struct {
	// RootDir is the directory all saved files live under.
	RootDir string // default: "./downloads"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("ADPACK_HOST", "0.0.0.0"),
			Port: envIntOr("ADPACK_PORT", 8080),
			Mode: envOr("ADPACK_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("ADPACK_HEADLESS", true),
			DefaultProxy: os.Getenv("ADPACK_PROXY"),
			NoSandbox:    envBoolOr("ADPACK_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("ADPACK_BROWSER_BIN"),
		},
		Collector: CollectorConfig{
			LibraryURL:        envOr("ADPACK_LIBRARY_URL", "https://www.facebook.com/ads/library/"),
			NavigationTimeout: envDurationOr("ADPACK_NAV_TIMEOUT", 30*time.Second),
			ScanTimeout:       envDurationOr("ADPACK_SCAN_TIMEOUT", 20*time.Second),
			CardSelector:      os.Getenv("ADPACK_CARD_SELECTOR"),
		},
		Export: ExportConfig{
			BatchSize:     envIntOr("ADPACK_BATCH_SIZE", 5),
			Folder:        envOr("ADPACK_FOLDER", "AdPack"),
			GraceDelay:    envDurationOr("ADPACK_GRACE_DELAY", 3*time.Second),
			RestMin:       envDurationOr("ADPACK_REST_MIN", 5*time.Second),
			RestMax:       envDurationOr("ADPACK_REST_MAX", 12*time.Second),
			WebhookURL:    os.Getenv("ADPACK_WEBHOOK_URL"),
			WebhookSecret: os.Getenv("ADPACK_WEBHOOK_SECRET"),
		},
		Courier: CourierConfig{
			QueueDepth: envIntOr("ADPACK_COURIER_QUEUE", 8),
			Timeout:    envDurationOr("ADPACK_COURIER_TIMEOUT", 120*time.Second),
		},
		Packager: PackagerConfig{
			Proxy:             envOr("ADPACK_FETCH_PROXY", os.Getenv("ADPACK_PROXY")),
			FetchRatePerSec:   envFloatOr("ADPACK_FETCH_RPS", 2.0),
			FetchBurst:        envIntOr("ADPACK_FETCH_BURST", 4),
			AssetCacheEntries: envIntOr("ADPACK_ASSET_CACHE_ENTRIES", 256),
		},
		Saver: SaverConfig{
			RootDir: envOr("ADPACK_SAVE_DIR", "./downloads"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("ADPACK_AUTH_ENABLED", true),
			APIKeys: envSliceOr("ADPACK_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("ADPACK_RATE_RPS", 5.0),
			Burst:             envIntOr("ADPACK_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("ADPACK_LOG_LEVEL", "info"),
			Format: envOr("ADPACK_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
