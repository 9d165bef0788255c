package config

import (
	"os"
	"strconv"
	"time"
)

type Settings struct {
	Server    ServerConfig
	Crawler   CrawlerConfig
	Colly     CollyConfig
	Scanner   ScannerConfig
	Messaging MessagingConfig
	Export    ExportConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	KeepAlive       time.Duration
}

type CrawlerConfig struct {
	UserAgent           string
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
}

type CollyConfig struct {
	Enabled     bool
	UserAgent   string
	Delay       time.Duration
	RandomDelay time.Duration
	Parallelism int
	DomainGlob  string
	Timeout     time.Duration
	DebugMode   bool
}

type ScannerConfig struct {
	Mode             string
	Interval         time.Duration
	FallbackInterval time.Duration
}

type MessagingConfig struct {
	RemoteURL string
	Timeout   time.Duration
}

type ExportConfig struct {
	SettingsPath string
}

type LogConfig struct {
	Level string
}

func Load() *Settings {
	return &Settings{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8081"),
			ReadTimeout:     getDurationEnv("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 0),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
			KeepAlive:       getDurationEnv("SSE_KEEPALIVE", 15*time.Second),
		},
		Crawler: CrawlerConfig{
			UserAgent:           getEnv("USER_AGENT", "Mozilla/5.0 (compatible; AlbumScanner/1.0)"),
			Timeout:             getDurationEnv("CRAWLER_TIMEOUT", 30*time.Second),
			MaxIdleConns:        getIntEnv("MAX_IDLE_CONNS", 100),
			MaxIdleConnsPerHost: getIntEnv("MAX_IDLE_CONNS_PER_HOST", 10),
			IdleConnTimeout:     getDurationEnv("IDLE_CONN_TIMEOUT", 30*time.Second),
			TLSHandshakeTimeout: getDurationEnv("TLS_HANDSHAKE_TIMEOUT", 10*time.Second),
		},
		Colly: CollyConfig{
			Enabled:     getBoolEnv("COLLY_ENABLED", false),
			UserAgent:   getEnv("COLLY_USER_AGENT", "Mozilla/5.0 (compatible; AlbumScanner-Colly/1.0)"),
			Delay:       getDurationEnv("COLLY_DELAY", 0),
			RandomDelay: getDurationEnv("COLLY_RANDOM_DELAY", 0),
			Parallelism: getIntEnv("COLLY_PARALLELISM", 2),
			DomainGlob:  getEnv("COLLY_DOMAIN_GLOB", "*"),
			Timeout:     getDurationEnv("COLLY_TIMEOUT", 45*time.Second),
			DebugMode:   getBoolEnv("COLLY_DEBUG", false),
		},
		Scanner: ScannerConfig{
			Mode:             getEnv("SCAN_MODE", "polling"),
			Interval:         getDurationEnv("SCAN_INTERVAL", time.Second),
			FallbackInterval: getDurationEnv("SCAN_FALLBACK_INTERVAL", 5*time.Second),
		},
		Messaging: MessagingConfig{
			RemoteURL: getEnv("MESSAGING_URL", ""),
			Timeout:   getDurationEnv("MESSAGING_TIMEOUT", 10*time.Second),
		},
		Export: ExportConfig{
			SettingsPath: getEnv("SETTINGS_PATH", "./data/settings.json"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
