package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the trading overlay agent.
type Config struct {
	// HTTP API settings
	BindAddr     string
	AutoFallback bool

	// Broker gateway settings
	BrokerBaseURL   string
	BrokerTimeoutMS int
	FeedURL         string

	// Instrument settings: "DISPLAY:CONTRACT:TICK" entries, comma separated.
	TickTable string

	// Persistence settings
	StateDir      string
	JournalDir    string
	MaxFileSizeMB int
	BufferSize    int

	// Chart bridge (CDP) settings
	BridgeEnabled  bool
	CDPAddress     string
	CDPPort        int
	TabURLFilter   string
	ViewportPollMS int

	// Logging
	LogLevel string
	LogFile  string

	// Optional push notification endpoint
	NotifyEndpoint string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:        getEnvOrDefault("AGENT_BIND_ADDR", "127.0.0.1:8288"),
		AutoFallback:    getEnvBoolOrDefault("AGENT_BIND_AUTO_FALLBACK", true),
		BrokerBaseURL:   getEnvOrDefault("BROKER_BASE_URL", "http://127.0.0.1:8090/api"),
		BrokerTimeoutMS: getEnvIntOrDefault("BROKER_TIMEOUT_MS", 15000),
		FeedURL:         getEnvOrDefault("BROKER_FEED_URL", "ws://127.0.0.1:8090/api/stream"),
		TickTable:       getEnvOrDefault("AGENT_TICK_TABLE", "NQ:NQZ5:0.25,ES:ESZ5:0.25,MNQ:MNQZ5:0.25,MES:MESZ5:0.25,CL:CLF6:0.01,GC:GCZ5:0.10"),
		StateDir:        getEnvOrDefault("AGENT_STATE_DIR", "./state"),
		JournalDir:      getEnvOrDefault("AGENT_JOURNAL_DIR", "./journal"),
		MaxFileSizeMB:   getEnvIntOrDefault("AGENT_JOURNAL_MAX_FILE_SIZE_MB", 50),
		BufferSize:      getEnvIntOrDefault("AGENT_JOURNAL_BUFFER_SIZE", 1000),
		BridgeEnabled:   getEnvBoolOrDefault("CHART_BRIDGE_ENABLED", false),
		CDPAddress:      getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:         getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		TabURLFilter:    getEnvOrDefault("CHART_BRIDGE_TAB_URL_FILTER", "tradingview.com"),
		ViewportPollMS:  getEnvIntOrDefault("CHART_BRIDGE_POLL_MS", 250),
		LogLevel:        strings.ToLower(getEnvOrDefault("AGENT_LOG_LEVEL", "info")),
		LogFile:         getEnvOrDefault("AGENT_LOG_FILE", "logs/overlay_agent.log"),
		NotifyEndpoint:  getEnvOrDefault("AGENT_NOTIFY_ENDPOINT", ""),
	}

	if cfg.BrokerTimeoutMS < 1000 {
		cfg.BrokerTimeoutMS = 1000
	}
	if cfg.ViewportPollMS < 50 {
		cfg.ViewportPollMS = 50
	}

	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint used by the chart bridge.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
