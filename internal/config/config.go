package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Forum
	ForumURL      string
	DomainMonitor string

	// Crawl
	CrawlInterval     time.Duration // seconds between incremental cycles
	ThreadRevisit     time.Duration // age after which a thread is due again
	MaxConcurrency    int           // concurrent thread fetches per cycle
	InitialPages      int           // listing pages crawled unconditionally
	RequestThrottleMs int           // minimum delay between any two requests
	PurgeOnStart      bool

	// Trackers
	TrackersURL string

	// Server
	ServerHost string
	ServerPort string

	// Paths
	BlacklistFile string // $CONFIG_DIR/blacklist.txt
	DatabaseFile  string // $CONFIG_DIR/tamilarr.db unless overridden

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("FORUM_URL", "https://www.1tamilblasters.fi/index.php?/forums/forum/63-tamil-new-web-series-tv-shows/")
	viper.SetDefault("DOMAIN_MONITOR", "www.1tamilblasters.fi")
	viper.SetDefault("CRAWL_INTERVAL", 1800)
	viper.SetDefault("THREAD_REVISIT_HOURS", 24)
	viper.SetDefault("MAX_CONCURRENCY", 8)
	viper.SetDefault("INITIAL_PAGES", 5)
	viper.SetDefault("REQUEST_THROTTLE_MS", 250)
	viper.SetDefault("PURGE_ON_START", false)
	viper.SetDefault("TRACKERS_URL", "https://ngosang.github.io/trackerslist/trackers_best.txt")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")

	// NOW read CONFIG_DIR from viper (which has loaded .env file)
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "tamilarr")
	} else {
		// Convert relative path to absolute path
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	databaseFile := viper.GetString("DATABASE_FILE")
	if databaseFile == "" {
		databaseFile = filepath.Join(configDir, "tamilarr.db")
	}

	config := &Config{
		// Forum
		ForumURL:      viper.GetString("FORUM_URL"),
		DomainMonitor: viper.GetString("DOMAIN_MONITOR"),

		// Crawl
		CrawlInterval:     time.Duration(viper.GetInt("CRAWL_INTERVAL")) * time.Second,
		ThreadRevisit:     time.Duration(viper.GetInt("THREAD_REVISIT_HOURS")) * time.Hour,
		MaxConcurrency:    viper.GetInt("MAX_CONCURRENCY"),
		InitialPages:      viper.GetInt("INITIAL_PAGES"),
		RequestThrottleMs: viper.GetInt("REQUEST_THROTTLE_MS"),
		PurgeOnStart:      viper.GetBool("PURGE_ON_START"),

		// Trackers
		TrackersURL: viper.GetString("TRACKERS_URL"),

		// Server
		ServerHost: viper.GetString("SERVER_HOST"),
		ServerPort: viper.GetString("SERVER_PORT"),

		// Paths
		BlacklistFile: filepath.Join(configDir, "blacklist.txt"),
		DatabaseFile:  databaseFile,

		// Logging
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	// Validate required fields
	if config.ForumURL == "" {
		return nil, fmt.Errorf("FORUM_URL is required")
	}
	if config.CrawlInterval <= 0 {
		return nil, fmt.Errorf("CRAWL_INTERVAL must be positive")
	}
	if config.ThreadRevisit <= 0 {
		return nil, fmt.Errorf("THREAD_REVISIT_HOURS must be positive")
	}
	if config.MaxConcurrency < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENCY must be at least 1")
	}
	if config.InitialPages < 1 {
		return nil, fmt.Errorf("INITIAL_PAGES must be at least 1")
	}
	if config.RequestThrottleMs < 0 {
		return nil, fmt.Errorf("REQUEST_THROTTLE_MS cannot be negative")
	}

	return config, nil
}
