// Package config loads the feed host's settings and UI strings. Both come
// from JSON files with built-in defaults, are read once on first use and
// can be reloaded while the process runs.
package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"
)

// FeedConfig represents the feed.json configuration
type FeedConfig struct {
	// BackendURL is the server of record. Empty means local-only mode.
	BackendURL   string `json:"backendUrl"`
	JSONCreate   bool   `json:"jsonCreate"`   // send {author, content} instead of multipart
	ArticlesPath string `json:"articlesPath"` // backend path of the article list
	ArticlesFile string `json:"articlesFile"` // article file in local-only mode

	StoreBackend string `json:"storeBackend"` // "memory", "file" or "redis"
	StoreTarget  string `json:"storeTarget"`  // file path or redis URL

	PageFile   string `json:"pageFile"` // page markup; empty uses the built-in page
	ViewerName string `json:"viewerName"`

	DebounceMs         int    `json:"debounceMs"`
	CommentConcurrency int    `json:"commentConcurrency"`
	TimeLayout         string `json:"timeLayout"`
	Timezone           string `json:"timezone"`
}

var (
	feedConfig     *FeedConfig
	feedConfigMu   sync.RWMutex
	feedConfigOnce sync.Once
)

// GetFeedConfig returns the current feed configuration (thread-safe)
func GetFeedConfig() *FeedConfig {
	feedConfigOnce.Do(func() {
		feedConfigMu.Lock()
		defer feedConfigMu.Unlock()
		if feedConfig == nil {
			feedConfig = LoadFeedConfig(FeedConfigPath())
		}
	})

	feedConfigMu.RLock()
	defer feedConfigMu.RUnlock()
	return feedConfig
}

// ReloadFeedConfig reloads the configuration from file
func ReloadFeedConfig() error {
	newConfig := LoadFeedConfig(FeedConfigPath())
	feedConfigMu.Lock()
	defer feedConfigMu.Unlock()
	feedConfig = newConfig
	slog.Info("feed configuration reloaded", "backend", newConfig.BackendURL, "store", newConfig.StoreBackend)
	return nil
}

// FeedConfigPath returns FEED_CONFIG or the default path.
func FeedConfigPath() string {
	return getEnvOrDefault("FEED_CONFIG", "config/feed.json")
}

// LoadFeedConfig reads path over the defaults, then applies environment
// overrides. A missing or broken file leaves the defaults in place.
func LoadFeedConfig(path string) *FeedConfig {
	config := DefaultFeedConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, config); err != nil {
			slog.Error("invalid JSON in feed config, using defaults", "path", path, "error", err)
			config = DefaultFeedConfig()
		}
	case os.IsNotExist(err):
		slog.Debug("feed config file not found, using defaults", "path", path)
	default:
		slog.Warn("could not read feed config, using defaults", "path", path, "error", err)
	}

	applyEnv(config)
	if config.DebounceMs <= 0 {
		config.DebounceMs = 300
	}
	if config.CommentConcurrency <= 0 {
		config.CommentConcurrency = 4
	}
	return config
}

func applyEnv(c *FeedConfig) {
	if v := os.Getenv("BACKEND_URL"); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.StoreBackend = v
	}
	if v := os.Getenv("STORE_TARGET"); v != "" {
		c.StoreTarget = v
	} else if v := os.Getenv("REDIS_URL"); v != "" && c.StoreBackend == "redis" {
		c.StoreTarget = v
	}
	if v := os.Getenv("FEED_PAGE"); v != "" {
		c.PageFile = v
	}
	if v := os.Getenv("VIEWER_NAME"); v != "" {
		c.ViewerName = v
	}
	if v := os.Getenv("DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.DebounceMs = ms
		} else {
			slog.Warn("ignoring invalid DEBOUNCE_MS", "value", v)
		}
	}
}

// DefaultFeedConfig returns the built-in configuration
func DefaultFeedConfig() *FeedConfig {
	return &FeedConfig{
		ArticlesFile:       "articles.json",
		StoreBackend:       "memory",
		DebounceMs:         300,
		CommentConcurrency: 4,
		TimeLayout:         "2. 1. 2006 15:04:05",
		Timezone:           "Europe/Bratislava",
	}
}

// LocalOnly reports whether the feed runs without a backend.
func (c *FeedConfig) LocalOnly() bool {
	return c.BackendURL == ""
}

// Debounce returns the search debounce window.
func (c *FeedConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Location returns the display time zone, falling back to local time.
func (c *FeedConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, using local time", "timezone", c.Timezone, "error", err)
		return time.Local
	}
	return loc
}
