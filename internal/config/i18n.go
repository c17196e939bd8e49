package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// I18nStrings holds all localized strings
type I18nStrings map[string]string

// String keys.
const (
	KeyEmptyTitle     = "feed.empty.title"
	KeyEmptyHint      = "feed.empty.hint"
	KeyEmptyMarkup    = "feed.empty.markup"
	KeyLoadFailed     = "feed.load_failed"
	KeyArticlesFailed = "articles.load_failed"
	KeyImageAlt       = "post.image_alt"
	KeyFollow         = "follow.follow"
	KeyUnfollow       = "follow.unfollow"
	KeyFollowers      = "follow.followers"
	KeyFollowing      = "follow.following"
)

// defaultStrings are used for keys the loaded file does not define.
var defaultStrings = I18nStrings{
	KeyEmptyTitle:     "Zatiaľ žiadne príspevky",
	KeyEmptyHint:      "Buď prvý, kto zdieľa svoju skúsenosť s rastlinami!",
	KeyLoadFailed:     "Nepodarilo sa načítať príspevky.",
	KeyArticlesFailed: "Nepodarilo sa načítať články.",
	KeyImageAlt:       "Obrázok príspevku",
	KeyFollow:         "Follow",
	KeyUnfollow:       "Unfollow",
	KeyFollowers:      "Sledujúci: %d",
	KeyFollowing:      "Sleduje: %d",
}

var (
	i18nStrings   I18nStrings
	i18nMu        sync.RWMutex
	i18nConfigDir = getEnvOrDefault("I18N_CONFIG_DIR", "config/i18n")
	defaultLang   = getEnvOrDefault("I18N_DEFAULT_LANG", "sk")
)

// InitI18n initializes the i18n system. Call this during startup.
func InitI18n() {
	if err := loadI18nConfig(); err != nil {
		slog.Warn("could not load i18n config, using built-in strings", "error", err)
	}
}

// I18nPath returns the file the strings are read from.
func I18nPath() string {
	return filepath.Join(i18nConfigDir, defaultLang+".json")
}

func loadI18nConfig() error {
	configPath := I18nPath()
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", configPath)
		}
		return fmt.Errorf("could not read %s: %w", configPath, err)
	}

	var strings I18nStrings
	if err := json.Unmarshal(data, &strings); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", configPath, err)
	}

	i18nMu.Lock()
	i18nStrings = strings
	i18nMu.Unlock()
	slog.Info("loaded i18n strings", "count", len(strings), "path", configPath)
	return nil
}

// ReloadI18nConfig reloads the i18n configuration from disk
func ReloadI18nConfig() error {
	return loadI18nConfig()
}

// I18n looks up a localized string by key. Keys missing from the loaded
// file fall back to the built-in string, then to the key itself.
func I18n(key string) string {
	i18nMu.RLock()
	defer i18nMu.RUnlock()

	if val, ok := i18nStrings[key]; ok {
		return val
	}
	if val, ok := defaultStrings[key]; ok {
		return val
	}
	return key
}

// Keys returns every string key the feed looks up, sorted. The second
// result holds the keys whose value is a format string taking one count.
func Keys() (all []string, counted []string) {
	for k := range defaultStrings {
		all = append(all, k)
	}
	all = append(all, KeyEmptyMarkup)
	sort.Strings(all)
	return all, []string{KeyFollowers, KeyFollowing}
}

// I18nOptional returns the string for key, or "" when nothing defines it.
func I18nOptional(key string) string {
	if v := I18n(key); v != key {
		return v
	}
	return ""
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
