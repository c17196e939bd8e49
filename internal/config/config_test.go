package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoadFeedConfigDefaults(t *testing.T) {
	c := LoadFeedConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, c.LocalOnly())
	assert.Equal(t, "memory", c.StoreBackend)
	assert.Equal(t, 300*time.Millisecond, c.Debounce())
	assert.Equal(t, 4, c.CommentConcurrency)
}

func TestLoadFeedConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"backendUrl":"http://file","debounceMs":120,"storeBackend":"file"}`), 0o644))

	c := LoadFeedConfig(path)
	assert.Equal(t, "http://file", c.BackendURL)
	assert.Equal(t, 120*time.Millisecond, c.Debounce())
	assert.Equal(t, "file", c.StoreBackend)
	assert.Equal(t, "articles.json", c.ArticlesFile, "unset fields keep defaults")

	t.Setenv("BACKEND_URL", "http://env")
	t.Setenv("DEBOUNCE_MS", "50")
	c = LoadFeedConfig(path)
	assert.Equal(t, "http://env", c.BackendURL)
	assert.Equal(t, 50*time.Millisecond, c.Debounce())
}

func TestLoadFeedConfigBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"backendUrl":`), 0o644))
	c := LoadFeedConfig(path)
	assert.Equal(t, DefaultFeedConfig().StoreBackend, c.StoreBackend)
	assert.Empty(t, c.BackendURL)
}

func TestLocationFallsBack(t *testing.T) {
	c := DefaultFeedConfig()
	c.Timezone = "Nowhere/Atlantis"
	assert.Equal(t, time.Local, c.Location())
}

func TestI18nFallbacks(t *testing.T) {
	assert.Equal(t, "Zatiaľ žiadne príspevky", I18n(KeyEmptyTitle))
	assert.Equal(t, "no.such.key", I18n("no.such.key"))
	assert.Empty(t, I18nOptional(KeyEmptyMarkup))
}

func TestI18nReload(t *testing.T) {
	dir := t.TempDir()
	old := i18nConfigDir
	i18nConfigDir = dir
	t.Cleanup(func() {
		i18nConfigDir = old
		i18nMu.Lock()
		i18nStrings = nil
		i18nMu.Unlock()
	})

	require.NoError(t, os.WriteFile(I18nPath(), []byte(`{"follow.follow":"Sledovať"}`), 0o644))
	require.NoError(t, ReloadI18nConfig())
	assert.Equal(t, "Sledovať", I18n(KeyFollow))
	assert.Equal(t, "Unfollow", I18n(KeyUnfollow))

	require.NoError(t, os.WriteFile(I18nPath(), []byte(`not json`), 0o644))
	assert.Error(t, ReloadI18nConfig())
	assert.Equal(t, "Sledovať", I18n(KeyFollow), "a broken file keeps the last good strings")
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	w, err := NewWatcher()
	require.NoError(t, err)
	w.settle = 20 * time.Millisecond
	var reloads atomic.Int32
	require.NoError(t, w.Add(path, func() error {
		reloads.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte(`{"debounceMs":10}`), 0o644))
	assert.Eventually(t, func() bool { return reloads.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-w.Done()
}
