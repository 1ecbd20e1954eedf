package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postscraper/pkg/browser"
	errs "postscraper/pkg/errors"
)

func TestCookieStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cookies.json")
	store := NewCookieStore(path)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	assert.False(t, store.Exists())

	cookies := []browser.Cookie{
		{Name: "li_at", Value: "a", Domain: ".linkedin.com", Path: "/", Secure: true, HTTPOnly: true},
		{Name: "old", Value: "b", Domain: ".linkedin.com", Path: "/", Expires: now.Add(-time.Hour)},
	}
	require.NoError(t, store.Save(cookies, map[string]string{"mode": "login"}))
	assert.True(t, store.Exists())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	f, err := store.Load()
	require.NoError(t, err)
	assert.True(t, f.SavedAt.Equal(now))
	assert.True(t, f.ExpiresEstimate.Equal(now.Add(CookieLifetime)))
	assert.Equal(t, "login", f.Metadata["mode"])
	require.Len(t, f.Cookies, 1, "expired cookies are dropped on load")
	assert.Equal(t, "li_at", f.Cookies[0].Name)
	assert.True(t, f.Cookies[0].HTTPOnly)
}

func TestCookieStoreStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	store := NewCookieStore(path)
	saved := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return saved }
	require.NoError(t, store.Save([]browser.Cookie{{Name: "li_at", Value: "a"}}, nil))

	store.now = func() time.Time { return saved.Add(CookieLifetime + time.Hour) }
	_, err := store.Load()
	require.Error(t, err)
	assert.Equal(t, errs.KindSessionExpired, errs.KindOf(err))
}

func TestCookieStoreMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	_, err := NewCookieStore(filepath.Join(dir, "none.json")).Load()
	assert.Equal(t, errs.KindSessionExpired, errs.KindOf(err))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = NewCookieStore(bad).Load()
	assert.Equal(t, errs.KindSessionExpired, errs.KindOf(err))

	store := NewCookieStore(bad)
	require.NoError(t, store.Delete())
	require.NoError(t, store.Delete())
	assert.False(t, store.Exists())
}
