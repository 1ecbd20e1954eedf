package session

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"postscraper/pkg/browser"
	errs "postscraper/pkg/errors"
	"postscraper/pkg/storage"
)

// CookieLifetime is how long a saved session is assumed to stay valid.
const CookieLifetime = 30 * 24 * time.Hour

// CookieFile is the persisted session identity.
type CookieFile struct {
	Cookies         []browser.Cookie  `json:"cookies"`
	SavedAt         time.Time         `json:"saved_at"`
	ExpiresEstimate time.Time         `json:"expires_estimate"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Live returns the cookies not yet expired at now.
func (f *CookieFile) Live(now time.Time) []browser.Cookie {
	var out []browser.Cookie
	for _, c := range f.Cookies {
		if !c.Expired(now) {
			out = append(out, c)
		}
	}
	return out
}

// CookieStore reads and writes the cookie file.
type CookieStore struct {
	path string
	now  func() time.Time
}

// NewCookieStore creates a store at path.
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path, now: time.Now}
}

// Path returns the cookie file location.
func (s *CookieStore) Path() string {
	return s.path
}

// Exists reports whether a cookie file is present.
func (s *CookieStore) Exists() bool {
	if s.path == "" {
		return false
	}
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the cookie file. Missing, unreadable or stale files are
// reported as KindSessionExpired.
func (s *CookieStore) Load() (*CookieFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errs.Wrap(errs.KindSessionExpired, err, "no saved session").WithTarget(s.path)
	}
	var f CookieFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errs.Wrap(errs.KindSessionExpired, err, "unreadable cookie file").WithTarget(s.path)
	}
	now := s.now()
	if !f.ExpiresEstimate.IsZero() && now.After(f.ExpiresEstimate) {
		return nil, errs.Newf(errs.KindSessionExpired, "saved session expired on %s", f.ExpiresEstimate.Format(time.RFC3339)).WithTarget(s.path)
	}
	f.Cookies = f.Live(now)
	if len(f.Cookies) == 0 {
		return nil, errs.New(errs.KindSessionExpired, "saved session has no live cookies").WithTarget(s.path)
	}
	return &f, nil
}

// Save writes cookies atomically with owner-only permissions.
func (s *CookieStore) Save(cookies []browser.Cookie, metadata map[string]string) error {
	now := s.now().UTC()
	f := CookieFile{
		Cookies:         cookies,
		SavedAt:         now,
		ExpiresEstimate: now.Add(CookieLifetime),
		Metadata:        metadata,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := storage.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	return nil
}

// Delete removes the cookie file, if any.
func (s *CookieStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
