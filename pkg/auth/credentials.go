// Package auth stores site logins for the authenticated session mode. A
// Manager layers the system keychain, an encrypted file and the
// environment, trying each in turn.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"postscraper/pkg/config"
)

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

// Account is one stored login.
type Account struct {
	Email        string    `json:"email"`
	Password     string    `json:"password"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is a backend the Manager can read and write accounts in.
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(email string) (*Account, error)
	List() ([]*Account, error)
	Delete(email string) error
	Exists(email string) bool
}

// Manager fans operations out over its stores in priority order.
type Manager struct {
	stores []CredentialStore
}

// NewManager builds the default chain: keychain when the platform has one,
// then the encrypted file under the user config dir, then the environment.
func NewManager() (*Manager, error) {
	dir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	var stores []CredentialStore
	if keyring, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyring)
	}

	file, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, file, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores, tried in order.
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store writes account to the first store that accepts it and stamps
// LastModified.
func (m *Manager) Store(account *Account) error {
	switch {
	case account.Email == "":
		return errors.New("email is required")
	case account.Password == "":
		return errors.New("password is required")
	}
	account.LastModified = time.Now()

	var failures []error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		failures = append(failures, err)
	}
	if len(failures) == 0 {
		return errors.New("no available credential stores")
	}
	return fmt.Errorf("failed to store credentials: %w", errors.Join(failures...))
}

func (m *Manager) Retrieve(email string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(email); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("credentials not found for %s: %w", email, ErrCredentialsNotFound)
}

// RetrieveDefault prefers credentials from the environment and otherwise
// returns the most recently stored account.
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	accounts, _ := m.List()
	var latest *Account
	for _, a := range accounts {
		if latest == nil || a.LastModified.After(latest.LastModified) {
			latest = a
		}
	}
	if latest == nil {
		return nil, ErrCredentialsNotFound
	}
	return latest, nil
}

// List merges every store's accounts, keeping the newest copy of each
// email, ordered by email. Stores that fail to list are skipped.
func (m *Manager) List() ([]*Account, error) {
	newest := make(map[string]*Account)
	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, a := range accounts {
			if cur, ok := newest[a.Email]; !ok || a.LastModified.After(cur.LastModified) {
				newest[a.Email] = a
			}
		}
	}

	out := make([]*Account, 0, len(newest))
	for _, a := range newest {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// Delete removes email from every store. It succeeds if any store held it.
func (m *Manager) Delete(email string) error {
	var failures []error
	deleted := false
	for _, store := range m.stores {
		if err := store.Delete(email); err != nil {
			failures = append(failures, err)
			continue
		}
		deleted = true
	}
	if deleted {
		return nil
	}
	if len(failures) > 0 {
		return fmt.Errorf("failed to delete credentials: %w", errors.Join(failures...))
	}
	return fmt.Errorf("credentials not found for %s", email)
}

// Apply fills missing login credentials in cfg from the stores. Credentials
// already set by flags, environment or config file take precedence.
func (m *Manager) Apply(cfg *config.Config) bool {
	creds := &cfg.Credentials
	if creds.Email != "" && creds.Password != "" {
		return false
	}

	var (
		account *Account
		err     error
	)
	if creds.Email != "" {
		account, err = m.Retrieve(creds.Email)
	} else {
		account, err = m.RetrieveDefault()
	}
	if err != nil || account == nil {
		return false
	}

	creds.Email = account.Email
	creds.Password = account.Password
	return true
}

// configDir returns (and creates) the per-user postscraper config directory.
func configDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		var err error
		if base, err = os.UserConfigDir(); err != nil {
			return "", err
		}
	}
	dir := filepath.Join(base, "postscraper")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// SanitizeAccount returns a copy of account safe to print.
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	out := *account
	out.Password = mask(account.Password)
	return &out
}

// mask keeps the first and last two characters of long secrets.
func mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:2] + "..." + s[len(s)-2:]
}
