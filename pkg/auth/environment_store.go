package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore. They are the same names
// the config layer reads.
const (
	EmailEnv    = "LINKEDIN_EMAIL"
	PasswordEnv = "LINKEDIN_PASSWORD"
)

// EnvironmentStore is a read-only view of EmailEnv and PasswordEnv.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore { return &EnvironmentStore{} }

func (*EnvironmentStore) Store(*Account) error { return ErrStoreUnavailable }

func (*EnvironmentStore) Delete(string) error { return ErrStoreUnavailable }

// Retrieve returns the environment login. A non-empty email must match it.
func (*EnvironmentStore) Retrieve(email string) (*Account, error) {
	account := Account{
		Email:        os.Getenv(EmailEnv),
		Password:     os.Getenv(PasswordEnv),
		LastModified: time.Now(),
	}
	if account.Email == "" || account.Password == "" {
		return nil, ErrCredentialsNotFound
	}
	if email != "" && email != account.Email {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	if account, err := e.Retrieve(""); err == nil {
		return []*Account{account}, nil
	}
	return []*Account{}, nil
}

func (e *EnvironmentStore) Exists(email string) bool {
	_, err := e.Retrieve(email)
	return err == nil
}
