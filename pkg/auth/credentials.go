package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"igloader/pkg/config"
)

// Account is a stored Instagram web session
type Account struct {
	Username     string    `json:"username"`
	SessionID    string    `json:"session_id"`
	CSRFToken    string    `json:"csrf_token"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Validate reports the first missing field
func (a *Account) Validate() error {
	switch {
	case a == nil:
		return ErrInvalidCredentials
	case a.Username == "":
		return errors.New("username is required")
	case a.SessionID == "":
		return errors.New("session ID is required")
	case a.CSRFToken == "":
		return errors.New("CSRF token is required")
	}
	return nil
}

// CredentialStore persists accounts by username
type CredentialStore interface {
	Name() string
	Store(account *Account) error
	Retrieve(username string) (*Account, error)
	List() ([]*Account, error)
	Delete(username string) error
	Exists(username string) bool
}

// Manager tries its stores in order
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager over the system keyring when available,
// an encrypted file in dir, and the environment
func NewManager(dir string) (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewDefaultManager creates a manager rooted in the user's config directory
func NewDefaultManager() (*Manager, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return NewManager(dir)
}

// NewManagerWithStores creates a manager over the given stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Stores returns the names of the configured stores in lookup order
func (m *Manager) Stores() []string {
	names := make([]string, 0, len(m.stores))
	for _, s := range m.stores {
		names = append(names, s.Name())
	}
	return names
}

// Store saves account in the first store that accepts it
func (m *Manager) Store(account *Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	account.LastModified = time.Now().UTC()

	var errs []error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
	}

	if len(errs) == 0 {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("failed to store credentials: %w", errors.Join(errs...))
}

// Retrieve returns the account from the first store that has it
func (m *Manager) Retrieve(username string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(username); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for user %s", ErrCredentialsNotFound, username)
}

// RetrieveDefault returns the environment account if set, otherwise the
// most recently modified stored account
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	accounts, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrCredentialsNotFound
	}
	return accounts[0], nil
}

// List merges the accounts of all stores, newest first
func (m *Manager) List() ([]*Account, error) {
	byName := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := byName[account.Username]; !ok || account.LastModified.After(existing.LastModified) {
				byName[account.Username] = account
			}
		}
	}

	result := make([]*Account, 0, len(byName))
	for _, account := range byName {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastModified.Equal(result[j].LastModified) {
			return result[i].Username < result[j].Username
		}
		return result[i].LastModified.After(result[j].LastModified)
	})

	return result, nil
}

// Delete removes username from every store holding it
func (m *Manager) Delete(username string) error {
	deleted := false
	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		}
	}

	if !deleted {
		return fmt.Errorf("%w for user %s", ErrCredentialsNotFound, username)
	}
	return nil
}

// Session is the cookie set the Instagram client is configured with
type Session struct {
	SessionID string
	CSRFToken string
	UserAgent string
	// Source names where the session came from
	Source string
}

// ResolveSession picks the session for cfg: configured cookies first,
// then the named stored account, then the default account. A nil
// session and nil error mean anonymous access. A named account without
// a manager is an error.
func ResolveSession(cfg config.InstagramConfig, m *Manager) (*Session, error) {
	if cfg.SessionID != "" && cfg.CSRFToken != "" {
		return &Session{SessionID: cfg.SessionID, CSRFToken: cfg.CSRFToken, Source: "config"}, nil
	}
	if m == nil {
		if cfg.Account != "" {
			return nil, fmt.Errorf("account %s: %w", cfg.Account, ErrStoreUnavailable)
		}
		return nil, nil
	}

	if cfg.Account != "" {
		account, err := m.Retrieve(cfg.Account)
		if err != nil {
			return nil, err
		}
		return sessionFrom(account, "account:"+account.Username), nil
	}

	account, err := m.RetrieveDefault()
	if errors.Is(err, ErrCredentialsNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sessionFrom(account, "account:"+account.Username), nil
}

func sessionFrom(a *Account, source string) *Session {
	return &Session{
		SessionID: a.SessionID,
		CSRFToken: a.CSRFToken,
		UserAgent: a.UserAgent,
		Source:    source,
	}
}

// ConfigDir returns the per-user igloader configuration directory,
// creating it when missing
func ConfigDir() (string, error) {
	var dir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "igloader")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "igloader")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "igloader")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "igloader")
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// SanitizeAccount returns a copy of account with its secrets masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}

	masked := *account
	masked.SessionID = maskString(account.SessionID)
	masked.CSRFToken = maskString(account.CSRFToken)
	return &masked
}

// maskString keeps the first and last four characters
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
