package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
	"igloader/pkg/config"
)

func testAccount(name string) *Account {
	return &Account{
		Username:  name,
		SessionID: name + "_session_id_12345",
		CSRFToken: name + "_csrf_token_67890",
		UserAgent: "TestAgent/1.0",
	}
}

func TestManagerLifecycle(t *testing.T) {
	store := NewMemoryStore()
	manager := NewManagerWithStores(store)

	account := testAccount("testuser")
	if err := manager.Store(account); err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}
	if account.LastModified.IsZero() {
		t.Error("Store should stamp LastModified")
	}

	retrieved, err := manager.Retrieve("testuser")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.SessionID != account.SessionID || retrieved.CSRFToken != account.CSRFToken {
		t.Errorf("Retrieved account mismatch: %+v", retrieved)
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) != 1 {
		t.Fatalf("List() = %v, %v; want one account", accounts, err)
	}

	if err := manager.Delete("testuser"); err != nil {
		t.Fatalf("Failed to delete account: %v", err)
	}
	if _, err := manager.Retrieve("testuser"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound after delete, got %v", err)
	}
	if err := manager.Delete("testuser"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound deleting twice, got %v", err)
	}
	if store.Count() != 0 {
		t.Errorf("Expected empty store, got %d accounts", store.Count())
	}
}

func TestManagerStoreValidation(t *testing.T) {
	manager := NewManagerWithStores(NewMemoryStore())

	tests := map[string]*Account{
		"nil account":      nil,
		"missing username": {SessionID: "s", CSRFToken: "c"},
		"missing session":  {Username: "u", CSRFToken: "c"},
		"missing csrf":     {Username: "u", SessionID: "s"},
	}
	for name, account := range tests {
		t.Run(name, func(t *testing.T) {
			if err := manager.Store(account); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestManagerStoreFallsBack(t *testing.T) {
	broken := NewMemoryStore()
	broken.StoreError = errors.New("locked")
	working := NewMemoryStore()
	manager := NewManagerWithStores(broken, working)

	if err := manager.Store(testAccount("fallback")); err != nil {
		t.Fatalf("Store() should fall back, got %v", err)
	}
	if !working.Exists("fallback") {
		t.Error("Expected account in second store")
	}

	working.StoreError = errors.New("full")
	err := manager.Store(testAccount("nowhere"))
	if err == nil || !strings.Contains(err.Error(), "memory: locked") || !strings.Contains(err.Error(), "memory: full") {
		t.Errorf("Expected joined store errors, got %v", err)
	}
}

func TestManagerListNewestFirst(t *testing.T) {
	first := NewMemoryStore()
	second := NewMemoryStore()
	manager := NewManagerWithStores(first, second)

	old := testAccount("alice")
	old.LastModified = time.Now().Add(-time.Hour)
	first.Store(old)

	newer := testAccount("alice")
	newer.SessionID = "rotated_session_value"
	newer.LastModified = time.Now()
	second.Store(newer)

	bob := testAccount("bob")
	bob.LastModified = time.Now().Add(-time.Minute)
	first.Store(bob)

	accounts, err := manager.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("Expected 2 merged accounts, got %d", len(accounts))
	}
	if accounts[0].Username != "alice" || accounts[0].SessionID != "rotated_session_value" {
		t.Errorf("Expected newest alice first, got %+v", accounts[0])
	}

	def, err := manager.RetrieveDefault()
	if err != nil || def.Username != "alice" {
		t.Errorf("RetrieveDefault() = %v, %v; want alice", def, err)
	}
}

func TestSanitizeAccount(t *testing.T) {
	account := testAccount("testuser")
	sanitized := SanitizeAccount(account)

	if sanitized.SessionID == account.SessionID || sanitized.CSRFToken == account.CSRFToken {
		t.Error("Secrets should be masked")
	}
	if !strings.HasPrefix(sanitized.SessionID, "test") || !strings.HasSuffix(sanitized.SessionID, "2345") {
		t.Errorf("Unexpected mask %q", sanitized.SessionID)
	}
	if sanitized.Username != account.Username {
		t.Error("Username should not be masked")
	}
	if got := maskString("short"); got != "********" {
		t.Errorf("maskString(short) = %q", got)
	}
	if SanitizeAccount(nil) != nil {
		t.Error("SanitizeAccount(nil) should be nil")
	}
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	if _, err := store.Retrieve("encrypted_user"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound before the file exists, got %v", err)
	}

	account := testAccount("encrypted_user")
	if err := store.Store(account); err != nil {
		t.Fatalf("Failed to store: %v", err)
	}
	if err := store.Store(testAccount("second_user")); err != nil {
		t.Fatalf("Failed to store second account: %v", err)
	}

	retrieved, err := store.Retrieve("encrypted_user")
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if retrieved.SessionID != account.SessionID {
		t.Error("SessionID mismatch after encryption/decryption")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte(account.SessionID)) || bytes.Contains(content, []byte(account.CSRFToken)) {
		t.Error("File contains plaintext credentials")
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %o", info.Mode().Perm())
	}

	// A second store with the same passphrase reads the same file
	reopened, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	accounts, err := reopened.List()
	if err != nil || len(accounts) != 2 {
		t.Errorf("List() after reopen = %d accounts, %v", len(accounts), err)
	}

	if err := store.Delete("encrypted_user"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := store.Delete("second_user"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected file to be removed with its last account")
	}
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.enc")

	t.Setenv(PassphraseEnv, "right")
	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(testAccount("someone")); err != nil {
		t.Fatal(err)
	}

	t.Setenv(PassphraseEnv, "wrong")
	other, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Retrieve("someone"); err == nil || errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected decryption failure, got %v", err)
	}
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(filepath.Join(dir, ".passphrase"))
	if err != nil || len(content) == 0 {
		t.Fatalf("Expected generated passphrase file, got %v", err)
	}
	if store.passphrase != string(content) {
		t.Error("Store should use the generated passphrase")
	}

	again, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if again.passphrase != store.passphrase {
		t.Error("Passphrase should be reused")
	}
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()
	if store.Exists("") {
		t.Error("Expected no environment account")
	}

	t.Setenv(EnvSessionID, "env_session")
	t.Setenv(EnvCSRFToken, "env_csrf")

	account, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if account.Username != "default" || account.SessionID != "env_session" || account.CSRFToken != "env_csrf" {
		t.Errorf("Unexpected environment account %+v", account)
	}

	t.Setenv(EnvUsername, "envuser")
	if _, err := store.Retrieve("someone_else"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected mismatch to be not found, got %v", err)
	}
	if !store.Exists("envuser") {
		t.Error("Expected envuser to exist")
	}

	if err := store.Store(&Account{}); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for Store")
	}
	if err := store.Delete("envuser"); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for Delete")
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	if err != nil {
		t.Fatalf("NewKeyringStore() failed: %v", err)
	}

	for _, name := range []string{"alice", "bob"} {
		if err := store.Store(testAccount(name)); err != nil {
			t.Fatalf("Store(%s) failed: %v", name, err)
		}
	}

	accounts, err := store.List()
	if err != nil || len(accounts) != 2 {
		t.Fatalf("List() = %d accounts, %v; want 2", len(accounts), err)
	}

	if err := store.Delete("alice"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if store.Exists("alice") {
		t.Error("alice should be gone")
	}
	if err := store.Delete("alice"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}

	accounts, _ = store.List()
	if len(accounts) != 1 || accounts[0].Username != "bob" {
		t.Errorf("Expected only bob after delete, got %v", accounts)
	}
}

func TestResolveSession(t *testing.T) {
	store := NewMemoryStore()
	manager := NewManagerWithStores(store)

	t.Run("anonymous without anything", func(t *testing.T) {
		session, err := ResolveSession(config.InstagramConfig{}, manager)
		if err != nil || session != nil {
			t.Errorf("ResolveSession() = %v, %v; want anonymous", session, err)
		}
	})

	stored := testAccount("stored")
	stored.LastModified = time.Now()
	store.Store(stored)

	t.Run("configured cookies win", func(t *testing.T) {
		session, err := ResolveSession(config.InstagramConfig{SessionID: "cfg_sid", CSRFToken: "cfg_csrf", Account: "stored"}, manager)
		if err != nil {
			t.Fatal(err)
		}
		if session.SessionID != "cfg_sid" || session.Source != "config" {
			t.Errorf("Unexpected session %+v", session)
		}
	})

	t.Run("named account", func(t *testing.T) {
		session, err := ResolveSession(config.InstagramConfig{Account: "stored"}, manager)
		if err != nil {
			t.Fatal(err)
		}
		if session.SessionID != stored.SessionID || session.UserAgent != "TestAgent/1.0" || session.Source != "account:stored" {
			t.Errorf("Unexpected session %+v", session)
		}
	})

	t.Run("missing named account", func(t *testing.T) {
		if _, err := ResolveSession(config.InstagramConfig{Account: "ghost"}, manager); !errors.Is(err, ErrCredentialsNotFound) {
			t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
		}
	})

	t.Run("default account", func(t *testing.T) {
		session, err := ResolveSession(config.InstagramConfig{}, manager)
		if err != nil || session == nil || session.CSRFToken != stored.CSRFToken {
			t.Errorf("ResolveSession() = %+v, %v", session, err)
		}
	})

	t.Run("nil manager", func(t *testing.T) {
		session, err := ResolveSession(config.InstagramConfig{}, nil)
		if err != nil || session != nil {
			t.Errorf("ResolveSession() = %v, %v; want anonymous", session, err)
		}
	})

	t.Run("nil manager with named account", func(t *testing.T) {
		session, err := ResolveSession(config.InstagramConfig{Account: "stored"}, nil)
		if !errors.Is(err, ErrStoreUnavailable) || session != nil {
			t.Errorf("ResolveSession() = %v, %v; want ErrStoreUnavailable", session, err)
		}
	})

	t.Run("nil manager with configured cookies", func(t *testing.T) {
		session, err := ResolveSession(config.InstagramConfig{SessionID: "cfg_sid", CSRFToken: "cfg_csrf", Account: "stored"}, nil)
		if err != nil || session == nil || session.Source != "config" {
			t.Errorf("ResolveSession() = %+v, %v; want config session", session, err)
		}
	})
}

func TestWriteCookieGuide(t *testing.T) {
	var buf bytes.Buffer
	WriteCookieGuide(&buf)
	for _, want := range []string{"sessionid", "csrftoken", "igloader auth login"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Guide is missing %q", want)
		}
	}
}
