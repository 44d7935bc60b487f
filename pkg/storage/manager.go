package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// tempSuffix marks files that are still being written
const tempSuffix = ".part"

// Manager handles file storage for one target directory
type Manager struct {
	outputDir string
	saved     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates the directory if needed and indexes the files already in it
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		saved:     make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles records complete files already present in the directory
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), tempSuffix) {
			continue
		}
		m.saved[entry.Name()] = true
	}

	return nil
}

// checkName rejects names that would leave the directory
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

// Exists reports whether a complete file with the given name is stored
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	known := m.saved[name]
	m.mu.RUnlock()
	if known {
		return true
	}

	if checkName(name) != nil {
		return false
	}

	if info, err := os.Stat(m.Path(name)); err == nil && !info.IsDir() {
		m.mu.Lock()
		m.saved[name] = true
		m.mu.Unlock()
		return true
	}

	return false
}

// Path returns the final path for name
func (m *Manager) Path(name string) string {
	return filepath.Join(m.outputDir, name)
}

// TempPath returns a fresh in-progress path for name. Each call yields a
// different path so concurrent writers of the same name never share a file.
func (m *Manager) TempPath(name string) string {
	return fmt.Sprintf("%s.%s%s", m.Path(name), uuid.NewString()[:8], tempSuffix)
}

// Save writes r to name atomically and returns the number of bytes written
func (m *Manager) Save(r io.Reader, name string) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	out, err := os.CreateTemp(m.outputDir, name+".*"+tempSuffix)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to write %s: %w", name, err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	// CreateTemp uses 0600
	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := m.Adopt(tempFile, name); err != nil {
		return 0, err
	}

	return n, nil
}

// Adopt moves a file written elsewhere (usually TempPath) into place as name.
// When two writers adopt the same name the last rename wins.
func (m *Manager) Adopt(tempFile, name string) error {
	if err := checkName(name); err != nil {
		os.Remove(tempFile)
		return err
	}

	if err := os.Rename(tempFile, m.Path(name)); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[name] = true
	m.mu.Unlock()

	return nil
}

// Count returns the number of stored files known to the manager
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}
