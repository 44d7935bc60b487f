package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// partFiles lists in-progress files left in dir
func partFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*"+tempSuffix))
	if err != nil {
		t.Fatalf("Failed to glob: %v", err)
	}
	return matches
}

func TestManager(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "posts", "nested")

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.Count() != 0 {
		t.Error("Expected initial count to be 0")
	}

	if manager.Exists("test123.jpg") {
		t.Error("Expected Exists to return false for non-existent file")
	}

	testData := []byte("test photo data")
	n, err := manager.Save(bytes.NewReader(testData), "test123.jpg")
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}
	if n != int64(len(testData)) {
		t.Errorf("Expected %d bytes written, got %d", len(testData), n)
	}

	expectedPath := filepath.Join(tempDir, "test123.jpg")
	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}

	if left := partFiles(t, tempDir); len(left) != 0 {
		t.Errorf("Expected temporary file to be gone after save, found %v", left)
	}

	info, err := os.Stat(expectedPath)
	if err != nil {
		t.Fatalf("Failed to stat saved file: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("Expected file permissions 0644, got %o", info.Mode().Perm())
	}

	if !manager.Exists("test123.jpg") {
		t.Error("Expected Exists to return true for saved file")
	}

	if manager.Count() != 1 {
		t.Errorf("Expected count to be 1, got %d", manager.Count())
	}
}

func TestManagerScansExistingFiles(t *testing.T) {
	tempDir := t.TempDir()

	for _, name := range []string{"a.jpg", "b.mp4", "c.jpg" + tempSuffix} {
		if err := os.WriteFile(filepath.Join(tempDir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(tempDir, "sub"), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.Count() != 2 {
		t.Errorf("Expected 2 complete files, got %d", manager.Count())
	}
	if manager.Exists("c.jpg") {
		t.Error("Expected partial file not to count as stored")
	}
	if manager.Exists("sub") {
		t.Error("Expected directories not to count as stored")
	}
}

func TestExistsSeesFilesWrittenLater(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if err := os.WriteFile(filepath.Join(tempDir, "late.jpg"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if !manager.Exists("late.jpg") {
		t.Error("Expected Exists to fall back to the filesystem")
	}
}

func TestAdopt(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	tmp := manager.TempPath("clip.mp4")
	if err := os.WriteFile(tmp, []byte("video"), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}

	if err := manager.Adopt(tmp, "clip.mp4"); err != nil {
		t.Fatalf("Adopt failed: %v", err)
	}
	if !manager.Exists("clip.mp4") {
		t.Error("Expected adopted file to exist")
	}
}

func TestSaveRejectsUnsafeNames(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	for _, name := range []string{"", ".", "..", "../escape.jpg", "dir/file.jpg"} {
		if _, err := manager.Save(bytes.NewReader(nil), name); err == nil {
			t.Errorf("Expected Save(%q) to fail", name)
		}
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, errors.New("read failed") }

func TestSaveCleansUpOnFailure(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if _, err := manager.Save(failingReader{}, "broken.jpg"); err == nil {
		t.Fatal("Expected Save to fail")
	}
	if left := partFiles(t, dir); len(left) != 0 {
		t.Errorf("Expected temporary file to be removed, found %v", left)
	}
	if manager.Exists("broken.jpg") {
		t.Error("Expected failed save not to be recorded")
	}
}

func TestTempPathIsUnique(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	a, b := manager.TempPath("clip.mp4"), manager.TempPath("clip.mp4")
	if a == b {
		t.Errorf("Expected distinct temp paths, got %s twice", a)
	}
	for _, p := range []string{a, b} {
		if !strings.HasPrefix(filepath.Base(p), "clip.mp4.") || !strings.HasSuffix(p, tempSuffix) {
			t.Errorf("Unexpected temp path %s", p)
		}
	}
}

// slowReader yields data in small pieces so concurrent writers overlap
type slowReader struct {
	data []byte
}

func (r *slowReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	time.Sleep(5 * time.Millisecond)
	n := copy(p[:1], r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestConcurrentSaveSameName(t *testing.T) {
	dir := t.TempDir()
	payloads := []string{"first writer", "second writer"}

	var wg sync.WaitGroup
	errs := make([]error, len(payloads))
	for i, payload := range payloads {
		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		wg.Add(1)
		go func(i int, m *Manager, payload string) {
			defer wg.Done()
			_, errs[i] = m.Save(&slowReader{data: []byte(payload)}, "a.jpg")
		}(i, manager, payload)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Save %d failed: %v", i, err)
		}
	}

	content, err := os.ReadFile(filepath.Join(dir, "a.jpg"))
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if string(content) != payloads[0] && string(content) != payloads[1] {
		t.Errorf("Expected one complete payload, got %q", content)
	}
	if left := partFiles(t, dir); len(left) != 0 {
		t.Errorf("Expected no temporary files, found %v", left)
	}
}
