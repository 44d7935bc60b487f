package retrieval

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrOutsideBase is returned when a subdirectory would resolve outside the base directory
var ErrOutsideBase = errors.New("target_directory must stay within the download directory")

// ResolveTarget joins sub onto base and cleans the result. An empty sub
// resolves to base. The result is always base itself or a path below it.
func ResolveTarget(base, sub string) (string, error) {
	base = filepath.Clean(base)
	if sub == "" {
		return base, nil
	}
	if filepath.IsAbs(sub) || strings.ContainsRune(sub, 0) {
		return "", ErrOutsideBase
	}

	target := filepath.Join(base, sub)
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideBase
	}

	return target, nil
}
