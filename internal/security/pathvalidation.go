// Package security holds the path checks shared by everything that writes
// files on behalf of an HTTP request: database backups, capture exports,
// and the filenames derived from device identifiers.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// canonicalize resolves path to its symlink-free absolute form. When the
// path does not exist yet, the nearest existing ancestor is resolved and
// the remaining components re-joined, so a symlinked parent cannot point
// a new file outside its apparent directory.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	// Walk up until a directory exists, resolve that, and reattach the
	// rest of the path.
	for probe := abs; ; {
		parent := filepath.Dir(probe)
		if parent == probe {
			// Hit the root without finding anything on disk.
			return abs, nil
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, _ := filepath.Rel(parent, abs)
			return filepath.Join(resolved, rel), nil
		}
		probe = parent
	}
}

// ValidatePathWithinDirectory rejects paths that resolve outside dir,
// including escapes through .. components and through symlinks. dir must
// exist.
func ValidatePathWithinDirectory(path, dir string) error {
	canonical, err := canonicalize(path)
	if err != nil {
		return err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory path: %w", err)
	}
	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalDir, canonical)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, dir)
	}
	return nil
}

// ValidatePathWithinAllowedDirs accepts a path that sits inside any one of
// the given directories.
func ValidatePathWithinAllowedDirs(path string, allowedDirs []string) error {
	if len(allowedDirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}
	for _, dir := range allowedDirs {
		if err := ValidatePathWithinDirectory(path, dir); err == nil {
			return nil
		}
	}
	return fmt.Errorf("path must be within one of the allowed directories: %v", allowedDirs)
}

// ValidateExportPath vets a destination for request-driven file writes.
// Only the temp directory and the working directory are acceptable.
func ValidateExportPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	return ValidatePathWithinAllowedDirs(path, []string{os.TempDir(), cwd})
}

// SanitizeFilename turns an arbitrary identifier into a safe filename
// fragment: ASCII letters, digits, dot, underscore and dash pass through,
// runs of anything else collapse to one underscore, and the result is
// length-capped. Empty input and input with nothing salvageable come back
// as "unknown".
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
