package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	safeDir := filepath.Join(tmpDir, "safe")
	outsideDir := filepath.Join(tmpDir, "outside")
	if err := os.MkdirAll(safeDir, 0755); err != nil {
		t.Fatalf("Failed to create safe directory: %v", err)
	}
	if err := os.MkdirAll(outsideDir, 0755); err != nil {
		t.Fatalf("Failed to create outside directory: %v", err)
	}

	outsideFile := filepath.Join(outsideDir, "secret.db")
	if err := os.WriteFile(outsideFile, []byte("secret"), 0644); err != nil {
		t.Fatalf("Failed to create outside file: %v", err)
	}

	// A symlink inside the safe directory pointing out of it.
	symlinkPath := filepath.Join(safeDir, "escape")
	if err := os.Symlink(outsideDir, symlinkPath); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		dir       string
		wantError bool
	}{
		{
			name: "path directly inside",
			path: filepath.Join(tmpDir, "backup.db"),
			dir:  tmpDir,
		},
		{
			name: "nested path that does not exist yet",
			path: filepath.Join(tmpDir, "exports", "backup.db"),
			dir:  tmpDir,
		},
		{
			name:      "dot-dot traversal",
			path:      filepath.Join(tmpDir, "..", "backup.db"),
			dir:       tmpDir,
			wantError: true,
		},
		{
			name:      "relative traversal from outside",
			path:      "../../../etc/passwd",
			dir:       tmpDir,
			wantError: true,
		},
		{
			name:      "absolute path elsewhere",
			path:      "/etc/passwd",
			dir:       tmpDir,
			wantError: true,
		},
		{
			name:      "file reached through an escaping symlink",
			path:      filepath.Join(symlinkPath, "secret.db"),
			dir:       safeDir,
			wantError: true,
		},
		{
			name:      "the escaping symlink itself",
			path:      symlinkPath,
			dir:       safeDir,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, tt.dir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidatePathWithinAllowedDirs(t *testing.T) {
	tmpDir1 := t.TempDir()
	tmpDir2 := t.TempDir()

	tests := []struct {
		name        string
		path        string
		allowedDirs []string
		wantError   bool
	}{
		{
			name:        "inside first allowed dir",
			path:        filepath.Join(tmpDir1, "backup.db"),
			allowedDirs: []string{tmpDir1, tmpDir2},
		},
		{
			name:        "inside second allowed dir",
			path:        filepath.Join(tmpDir2, "backup.db"),
			allowedDirs: []string{tmpDir1, tmpDir2},
		},
		{
			name:        "outside every allowed dir",
			path:        "/etc/passwd",
			allowedDirs: []string{tmpDir1, tmpDir2},
			wantError:   true,
		},
		{
			name:        "no allowed directories",
			path:        filepath.Join(tmpDir1, "backup.db"),
			allowedDirs: []string{},
			wantError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinAllowedDirs(tt.path, tt.allowedDirs)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinAllowedDirs() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateExportPath(t *testing.T) {
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get current directory: %v", err)
	}
	tmpDir := t.TempDir()

	tests := []struct {
		name      string
		path      string
		wd        string
		wantError bool
	}{
		{
			name: "temp directory target",
			path: filepath.Join(os.TempDir(), "events-backup.db"),
			wd:   originalWd,
		},
		{
			name: "working directory target",
			path: "events-backup.db",
			wd:   tmpDir,
		},
		{
			name:      "system path target",
			path:      "/etc/passwd",
			wd:        originalWd,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wd != originalWd {
				if err := os.Chdir(tt.wd); err != nil {
					t.Fatalf("Failed to change directory: %v", err)
				}
				t.Cleanup(func() {
					if err := os.Chdir(originalWd); err != nil {
						t.Errorf("Failed to restore directory: %v", err)
					}
				})
			}

			err := ValidateExportPath(tt.path)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateExportPath() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"EL 80c", "EL_80c"},
		{"ses_9f2c1a", "ses_9f2c1a"},
		{"Trio", "Trio"},
		{"../../etc/passwd", "etc_passwd"},
		{"a//b\\c", "a_b_c"},
		{"", "unknown"},
		{"///", "unknown"},
		{"..hidden..", "hidden"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
