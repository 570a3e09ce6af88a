package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("UTILS_TEST_KEY", "set")
	if got := GetEnv("UTILS_TEST_KEY", "fallback"); got != "set" {
		t.Errorf("GetEnv = %q, want %q", got, "set")
	}
	if got := GetEnv("UTILS_TEST_MISSING_KEY", "fallback"); got != "fallback" {
		t.Errorf("GetEnv = %q, want fallback", got)
	}
}

func TestCreateFolder(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := CreateFolder(dir); err != nil {
		t.Fatalf("CreateFolder returned error: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s, err=%v", dir, err)
	}
	// Creating an existing folder is not an error.
	if err := CreateFolder(dir); err != nil {
		t.Errorf("CreateFolder on existing dir returned error: %v", err)
	}
}

func TestGenerateUniqueID(t *testing.T) {
	t.Parallel()

	seen := make(map[uint32]bool)
	for i := 0; i < 16; i++ {
		seen[GenerateUniqueID()] = true
	}
	// 16 draws from a 32-bit space; any collision here points at a broken
	// random source rather than bad luck.
	if len(seen) < 16 {
		t.Errorf("expected 16 distinct IDs, got %d", len(seen))
	}
}
