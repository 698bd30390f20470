//go:build !integration

package testutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ci-shared/workflow-secrets/pkg/testutil"
)

func TestGetTestRunDir(t *testing.T) {
	dir := testutil.GetTestRunDir()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Errorf("test run directory does not exist: %s", dir)
	}
	if !strings.Contains(dir, "test-runs") {
		t.Errorf("test run directory should contain 'test-runs', got: %s", dir)
	}
	if dir2 := testutil.GetTestRunDir(); dir != dir2 {
		t.Errorf("GetTestRunDir should return same directory, got %s and %s", dir, dir2)
	}
}

func TestTempDir(t *testing.T) {
	tempDir := testutil.TempDir(t, "test-pattern-*")

	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Errorf("temp directory does not exist: %s", tempDir)
	}
	if !strings.HasPrefix(tempDir, testutil.GetTestRunDir()) {
		t.Errorf("temp directory should be under test run directory, got: %s", tempDir)
	}
	if !strings.Contains(filepath.Base(tempDir), "test-pattern-") {
		t.Errorf("temp directory should contain pattern, got: %s", tempDir)
	}
}

func TestTempDirCleanup(t *testing.T) {
	var tempDir string

	t.Run("subtest", func(t *testing.T) {
		tempDir = testutil.TempDir(t, "cleanup-test-*")
		if _, err := os.Stat(tempDir); os.IsNotExist(err) {
			t.Errorf("temp directory should exist during test: %s", tempDir)
		}
	})

	if _, err := os.Stat(tempDir); !os.IsNotExist(err) {
		t.Errorf("temp directory should be removed after the subtest: %s", tempDir)
	}
}

func TestWriteFile(t *testing.T) {
	dir := testutil.TempDir(t, "write-*")

	path := testutil.WriteFile(t, dir, ".github/workflows/ci.yml", "on: push\n")

	if want := filepath.Join(dir, ".github", "workflows", "ci.yml"); path != want {
		t.Errorf("WriteFile path = %s, want %s", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written file: %v", err)
	}
	if string(data) != "on: push\n" {
		t.Errorf("unexpected content: %q", data)
	}
}
