package testutil

import (
	"path/filepath"
	"testing"
)

func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "lucy-agent.db")
}

func TempRunsDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}
