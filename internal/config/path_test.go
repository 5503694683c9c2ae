package config

import (
	"os"
	"testing"
)

func TestDefaultDataDirXDGOverride(t *testing.T) {
	original := os.Getenv("XDG_DATA_HOME")
	t.Cleanup(func() {
		if original != "" {
			os.Setenv("XDG_DATA_HOME", original)
		} else {
			os.Unsetenv("XDG_DATA_HOME")
		}
	})
	os.Setenv("XDG_DATA_HOME", "/custom/data")

	if got := DefaultDataDir(); got != "/custom/data/worksets" {
		t.Errorf("DefaultDataDir = %s, want /custom/data/worksets", got)
	}
}

func TestDefaultDataDirNeverEmpty(t *testing.T) {
	if DefaultDataDir() == "" {
		t.Error("DefaultDataDir returned empty path")
	}
}

func TestIsDir(t *testing.T) {
	if !isDir(".") {
		t.Error("current directory not recognized as dir")
	}
	if isDir("/non/existent/path/that/does/not/exist") {
		t.Error("missing path reported as dir")
	}
}
