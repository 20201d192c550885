package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigUsesDefaultCacheDir(t *testing.T) {
	os.Unsetenv(EnvCacheDir)
	os.Unsetenv(EnvContainerTimeout)
	os.Unsetenv(EnvThreadCount)

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig() failed: %v", err)
	}

	wd, _ := os.Getwd()
	want := filepath.Join(wd, DefaultCacheDir)
	if cfg.CacheDir != want {
		t.Errorf("CacheDir = %q, want %q", cfg.CacheDir, want)
	}
	if cfg.ContainerTimeout != DefaultContainerTimeout {
		t.Errorf("ContainerTimeout = %v, want %v", cfg.ContainerTimeout, DefaultContainerTimeout)
	}
	if cfg.ThreadCount != DefaultThreadCount {
		t.Errorf("ThreadCount = %d, want %d", cfg.ThreadCount, DefaultThreadCount)
	}
	if cfg.RootfsBootstrapURL != DefaultRootfsBootstrapURL {
		t.Errorf("RootfsBootstrapURL = %q, want %q", cfg.RootfsBootstrapURL, DefaultRootfsBootstrapURL)
	}
}

func TestDefaultConfigHonorsBootstrapURLOverride(t *testing.T) {
	t.Setenv(EnvRootfsBootstrapURL, "https://internal.example/rootfs.tar.zst")

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig() failed: %v", err)
	}
	if cfg.RootfsBootstrapURL != "https://internal.example/rootfs.tar.zst" {
		t.Errorf("RootfsBootstrapURL = %q, want override", cfg.RootfsBootstrapURL)
	}
}

func TestDefaultConfigHonorsCacheDirOverride(t *testing.T) {
	t.Setenv(EnvCacheDir, "custom-cache")

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig() failed: %v", err)
	}

	wd, _ := os.Getwd()
	want := filepath.Join(wd, "custom-cache")
	if cfg.CacheDir != want {
		t.Errorf("CacheDir = %q, want %q", cfg.CacheDir, want)
	}
}

func TestGetContainerTimeoutClampsRange(t *testing.T) {
	t.Setenv(EnvContainerTimeout, "1s")
	if got := getContainerTimeout(); got != 1*time.Minute {
		t.Errorf("got %v, want clamped minimum 1m", got)
	}

	t.Setenv(EnvContainerTimeout, "48h")
	if got := getContainerTimeout(); got != 24*time.Hour {
		t.Errorf("got %v, want clamped maximum 24h", got)
	}

	t.Setenv(EnvContainerTimeout, "not-a-duration")
	if got := getContainerTimeout(); got != DefaultContainerTimeout {
		t.Errorf("got %v, want default on parse failure", got)
	}
}

func TestGetThreadCountClampsRange(t *testing.T) {
	t.Setenv(EnvThreadCount, "0")
	if got := getThreadCount(); got != 1 {
		t.Errorf("got %d, want clamped minimum 1", got)
	}

	t.Setenv(EnvThreadCount, "1000")
	if got := getThreadCount(); got != 256 {
		t.Errorf("got %d, want clamped maximum 256", got)
	}

	t.Setenv(EnvThreadCount, "bogus")
	if got := getThreadCount(); got != DefaultThreadCount {
		t.Errorf("got %d, want default on parse failure", got)
	}
}
