package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oriys/airgate/internal/config"
)

func TestServeRefusesToStartWithoutAPIKey(t *testing.T) {
	t.Setenv("API_NINJAS_KEY", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve", "--listen", "127.0.0.1:0"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected serve to fail without an API key")
	}
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestServeRejectsBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airgate.yaml")
	os.WriteFile(path, []byte("upstream: [nope"), 0644)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve", "--config", path})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config load error, got %v", err)
	}
}

func TestLoadConfigPrefersEnvOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airgate.yaml")
	os.WriteFile(path, []byte("upstream:\n  api_key: from-file\n"), 0644)
	t.Setenv("API_NINJAS_KEY", "from-env")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Upstream.APIKey != "from-env" {
		t.Fatalf("expected env to override file, got %q", cfg.Upstream.APIKey)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"version"})
	cmd.SetOut(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "airgate ") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}
