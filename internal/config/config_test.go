package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"distill/internal/config"
)

func TestLoadDefaultConfigUsesEnvAPIKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("DISTILL_LLM_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "distill")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.AudioDir != filepath.Join(wantData, "audio") {
		t.Fatalf("unexpected audio dir: %q", cfg.Paths.AudioDir)
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != config.Default().LLM.BaseURL {
		t.Fatalf("unexpected LLM base url: %q", cfg.LLM.BaseURL)
	}
	if cfg.Transcriber.CUDAEnabled {
		t.Fatal("expected CUDA disabled by default")
	}
	if cfg.Workflow.WorkerCount != config.Default().Workflow.WorkerCount {
		t.Fatalf("unexpected worker count: %d", cfg.Workflow.WorkerCount)
	}
	if len(cfg.Fetch.PermanentStatuses) == 0 {
		t.Fatal("expected permanent status defaults")
	}
	if cfg.Fetch.PermanentStatuses[0] != 401 {
		t.Fatalf("unexpected permanent statuses: %v", cfg.Fetch.PermanentStatuses)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.AudioDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "distill.toml")

	type payload struct {
		LLM struct {
			APIKey string `toml:"api_key"`
			Model  string `toml:"model"`
		} `toml:"llm"`
		Workflow struct {
			WorkerCount     int `toml:"worker_count"`
			CheckoutTimeout int `toml:"checkout_timeout"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.LLM.APIKey = "abc123"
	custom.LLM.Model = "anthropic/claude-sonnet"
	custom.Workflow.WorkerCount = 4
	custom.Workflow.CheckoutTimeout = 900

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.LLM.APIKey != "abc123" {
		t.Fatalf("unexpected api key: %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "anthropic/claude-sonnet" {
		t.Fatalf("unexpected model: %q", cfg.LLM.Model)
	}
	if cfg.Workflow.WorkerCount != 4 {
		t.Fatalf("unexpected worker count: %d", cfg.Workflow.WorkerCount)
	}
	if cfg.Workflow.CheckoutTimeout != 900 {
		t.Fatalf("unexpected checkout timeout: %d", cfg.Workflow.CheckoutTimeout)
	}
	// Unset keys keep their defaults.
	if cfg.Workflow.MaxRetries != config.Default().Workflow.MaxRetries {
		t.Fatalf("unexpected max retries: %d", cfg.Workflow.MaxRetries)
	}
}

func TestLoadMissingExplicitPathFallsBackToDefaults(t *testing.T) {
	tempDir := t.TempDir()
	missing := filepath.Join(tempDir, "nope.toml")

	cfg, resolved, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != missing {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Workflow.PollInterval != config.Default().Workflow.PollInterval {
		t.Fatalf("unexpected poll interval: %d", cfg.Workflow.PollInterval)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		message string
	}{
		{
			name:    "zero workers",
			mutate:  func(c *config.Config) { c.Workflow.WorkerCount = 0 },
			message: "worker_count",
		},
		{
			name:    "negative delegation depth",
			mutate:  func(c *config.Config) { c.Workflow.MaxDelegationDepth = -1 },
			message: "max_delegation_depth",
		},
		{
			name:    "checkout timeout below sweep",
			mutate:  func(c *config.Config) { c.Workflow.CheckoutTimeout = 10 },
			message: "checkout_timeout",
		},
		{
			name:    "invalid permanent status",
			mutate:  func(c *config.Config) { c.Fetch.PermanentStatuses = []int{999} },
			message: "permanent_statuses",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "xml" },
			message: "logging.format",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected error mentioning %q, got %v", tc.message, err)
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "config.toml")

	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[workflow]") {
		t.Fatal("expected sample to contain [workflow] section")
	}

	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when overwriting existing config")
	}
}
