package testsupport

import (
	"path/filepath"
	"testing"

	"distill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.AudioDir = filepath.Join(base, "audio")
	cfgVal.LLM.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	return builder.cfg
}

// WithMaxRetries overrides the retry budget on the test config.
func WithMaxRetries(retries int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxRetries = retries
	}
}

// WithWorkerCount overrides the dispatch worker count on the test config.
func WithWorkerCount(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.WorkerCount = count
	}
}

// WithFastPolling shrinks the dispatch intervals so loop-driven tests
// finish quickly.
func WithFastPolling() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.PollInterval = 1
		b.cfg.Workflow.ErrorRetryInterval = 1
		b.cfg.Workflow.StaleSweepInterval = 1
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
