package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Mode)
	assert.Equal(t, uint(5001), cfg.Port)
	assert.Equal(t, ":5001", cfg.Addr())
	assert.Equal(t, "./k6-scripts", cfg.ScriptsDir)
	assert.Equal(t, filepath.Join(os.TempDir(), "k6lunge"), cfg.WorkDir)
	assert.Equal(t, "k6", cfg.K6Binary)
	assert.Equal(t, []string{"stage", "prod"}, cfg.Environments)
	assert.Equal(t, []string{"ab", "cd"}, cfg.Applications)
	assert.True(t, cfg.SeedSamples)
	assert.Equal(t, "k6", cfg.Namespace)
	assert.True(t, cfg.ClusterCleanup)
	assert.Equal(t, int64(1<<20), cfg.MaxUploadBytes)
	assert.False(t, cfg.DebugMode)
	assert.True(t, cfg.DateTime)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("EXECUTION_MODE", "Cluster")
	t.Setenv("RUNNER_HOST", "127.0.0.1")
	t.Setenv("RUNNER_PORT", "8080")
	t.Setenv("RUNNER_ENVIRONMENTS", "qa, stage ,prod")
	t.Setenv("RUNNER_SEED_SAMPLES", "false")
	t.Setenv("RUNNER_K8S_NAMESPACE", "load")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "cluster", cfg.Mode)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, []string{"qa", "stage", "prod"}, cfg.Environments)
	assert.False(t, cfg.SeedSamples)
	assert.Equal(t, "load", cfg.Namespace)
}

func TestLoadEnvFileOverridesEnv(t *testing.T) {
	t.Setenv("RUNNER_PORT", "8080")
	t.Setenv("RUNNER_K6_BINARY", "/usr/bin/k6")

	path := filepath.Join(t.TempDir(), "runner.env")
	require.NoError(t, os.WriteFile(path, []byte("RUNNER_PORT=9090\nRUNNER_DEBUG=true\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint(9090), cfg.Port)
	assert.True(t, cfg.DebugMode)
	assert.Equal(t, "/usr/bin/k6", cfg.K6Binary)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Mode)
}

func TestValidate(t *testing.T) {
	base := Configuration{
		Mode:           "local",
		Port:           5001,
		Environments:   []string{"stage"},
		Applications:   []string{"ab"},
		MaxUploadBytes: 1024,
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"unknown mode", func(c *Configuration) { c.Mode = "remote" }},
		{"no environments", func(c *Configuration) { c.Environments = nil }},
		{"no applications", func(c *Configuration) { c.Applications = nil }},
		{"zero port", func(c *Configuration) { c.Port = 0 }},
		{"port too large", func(c *Configuration) { c.Port = 70000 }},
		{"zero upload size", func(c *Configuration) { c.MaxUploadBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("EXECUTION_MODE", "remote")

	_, err := Load("")
	assert.Error(t, err)
}
