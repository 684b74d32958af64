// Package config loads the service configuration from environment variables,
// optionally overridden by a .env file.
package config

import (
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Configuration holds the post-processed configuration values.
type Configuration struct {
	// Either "local" or "cluster". Fixed for the lifetime of the process.
	Mode string `mapstructure:"EXECUTION_MODE"`

	Host string `mapstructure:"RUNNER_HOST"`
	Port uint   `mapstructure:"RUNNER_PORT"`

	// Base directory of the script store.
	ScriptsDir string `mapstructure:"RUNNER_SCRIPTS_DIR"`

	// Directory for per-run script and event log files.
	WorkDir string `mapstructure:"RUNNER_WORK_DIR"`

	K6Binary string `mapstructure:"RUNNER_K6_BINARY"`

	Environments []string `mapstructure:"RUNNER_ENVIRONMENTS"`
	Applications []string `mapstructure:"RUNNER_APPLICATIONS"`

	// Write the bundled sample scripts at start-up when they are missing.
	SeedSamples bool `mapstructure:"RUNNER_SEED_SAMPLES"`

	Namespace string `mapstructure:"RUNNER_K8S_NAMESPACE"`

	// Path to a kubeconfig file. Empty means in-cluster, then the default
	// loading rules.
	Kubeconfig string `mapstructure:"RUNNER_KUBECONFIG"`

	// Delete the script ConfigMap when its TestRun could not be created.
	ClusterCleanup bool `mapstructure:"RUNNER_CLUSTER_CLEANUP"`

	MaxUploadBytes int64 `mapstructure:"RUNNER_MAX_UPLOAD_BYTES"`

	DebugMode bool `mapstructure:"RUNNER_DEBUG"`
	DateTime  bool `mapstructure:"RUNNER_LOG_DATETIME"`
	LogColors bool `mapstructure:"RUNNER_LOG_COLORS"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("EXECUTION_MODE", "local")
	v.SetDefault("RUNNER_HOST", "")
	v.SetDefault("RUNNER_PORT", 5001)
	v.SetDefault("RUNNER_SCRIPTS_DIR", "./k6-scripts")
	v.SetDefault("RUNNER_WORK_DIR", filepath.Join(os.TempDir(), "k6lunge"))
	v.SetDefault("RUNNER_K6_BINARY", "k6")
	v.SetDefault("RUNNER_ENVIRONMENTS", []string{"stage", "prod"})
	v.SetDefault("RUNNER_APPLICATIONS", []string{"ab", "cd"})
	v.SetDefault("RUNNER_SEED_SAMPLES", true)
	v.SetDefault("RUNNER_K8S_NAMESPACE", "k6")
	v.SetDefault("RUNNER_KUBECONFIG", "")
	v.SetDefault("RUNNER_CLUSTER_CLEANUP", true)
	v.SetDefault("RUNNER_MAX_UPLOAD_BYTES", 1<<20)
	v.SetDefault("RUNNER_DEBUG", false)
	v.SetDefault("RUNNER_LOG_DATETIME", true)
	v.SetDefault("RUNNER_LOG_COLORS", true)
}

// bindEnv binds each field of the Configuration struct with its
// corresponding environment variable, since viper does not see environment
// variables during Unmarshal unless they are bound.
func bindEnv(v *viper.Viper) {
	t := reflect.TypeOf(Configuration{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		_ = v.BindEnv(tag, tag)
	}
}

// Load reads configuration from environment variables first, and then
// optionally overwrites it with the .env file at configPath. A configPath
// that does not exist is ignored.
func Load(configPath string) (Configuration, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr == nil {
			if err := overrideFromFile(v, configPath); err != nil {
				return Configuration{}, err
			}
		} else if !os.IsNotExist(statErr) {
			return Configuration{}, errors.Wrapf(statErr, "failed to stat %s", configPath)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return Configuration{}, errors.Wrap(err, "failed to decode configuration")
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.Environments = cleanList(cfg.Environments)
	cfg.Applications = cleanList(cfg.Applications)

	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

// overrideFromFile copies every key of the .env file at path into v with
// Set, which outranks environment variables.
func overrideFromFile(v *viper.Viper, path string) error {
	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("env")
	if err := file.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}

	for _, key := range file.AllKeys() {
		v.Set(key, file.Get(key))
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c Configuration) Validate() error {
	switch c.Mode {
	case "local", "cluster":
	default:
		return errors.Errorf("EXECUTION_MODE must be local or cluster, got %q", c.Mode)
	}
	if len(c.Environments) == 0 {
		return errors.New("RUNNER_ENVIRONMENTS must list at least one environment")
	}
	if len(c.Applications) == 0 {
		return errors.New("RUNNER_APPLICATIONS must list at least one application")
	}
	if c.Port == 0 || c.Port > 65535 {
		return errors.Errorf("RUNNER_PORT out of range: %d", c.Port)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.Errorf("RUNNER_MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}

// Addr is the HTTP listen address.
func (c Configuration) Addr() string {
	return net.JoinHostPort(c.Host, strconv.FormatUint(uint64(c.Port), 10))
}

// cleanList splits comma-joined entries, trims them and drops empty ones.
func cleanList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
