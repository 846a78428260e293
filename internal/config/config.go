// Package config loads server settings from an optional YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ModeProcess spawns the colorize command once per request.
	ModeProcess = "process"
	// ModeInProcess loads the model bundle once and colorizes inside the server.
	ModeInProcess = "inprocess"
)

// Config holds every server setting. Zero durations mean "no limit".
type Config struct {
	Addr            string        `yaml:"addr"`
	UploadDir       string        `yaml:"upload_dir"`
	ResultsDir      string        `yaml:"results_dir"`
	ModelsDir       string        `yaml:"models_dir"`
	ColorizerBin    string        `yaml:"colorizer_bin"`
	Mode            string        `yaml:"mode"`
	Timeout         time.Duration `yaml:"timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	DatabaseDSN     string        `yaml:"database_dsn"`
	RedisAddr       string        `yaml:"redis_addr"`
	JWTSecret       string        `yaml:"jwt_secret"`
	JWTAudience     string        `yaml:"jwt_audience"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr:            ":8080",
		UploadDir:       "static/uploads",
		ResultsDir:      "static/results",
		ModelsDir:       "models",
		ColorizerBin:    "colorize",
		Mode:            ModeProcess,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Load applies the YAML file at path (skipped when empty) and then the
// environment on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeProcess, ModeInProcess:
	default:
		return fmt.Errorf("unknown colorize mode %q (want %q or %q)", c.Mode, ModeProcess, ModeInProcess)
	}
	if c.Timeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	for name, dir := range map[string]string{"upload_dir": c.UploadDir, "results_dir": c.ResultsDir, "models_dir": c.ModelsDir} {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	return nil
}

// LedgerEnabled reports whether colorization jobs are persisted.
func (c Config) LedgerEnabled() bool {
	return c.DatabaseDSN != ""
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"HTTP_ADDR":     &c.Addr,
		"UPLOAD_DIR":    &c.UploadDir,
		"RESULTS_DIR":   &c.ResultsDir,
		"MODELS_DIR":    &c.ModelsDir,
		"COLORIZER_BIN": &c.ColorizerBin,
		"COLORIZE_MODE": &c.Mode,
		"DATABASE_DSN":  &c.DatabaseDSN,
		"REDIS_ADDR":    &c.RedisAddr,
		"JWT_SECRET":    &c.JWTSecret,
		"JWT_AUDIENCE":  &c.JWTAudience,
	}
	for key, dst := range strs {
		if value, ok := lookup(key); ok && value != "" {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"COLORIZE_TIMEOUT": &c.Timeout,
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
	}
	for key, dst := range durations {
		value, ok := lookup(key)
		if !ok || value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}
