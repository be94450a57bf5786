package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Jezza/healthkube/internal/reconcile"
)

// Duration is a time.Duration that round-trips through YAML in the
// "5m30s" notation instead of nanosecond integers.
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the defaults a user keeps between invocations. Flags and
// environment variables override everything here; the file only spares
// retyping stable settings like the instance URL or the env key name.
type Config struct {
	API APIConfig `yaml:"api"`

	// EnvKey is the environment variable that receives the ping ID.
	EnvKey string `yaml:"envKey,omitempty"`

	// Timezone applied to every check's cron schedule.
	Timezone string `yaml:"timezone,omitempty"`

	// GraceMargin is added to the derived cadence to form the grace
	// period, e.g. "5m".
	GraceMargin Duration `yaml:"graceMargin,omitempty"`

	// TagRank is the occurrence threshold above which a job name
	// segment becomes a tag.
	TagRank int `yaml:"tagRank,omitempty"`

	// SuspendedPolicy is "skip" or "pause".
	SuspendedPolicy string `yaml:"suspendedPolicy,omitempty"`

	// Concurrency bounds parallel fetches and per-pair reconciliation.
	Concurrency int `yaml:"concurrency,omitempty"`
}

// APIConfig locates the Healthchecks instance. The read/write key can
// live here for private instances, but HC_API_KEY or --hc-key take
// precedence and keep keys out of dotfiles.
type APIConfig struct {
	URL string `yaml:"url,omitempty"`
	Key string `yaml:"key,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API:             APIConfig{URL: "https://healthchecks.io"},
		Timezone:        "Europe/Berlin",
		GraceMargin:     Duration(5 * time.Minute),
		TagRank:         2,
		SuspendedPolicy: string(reconcile.SuspendSkip),
		Concurrency:     4,
	}
}

// Validate rejects values the reconciler cannot act on.
func (c Config) Validate() error {
	if !reconcile.SuspendedPolicy(c.SuspendedPolicy).Valid() {
		return fmt.Errorf("suspendedPolicy must be %q or %q, got %q",
			reconcile.SuspendSkip, reconcile.SuspendPause, c.SuspendedPolicy)
	}
	if c.GraceMargin < 0 {
		return fmt.Errorf("graceMargin must not be negative, got %s", time.Duration(c.GraceMargin))
	}
	if c.TagRank < 0 {
		return fmt.Errorf("tagRank must not be negative, got %d", c.TagRank)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	return nil
}
