package borg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

const configName = ".borgadm.toml"

var (
	ErrConfigMissing = errors.New("borg: config file not found")
	ErrInvalidConfig = errors.New("borg: invalid config")
)

// Set is one named group of paths backed up together.
type Set struct {
	Paths    []string `toml:"paths"`
	Excludes []string `toml:"excludes"`
}

// Config is the borgadm configuration, loaded from ~/.borgadm.toml.
type Config struct {
	Repo         string         `toml:"repo"`
	OpPassphrase string         `toml:"op_passphrase"`
	KeepHourly   int            `toml:"keep_hourly"`
	KeepDaily    int            `toml:"keep_daily"`
	KeepWeekly   int            `toml:"keep_weekly"`
	KeepMonthly  int            `toml:"keep_monthly"`
	KeepYearly   int            `toml:"keep_yearly"`
	Sets         map[string]Set `toml:"sets"`
}

func (c Config) Keep() KeepCounts {
	return KeepCounts{
		Hourly:  c.KeepHourly,
		Daily:   c.KeepDaily,
		Weekly:  c.KeepWeekly,
		Monthly: c.KeepMonthly,
		Yearly:  c.KeepYearly,
	}
}

// SetNames returns the configured set names, sorted.
func (c Config) SetNames() []string {
	names := make([]string, 0, len(c.Sets))
	for name := range c.Sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultConfigPath is ~/.borgadm.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configName), nil
}

// LoadConfig reads and validates a config file. Keep counts default
// to 2 per tier when unset.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigMissing, path)
	}

	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	defaults := []struct {
		key  string
		dest *int
	}{
		{"keep_hourly", &cfg.KeepHourly},
		{"keep_daily", &cfg.KeepDaily},
		{"keep_weekly", &cfg.KeepWeekly},
		{"keep_monthly", &cfg.KeepMonthly},
		{"keep_yearly", &cfg.KeepYearly},
	}
	for _, d := range defaults {
		if !meta.IsDefined(d.key) {
			*d.dest = 2
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural requirements: a repo, at least one set,
// non-empty paths per set, non-negative keep counts.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Repo) == "" {
		problems = append(problems, "repo is required")
	}
	if len(c.Sets) == 0 {
		problems = append(problems, "at least one [sets.<name>] is required")
	}
	for _, name := range c.SetNames() {
		set := c.Sets[name]
		if len(set.Paths) == 0 {
			problems = append(problems, fmt.Sprintf("set %q has no paths", name))
		}
		for _, p := range set.Paths {
			if strings.TrimSpace(p) == "" {
				problems = append(problems, fmt.Sprintf("set %q has an empty path", name))
			}
		}
	}
	for _, k := range []struct {
		name  string
		value int
	}{
		{"keep_hourly", c.KeepHourly},
		{"keep_daily", c.KeepDaily},
		{"keep_weekly", c.KeepWeekly},
		{"keep_monthly", c.KeepMonthly},
		{"keep_yearly", c.KeepYearly},
	} {
		if k.value < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative", k.name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
