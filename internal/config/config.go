package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultPoll            = "@every 1m"
	defaultAllDayHour      = 12
	defaultMaxExpansion    = 100000
	defaultMaxBacklog      = 100
	defaultBacklogLookback = "24h"
	defaultAgendaDays      = 7
	defaultLogLevel        = "info"
	defaultCacheDir        = "~/.cache/remhind"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the alarm view.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// SubscriptionConfig is a remote calendar polled over HTTP.
type SubscriptionConfig struct {
	ID  string `yaml:"id" json:"id"`
	URL string `yaml:"url" json:"url"`
}

// Config is the top-level daemon configuration.
type Config struct {
	// Timezone is the IANA zone used for floating times and date-only
	// anchors. Empty means the system zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// AllDayHour is the wall-clock hour at which all-day items alarm.
	AllDayHour int `yaml:"all_day_hour" json:"all_day_hour"`

	// Calendars lists directories scanned for *.ics files.
	Calendars []string `yaml:"calendars" json:"calendars"`

	// Subscriptions are fetched on every poll; CacheDir keeps the last
	// good body of each.
	Subscriptions []SubscriptionConfig `yaml:"subscriptions,omitempty" json:"subscriptions,omitempty"`
	CacheDir      string               `yaml:"cache_dir" json:"cache_dir"`

	// Poll is a cron spec (e.g. "@every 1m" or "* * * * *") for the
	// delivery loop.
	Poll string `yaml:"poll" json:"poll"`

	// MaxExpansion caps occurrences visited per series and query.
	MaxExpansion int `yaml:"max_expansion" json:"max_expansion"`

	// MaxBacklog caps pending reminders reported per task.
	MaxBacklog int `yaml:"max_backlog" json:"max_backlog"`

	// BacklogLookback is a Go duration string; recurring-task backlog
	// starts this long before the task was first seen.
	BacklogLookback string `yaml:"backlog_lookback" json:"backlog_lookback"`

	// Listen is the HTTP address of the alarm view. Empty disables it.
	Listen string `yaml:"listen" json:"listen"`

	// AgendaDays is the default window of the agenda view.
	AgendaDays int `yaml:"agenda_days" json:"agenda_days"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		AllDayHour:      defaultAllDayHour,
		Calendars:       []string{"~/.calendars"},
		CacheDir:        defaultCacheDir,
		Poll:            defaultPoll,
		MaxExpansion:    defaultMaxExpansion,
		MaxBacklog:      defaultMaxBacklog,
		BacklogLookback: defaultBacklogLookback,
		AgendaDays:      defaultAgendaDays,
		LogLevel:        defaultLogLevel,
	}
}

// DefaultPath is ~/.config/remhind/config.yaml, or a relative path when
// the home directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "remhind.yaml"
	}
	return filepath.Join(dir, "remhind", "config.yaml")
}

// Normalize fills in missing/zero values with defaults.
func (c *Config) Normalize() {
	if c.AllDayHour <= 0 || c.AllDayHour > 23 {
		c.AllDayHour = defaultAllDayHour
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	for i := range c.Subscriptions {
		if c.Subscriptions[i].ID == "" {
			c.Subscriptions[i].ID = c.Subscriptions[i].URL
		}
	}
	if c.Poll == "" {
		c.Poll = defaultPoll
	}
	if c.MaxExpansion <= 0 {
		c.MaxExpansion = defaultMaxExpansion
	}
	if c.MaxBacklog <= 0 {
		c.MaxBacklog = defaultMaxBacklog
	}
	if c.BacklogLookback == "" {
		c.BacklogLookback = defaultBacklogLookback
	}
	if c.AgendaDays <= 0 {
		c.AgendaDays = defaultAgendaDays
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Calendars == nil {
		c.Calendars = []string{}
	}
}

// Validate checks values that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	for _, sub := range c.Subscriptions {
		if sub.URL == "" {
			errs = append(errs, fmt.Errorf("subscription %q: url is empty", sub.ID))
		}
	}
	if _, err := cron.ParseStandard(c.Poll); err != nil {
		errs = append(errs, fmt.Errorf("poll %q: %w", c.Poll, err))
	}
	if d, err := c.Lookback(); err != nil {
		errs = append(errs, fmt.Errorf("backlog_lookback %q: %w", c.BacklogLookback, err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("backlog_lookback %q: must not be negative", c.BacklogLookback))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone; empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// PollInterval is the gap between the poll tick that follows now and the
// one after it.
func (c *Config) PollInterval(now time.Time) (time.Duration, error) {
	sched, err := cron.ParseStandard(c.Poll)
	if err != nil {
		return 0, err
	}
	next := sched.Next(now)
	return sched.Next(next).Sub(next), nil
}

// Lookback parses BacklogLookback.
func (c *Config) Lookback() (time.Duration, error) {
	if c.BacklogLookback == "" {
		return 0, nil
	}
	return time.ParseDuration(c.BacklogLookback)
}

// CalendarDirs returns Calendars with a leading "~/" expanded.
func (c *Config) CalendarDirs() []string {
	out := make([]string, 0, len(c.Calendars))
	for _, dir := range c.Calendars {
		out = append(out, expandHome(dir))
	}
	return out
}

// CacheRoot returns CacheDir with a leading "~/" expanded.
func (c *Config) CacheRoot() string {
	return expandHome(c.CacheDir)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshaled, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) when needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".remhind-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
