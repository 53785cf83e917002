// Package config loads tally's settings from config.yaml, TALLY_* environment
// variables and the OS keyring, in increasing order of precedence for the
// remote DSN.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/gookit/validate"
	"github.com/spf13/viper"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/utils"
)

type RemoteConfig struct {
	DSN string `mapstructure:"dsn"`
}

type SyncConfig struct {
	Debounce time.Duration `mapstructure:"debounce" validate:"required|min:1"`
}

type ReminderConfig struct {
	Time string `mapstructure:"time" validate:"required|clock"`
}

type BackupConfig struct {
	Max int `mapstructure:"max" validate:"required|int|min:1"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Config is the resolved application configuration
type Config struct {
	Path      string `mapstructure:"-"`
	DataDir   string `mapstructure:"data_dir" validate:"required"`
	Debug     bool   `mapstructure:"debug"`
	Timezone  string `mapstructure:"timezone" validate:"required|timezone"`
	WeekStart string `mapstructure:"week_start" validate:"required|weekday"`

	Remote   RemoteConfig   `mapstructure:"remote"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// Options are the command line overrides applied on top of the file.
type Options struct {
	Path    string
	DataDir string
	Debug   bool
}

// DefaultPath returns the config.yaml location under the XDG config home.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, constants.AppName, constants.DefaultConfig)
}

// DefaultDataDir returns the data directory under the XDG data home.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, constants.AppName)
}

// Load reads the config file if present, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(opts Options) (*Config, error) {
	v := viper.New()

	path := opts.Path
	if path == "" {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault(constants.ConfigDataDir, DefaultDataDir())
	v.SetDefault(constants.ConfigDebug, false)
	v.SetDefault(constants.ConfigTimezone, constants.DefaultTimezone)
	v.SetDefault(constants.ConfigWeekStart, constants.DefaultWeekStart)
	v.SetDefault(constants.ConfigSyncDebounce, constants.DefaultDebounce)
	v.SetDefault(constants.ConfigReminderTime, constants.DefaultReminderTime)
	v.SetDefault(constants.ConfigBackupMax, constants.MaxBackups)
	v.SetDefault(constants.ConfigMetricsTextfile, "")
	v.SetDefault(constants.ConfigRemoteDSN, "")

	_ = v.BindEnv(constants.ConfigDataDir, "TALLY_DATA_DIR")
	_ = v.BindEnv(constants.ConfigDebug, "TALLY_DEBUG")
	_ = v.BindEnv(constants.ConfigTimezone, "TALLY_TIMEZONE")
	_ = v.BindEnv(constants.ConfigWeekStart, "TALLY_WEEK_START")
	_ = v.BindEnv(constants.ConfigRemoteDSN, "TALLY_REMOTE_DSN")
	_ = v.BindEnv(constants.ConfigSyncDebounce, "TALLY_SYNC_DEBOUNCE")
	_ = v.BindEnv(constants.ConfigReminderTime, "TALLY_REMINDER_TIME")
	_ = v.BindEnv(constants.ConfigMetricsTextfile, "TALLY_METRICS_TEXTFILE")

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) && !isConfigNotFound(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	conf.Path = path
	if opts.DataDir != "" {
		conf.DataDir = opts.DataDir
	}
	if opts.Debug {
		conf.Debug = true
	}
	conf.DataDir = expandHome(conf.DataDir)
	conf.WeekStart = strings.ToLower(strings.TrimSpace(conf.WeekStart))

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func isConfigNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf)
}

// Validate checks every field against its rules.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	v.AddValidator("timezone", func(val any) bool {
		s, ok := val.(string)
		return ok && utils.ValidateTimezone(s)
	})
	v.AddValidator("weekday", func(val any) bool {
		s, ok := val.(string)
		if !ok {
			return false
		}
		_, err := utils.ParseWeekday(s)
		return err == nil
	})
	v.AddValidator("clock", func(val any) bool {
		s, ok := val.(string)
		if !ok {
			return false
		}
		_, err := utils.ParseTime(s)
		return err == nil
	})
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}
	return nil
}

// DBPath returns the local SQLite database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, constants.DefaultDBName)
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := utils.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// WeekStartDay returns the configured first day of the week.
func (c *Config) WeekStartDay() time.Weekday {
	wd, err := utils.ParseWeekday(c.WeekStart)
	if err != nil {
		return time.Monday
	}
	return wd
}

// RemoteDSN resolves the remote DSN from config or environment, then from the
// OS keyring. An empty result means remote sync is not configured.
func (c *Config) RemoteDSN() (string, error) {
	if c.Remote.DSN != "" {
		return c.Remote.DSN, nil
	}
	dsn, err := keyring.GetRemoteDSN()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return dsn, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
