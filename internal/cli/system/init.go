package system

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/constants"
)

type InitCmd struct {
	Force bool `help:"Overwrite an existing config file."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	local, err := ctx.Router.Local(ctx.Ctx)
	if err != nil {
		return err
	}
	ctx.Printf("Initialized tally storage at: %s\n", local.Path())

	path := ctx.Config.Path
	if _, err := os.Stat(path); err == nil && !c.Force {
		ctx.Printf("Config file already exists: %s (use --force to overwrite)\n", path)
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to access config file: %w", err)
	}
	if err := writeConfig(path, ctx.Config); err != nil {
		return err
	}
	ctx.Printf("Wrote config file: %s\n", path)
	return nil
}

// writeConfig saves cfg as YAML. The remote DSN is left out; it belongs in
// the keyring or the environment.
func writeConfig(path string, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	v := viper.New()
	v.Set(constants.ConfigDataDir, cfg.DataDir)
	v.Set(constants.ConfigTimezone, cfg.Timezone)
	v.Set(constants.ConfigWeekStart, cfg.WeekStart)
	v.Set(constants.ConfigSyncDebounce, cfg.Sync.Debounce.String())
	v.Set(constants.ConfigReminderTime, cfg.Reminder.Time)
	v.Set(constants.ConfigBackupMax, cfg.Backup.Max)
	v.Set(constants.ConfigMetricsTextfile, cfg.Metrics.Textfile)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(path, 0600)
}
