package constants

const (
	// Client state keys stored in the local settings table
	SettingGuestMode    = "guest_mode"
	SettingSessionScope = "session_scope"

	// Config keys
	ConfigDataDir         = "data_dir"
	ConfigDebug           = "debug"
	ConfigTimezone        = "timezone"
	ConfigWeekStart       = "week_start"
	ConfigRemoteDSN       = "remote.dsn"
	ConfigSyncDebounce    = "sync.debounce"
	ConfigReminderTime    = "reminder.time"
	ConfigBackupMax       = "backup.max"
	ConfigMetricsTextfile = "metrics.textfile"

	// Default config values
	DefaultTimezone  = "Local" // Use system local timezone by default
	DefaultWeekStart = "monday"
	DefaultDBName    = "tally.db"
	DefaultConfig    = "config.yaml"
)
