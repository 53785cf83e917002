package constants

import "time"

const (
	AppName            = "tally"
	DefaultKeyringUser = "remote-dsn"
	Version            = "v0.3.0"

	// DateFormat is the layout of daily and weekly period keys (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// MonthFormat is the layout of monthly period keys (YYYY-MM)
	MonthFormat = "2006-01"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// Habit limits
	MaxHabits         = 10
	MaxTitleLength    = 50
	DefaultIncrement  = 1
	DefaultFrequency  = "everyday"
	LocalIDPrefix     = "local_"
	ExportVersion     = 1
	ImportBatchSize   = 500
	MaxStreakLookback = 365 * 10

	// Timing
	DefaultDebounce     = time.Second
	DefaultReminderTime = "21:00"
	WatchPollInterval   = 500 * time.Millisecond

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "tally-"
	BackupFileSuffix = ".db"

	// Watcher lock
	WatchLockfileName = "tally-watch.lock"

	// Remote change feed channel
	NotifyChannel = "tally_changes"
)

// StreakMilestones are the streak lengths worth celebrating, ascending.
var StreakMilestones = []int{7, 30, 50, 100, 150, 200, 365}
