package backups

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/logger"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
	List    BackupListCmd    `cmd:"" help:"List available backups."`
	Restore BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	if _, err := ctx.Router.Local(ctx.Ctx); err != nil {
		return err
	}
	path, err := ctx.Backups().Create(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	ctx.Printf("✓ Backup created: %s\n", filepath.Base(path))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr := ctx.Backups()
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		ctx.Println("No backups found.")
		ctx.Printf("Backups are stored in: %s\n", mgr.Dir())
		return nil
	}

	ctx.Printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), ctx.Config.Backup.Max)
	for _, b := range backups {
		ctx.Printf("  %s  %s  (%.1f KB)\n", b.Timestamp.Format("2006-01-02 15:04:05"), filepath.Base(b.Path), float64(b.Size)/1024.0)
	}
	ctx.Printf("\nBackup directory: %s\n", mgr.Dir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `help:"Skip the confirmation prompt." short:"y"`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr := ctx.Backups()
	path, err := c.resolve(mgr.Dir())
	if err != nil {
		return err
	}

	if !c.Yes {
		ok, err := ctx.Confirm("Restore "+filepath.Base(path)+"?",
			"This replaces your local habits with the backup. Stop any running 'tally watch' first. "+
				"A backup of the current database is taken before restoring.")
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Restore cancelled.")
			return nil
		}
	}

	// The database file is replaced underneath the store, so close it first.
	if err := ctx.Close(); err != nil {
		logger.Warn("failed to close database before restore", "error", err)
	}

	previous, err := mgr.Restore(ctx.Ctx, path)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	ctx.Println("✓ Database restored successfully!")
	if previous != "" {
		ctx.Printf("  Previous database saved as %s\n", filepath.Base(previous))
	}
	return nil
}

// resolve finds the backup as given, or by name in the backup directory.
func (c *BackupRestoreCmd) resolve(dir string) (string, error) {
	if _, err := os.Stat(c.BackupFile); err == nil {
		return filepath.Abs(c.BackupFile)
	}
	if filepath.IsAbs(c.BackupFile) {
		return "", fmt.Errorf("backup file not found: %s", c.BackupFile)
	}
	candidate := filepath.Join(dir, c.BackupFile)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", fmt.Errorf("backup file not found: tried current directory and %s", dir)
}
