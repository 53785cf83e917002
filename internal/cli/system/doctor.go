package system

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/validation"
	"github.com/julianstephens/tally/migrations"
)

type DoctorCmd struct{}

type check struct {
	name string
	run  func(ctx *cli.Context) error
	// warn marks checks whose failure is reported but not fatal.
	warn bool
	// needsDB skips the check when the local database is unreachable.
	needsDB bool
}

var checks = []check{
	{name: "Database reachable", run: checkDBReachable},
	{name: "Schema version", run: checkSchemaVersion, needsDB: true},
	{name: "Data validation", run: checkValidation, needsDB: true},
	{name: "Backups present", run: checkBackupsPresent, warn: true, needsDB: true},
	{name: "Clock/timezone", run: checkClockTimezone},
	{name: "OS keyring", run: checkKeyring, warn: true},
	{name: "Remote access", run: checkRemoteAccess, needsDB: true},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	hasError := false
	dbReachable := true
	for _, c := range checks {
		if c.needsDB && !dbReachable {
			ctx.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			ctx.Printf("✓ %s: OK\n", c.name)
		case c.warn:
			ctx.Printf("⚠ %s: WARNING\n", c.name)
			ctx.Printf("   %v\n", err)
		default:
			ctx.Printf("❌ %s: FAIL\n", c.name)
			ctx.Printf("   Error: %v\n", err)
			hasError = true
			if c.name == "Database reachable" {
				dbReachable = false
			}
		}
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	local, err := ctx.Router.Local(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	var result int
	if err := local.DB().QueryRowContext(ctx.Ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	local, err := ctx.Router.Local(ctx.Ctx)
	if err != nil {
		return err
	}
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return err
	}
	return migration.NewRunner(local.DB(), subFS, migration.DriverSQLite).ValidateVersion(ctx.Ctx)
}

func checkValidation(ctx *cli.Context) error {
	local, err := ctx.Router.Local(ctx.Ctx)
	if err != nil {
		return err
	}
	habits, err := local.ListHabits(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to list habits: %w", err)
	}
	result := validation.New(ctx.Keyer).ValidateHabits(habits)
	if result.HasConflicts() {
		return fmt.Errorf("%s", result.FormatReport())
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	backups, err := ctx.Backups().List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with 'tally backup create'")
	}
	return nil
}

func checkClockTimezone(ctx *cli.Context) error {
	now := ctx.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if ctx.Keyer.Location == nil {
		return fmt.Errorf("no time zone configured")
	}
	return nil
}

func checkKeyring(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		return fmt.Errorf("OS keyring is not available; set remote.dsn in %s instead", ctx.Config.Path)
	}
	return nil
}

// checkRemoteAccess probes the signed-in scope. Guests pass trivially.
func checkRemoteAccess(ctx *cli.Context) error {
	session, err := ctx.Session()
	if err != nil {
		return err
	}
	if !session.SignedIn() {
		return nil
	}
	remote, err := ctx.Router.OpenRemote(ctx.Ctx, session.Scope)
	if err != nil {
		return err
	}
	return remote.Close()
}
