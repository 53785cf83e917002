package system

import (
	"fmt"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/storage/postgres"
)

// MigrateCmd prepares the remote database. The local database migrates
// itself whenever it is opened.
type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	if _, err := ctx.Router.Local(ctx.Ctx); err != nil {
		return fmt.Errorf("failed to migrate local database: %w", err)
	}
	ctx.Println("✓ Local database is up to date.")

	dsn, err := ctx.Config.RemoteDSN()
	if err != nil {
		return err
	}
	if dsn == "" {
		return fmt.Errorf("no remote database configured (set remote.dsn or run 'tally keyring set')")
	}

	remote := postgres.New(dsn, postgres.Options{Keyer: ctx.Keyer})
	defer remote.Close()
	applied, err := remote.Init(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if applied == 0 {
		ctx.Println("No migrations to apply. Remote database is up to date.")
	} else {
		ctx.Printf("✓ Applied %d migration(s) to the remote database.\n", applied)
	}
	return nil
}
