package data

import (
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/transfer"
)

type ExportCmd struct {
	Path string `arg:"" optional:"" help:"Output file (.json or .json.zst). Writes to stdout when omitted or '-'."`
}

func (c *ExportCmd) Run(ctx *cli.Context) error {
	repo, err := ctx.Repository()
	if err != nil {
		return err
	}
	snap, err := repo.ExportData(ctx.Ctx)
	if err != nil {
		return err
	}

	if c.Path == "" || c.Path == "-" {
		return transfer.Encode(ctx.Out, snap)
	}
	if err := transfer.WriteFile(c.Path, snap); err != nil {
		return err
	}
	ctx.Printf("✓ Exported %d habit(s) to %s\n", len(snap.Habits), c.Path)
	return nil
}

type ImportCmd struct {
	Path string `arg:"" help:"Export file to import (.json or .json.zst), or '-' for stdin."`
}

func (c *ImportCmd) Run(ctx *cli.Context) error {
	snap, err := c.read(ctx)
	if err != nil {
		return err
	}

	repo, err := ctx.Repository()
	if err != nil {
		return err
	}
	ctx.PerformAutomaticBackup()
	if err := repo.ImportData(ctx.Ctx, snap); err != nil {
		return err
	}
	ctx.Printf("✓ Imported %d habit(s)\n", len(snap.Habits))
	return nil
}

func (c *ImportCmd) read(ctx *cli.Context) (models.Snapshot, error) {
	if c.Path == "-" {
		return transfer.Decode(ctx.In)
	}
	return transfer.ReadFile(c.Path)
}

type WipeCmd struct {
	Yes bool `help:"Skip the confirmation prompt." short:"y"`
}

func (c *WipeCmd) Run(ctx *cli.Context) error {
	repo, err := ctx.Repository()
	if err != nil {
		return err
	}
	habits, err := repo.ListHabits(ctx.Ctx)
	if err != nil {
		return err
	}

	if !c.Yes {
		where := "on this device"
		if repo.Backend() != storage.BackendLocal {
			where = "in your account"
		}
		ok, err := ctx.Confirm("Delete all habits?",
			"This permanently removes every habit and log "+where+", including archived habits.")
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Wipe cancelled.")
			return nil
		}
	}

	ctx.PerformAutomaticBackup()
	if err := repo.DeleteAllData(ctx.Ctx); err != nil {
		return err
	}
	ctx.Printf("✓ Deleted %d habit(s)\n", len(habits))
	return nil
}
