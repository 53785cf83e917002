package account

import (
	"context"
	"fmt"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/metrics"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/storage/sqlite"
	habitsync "github.com/julianstephens/tally/internal/sync"
)

type LoginCmd struct {
	Scope string `arg:"" help:"Account scope id to sign in to."`
}

func (c *LoginCmd) Run(ctx *cli.Context) error {
	session, err := ctx.Session()
	if err != nil {
		return err
	}
	if session.SignedIn() {
		return fmt.Errorf("already signed in as %s; run 'tally logout' first", session.Scope)
	}

	remote, err := ctx.Router.OpenRemote(ctx.Ctx, c.Scope)
	if err != nil {
		if errors.IsPermission(err) {
			return fmt.Errorf("access to %s was denied: %w", c.Scope, err)
		}
		if errors.IsTransient(err) {
			return fmt.Errorf("the remote database is unreachable, try again later: %w", err)
		}
		return err
	}
	defer remote.Close()

	local, err := ctx.Router.Local(ctx.Ctx)
	if err != nil {
		return err
	}
	return signIn(ctx, local, metrics.Instrument(remote, ctx.Metrics), c.Scope)
}

// signIn moves guest habits into remote and records the session. A failed
// merge is reported but never blocks the sign-in.
func signIn(ctx *cli.Context, local *sqlite.Store, remote storage.Repository, scope string) error {
	merger := habitsync.Merger{
		Confirm: func(_ context.Context, localCount, remoteCount int) (bool, error) {
			return ctx.Confirm("Add your guest habits to this account?",
				fmt.Sprintf("This device has %d habit(s); the account already has %d. "+
					"Choosing No discards the device's habits.", localCount, remoteCount))
		},
		Metrics: ctx.Metrics,
	}
	res := merger.Merge(ctx.Ctx, local, remote)

	if err := local.SetSession(ctx.Ctx, scope); err != nil {
		return err
	}

	switch res.Outcome {
	case habitsync.Uploaded:
		ctx.Printf("✓ Moved %d guest habit(s) to your account\n", res.Copied)
	case habitsync.Merged:
		ctx.Printf("✓ Merged %d guest habit(s) into your account\n", res.Copied)
	case habitsync.Discarded:
		ctx.Println("Guest habits were discarded.")
	case habitsync.Failed:
		ctx.Println(cli.WarningStyle.Render("⚠ Could not move your guest habits; they are kept on this device."))
		ctx.Printf("   %v\n", res.Err)
	}
	if res.Outcome != habitsync.Failed && res.Err != nil {
		ctx.Println(cli.WarningStyle.Render(fmt.Sprintf("⚠ %v", res.Err)))
	}
	ctx.Printf("✓ Signed in as %s\n", scope)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *cli.Context) error {
	session, err := ctx.Session()
	if err != nil {
		return err
	}
	if !session.SignedIn() {
		ctx.Println("Not signed in.")
		return nil
	}
	local, err := ctx.Router.Local(ctx.Ctx)
	if err != nil {
		return err
	}
	if err := local.ClearSession(ctx.Ctx); err != nil {
		return err
	}
	ctx.Printf("✓ Signed out of %s\n", session.Scope)
	return nil
}

type GuestCmd struct{}

func (c *GuestCmd) Run(ctx *cli.Context) error {
	session, err := ctx.Session()
	if err != nil {
		return err
	}
	if session.SignedIn() {
		return fmt.Errorf("signed in as %s; run 'tally logout' first", session.Scope)
	}
	local, err := ctx.Router.Local(ctx.Ctx)
	if err != nil {
		return err
	}
	if err := local.SetGuestMode(ctx.Ctx, true); err != nil {
		return err
	}
	ctx.Println("✓ Using tally as a guest. Habits are stored on this device only.")
	return nil
}

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	local, err := ctx.Router.Local(ctx.Ctx)
	if err != nil {
		return err
	}
	session, err := ctx.Session()
	if err != nil {
		return err
	}
	guest, err := local.GuestMode(ctx.Ctx)
	if err != nil {
		return err
	}

	switch {
	case session.SignedIn():
		ctx.Printf("Signed in:  %s\n", session.Scope)
	case guest:
		ctx.Println("Signed in:  no (guest mode)")
	default:
		ctx.Println("Signed in:  no")
	}
	ctx.Printf("Local data: %s\n", local.Path())

	repo, err := ctx.Repository()
	if err != nil {
		ctx.Println(cli.WarningStyle.Render(fmt.Sprintf("Storage:    unavailable (%v)", err)))
		return nil
	}
	habits, err := repo.ListHabits(ctx.Ctx)
	if err != nil {
		return err
	}
	ctx.Printf("Storage:    %s, %d habit(s)\n", repo.Backend(), len(habits))
	return nil
}
