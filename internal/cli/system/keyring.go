package system

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/storage/postgres"
)

type KeyringCmd struct {
	Set    KeyringSetCmd    `cmd:"" help:"Store the remote database DSN in the OS keyring."`
	Get    KeyringGetCmd    `cmd:"" help:"Show the stored DSN with its password masked."`
	Delete KeyringDeleteCmd `cmd:"" help:"Remove the stored DSN."`
	Status KeyringStatusCmd `cmd:"" help:"Check keyring availability." default:"1"`
}

// KeyringSetCmd stores the remote DSN in the OS keyring
type KeyringSetCmd struct {
	DSN string `arg:"" help:"PostgreSQL connection string."`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	if !strings.HasPrefix(cmd.DSN, "postgres://") &&
		!strings.HasPrefix(cmd.DSN, "postgresql://") &&
		!strings.Contains(cmd.DSN, "host=") {
		return errors.New("DSN must be a valid PostgreSQL connection string")
	}

	if _, err := postgres.ValidateConnString(cmd.DSN); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		// The keyring is encrypted, so an embedded password is tolerated here.
		ctx.Println("⚠️  Warning: the DSN contains an embedded password.")
		ctx.Println("   It is stored as-is in the encrypted OS keyring.")
	}

	if err := keyring.SetRemoteDSN(cmd.DSN); err != nil {
		return err
	}
	ctx.Println("✓ Remote DSN stored in OS keyring")
	return nil
}

type KeyringGetCmd struct{}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	dsn, err := keyring.GetRemoteDSN()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no DSN found in keyring. Use 'tally keyring set' to store one")
		}
		return err
	}
	ctx.Println(maskPassword(dsn))
	return nil
}

type KeyringDeleteCmd struct{}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteRemoteDSN(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no DSN found in keyring")
		}
		return err
	}
	ctx.Println("✓ Remote DSN deleted from OS keyring")
	return nil
}

type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		ctx.Println("❌ OS keyring is not available on this system")
		return keyring.ErrUnavailable
	}
	ctx.Println("✓ OS keyring is available")

	_, err := keyring.GetRemoteDSN()
	switch {
	case err == nil:
		ctx.Println("✓ Remote DSN is stored in keyring")
	case errors.Is(err, keyring.ErrNotFound):
		ctx.Println("ℹ No remote DSN stored in keyring")
	default:
		return err
	}
	return nil
}

// maskPassword hides the password of a URL or key=value DSN.
func maskPassword(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil || u.User == nil {
			return dsn
		}
		if _, ok := u.User.Password(); !ok {
			return dsn
		}
		scheme, rest, _ := strings.Cut(dsn, "://")
		at := strings.LastIndex(rest, "@")
		return scheme + "://" + u.User.Username() + ":****" + rest[at:]
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=****"
		}
	}
	return strings.Join(fields, " ")
}
