// Package keyring keeps the remote database DSN in the OS credential store so
// that it never has to be written to config.yaml.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/tally/internal/constants"
)

var (
	// ErrNotFound is returned when no DSN is stored
	ErrNotFound = errors.New("remote DSN not found in keyring")
	// ErrUnavailable is returned when the OS keyring cannot be reached
	ErrUnavailable = errors.New("OS keyring is not available")
)

// GetRemoteDSN returns the stored remote DSN.
func GetRemoteDSN() (string, error) {
	dsn, err := keyring.Get(constants.AppName, constants.DefaultKeyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return dsn, nil
}

// SetRemoteDSN stores dsn, replacing any previous value.
func SetRemoteDSN(dsn string) error {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return errors.New("remote DSN cannot be empty")
	}
	if err := keyring.Set(constants.AppName, constants.DefaultKeyringUser, dsn); err != nil {
		return fmt.Errorf("failed to store remote DSN in keyring: %w", err)
	}
	return nil
}

// DeleteRemoteDSN removes the stored DSN.
func DeleteRemoteDSN() error {
	err := keyring.Delete(constants.AppName, constants.DefaultKeyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete remote DSN from keyring: %w", err)
	}
	return nil
}

// IsAvailable reports whether the OS keyring answers a read. Best effort.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "availability-probe")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
