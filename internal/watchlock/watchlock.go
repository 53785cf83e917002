// Package watchlock keeps a single `tally watch` running per data directory.
package watchlock

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ps "github.com/mitchellh/go-ps"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
)

var (
	findProcessFunc = ps.FindProcess
	getpidFunc      = os.Getpid
)

// ErrHeld is returned when another live tally process owns the lock.
var ErrHeld = stderrors.New("another tally watch is already running")

// Lock is a held lockfile.
type Lock struct {
	path string
	pid  int
}

// Acquire takes the lock in dir. A lockfile left by a process that has
// exited, or whose pid now belongs to something other than tally, is
// replaced.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	path := filepath.Join(dir, constants.WatchLockfileName)
	pid := getpidFunc()

	if owner, err := readOwner(path); err == nil {
		if owner != pid && isTally(owner) {
			return nil, fmt.Errorf("%w (pid %d)", ErrHeld, owner)
		}
		logger.Info("removing stale watch lock", "path", path, "pid", owner)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
	} else if !os.IsNotExist(err) {
		logger.Warn("replacing unreadable watch lock", "path", path, "error", err)
		_ = os.Remove(path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("failed to create lock: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(pid)); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write lock: %w", err)
	}
	return &Lock{path: path, pid: pid}, nil
}

// Release removes the lockfile if this process still owns it.
func (l *Lock) Release() error {
	owner, err := readOwner(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if owner != l.pid {
		return nil
	}
	return os.Remove(l.path)
}

// Path returns the lockfile path.
func (l *Lock) Path() string {
	return l.path
}

func readOwner(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, fmt.Errorf("lockfile is malformed: %w", err)
	}
	return pid, nil
}

func isTally(pid int) bool {
	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return false
	}
	return strings.HasPrefix(process.Executable(), constants.AppName)
}
