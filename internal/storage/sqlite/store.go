// Package sqlite is the on-device habit repository used in guest mode. It
// also keeps the durable client state (guest flag and signed-in scope).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/period"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/migrations"
)

// Options tune a Store. Zero values select the defaults.
type Options struct {
	Keyer        period.Keyer
	Now          func() time.Time
	PollInterval time.Duration
}

// Store is the SQLite-backed Repository
type Store struct {
	path   string
	db     *sql.DB
	keyer  period.Keyer
	now    func() time.Time
	broker *storage.Broker
	watch  *watcher
}

var _ storage.Repository = (*Store)(nil)

// Open creates the database file if needed, applies pending migrations and
// returns a ready Store.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Storage("Open", fmt.Errorf("failed to create data directory: %w", err))
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, errors.Storage("Open", fmt.Errorf("failed to open database: %w", err))
	}
	db.SetMaxOpenConns(4)

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, errors.Storage("Open", fmt.Errorf("failed to run migrations: %w", err))
	}

	s := &Store{
		path:  path,
		db:    db,
		keyer: opts.Keyer,
		now:   opts.Now,
	}
	if s.keyer.Location == nil {
		s.keyer = period.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = constants.WatchPollInterval
	}
	s.watch = newWatcher(s, interval)
	s.broker = storage.NewBroker(s.watch)

	logger.Debug("opened local store", "path", path)
	return s, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	runner := migration.NewRunner(db, subFS, migration.DriverSQLite)
	_, err = runner.ApplyMigrations(ctx, logger.Info)
	return err
}

func (s *Store) Backend() storage.Backend {
	return storage.BackendLocal
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close stops live updates and closes the database.
func (s *Store) Close() error {
	s.broker.Close()
	return s.db.Close()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// wrap classifies a database failure. SQLite has no permission concept, so
// everything that is not a missing row is a storage error.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.KindOf(err) != errors.KindUnknown {
		return err
	}
	return errors.Storage(op, err)
}
