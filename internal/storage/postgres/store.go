// Package postgres is the habit repository of a signed-in session. All rows
// live in one shared database and are partitioned by a scope id, so a Store
// only ever sees the habits of the scope it was opened for.
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/period"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/migrations"
)

var (
	ErrInvalidConnectionString = stderrors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = stderrors.New("connection string must not contain a password")
	ErrNoScope                 = stderrors.New("remote store requires a scope")
)

// Options tune a Store. Scope is required.
type Options struct {
	Scope string
	Keyer period.Keyer
	Now   func() time.Time
}

// Store is the PostgreSQL-backed Repository for one scope
type Store struct {
	connStr string
	scope   string
	db      *sql.DB
	keyer   period.Keyer
	now     func() time.Time
	broker  *storage.Broker
}

var _ storage.Repository = (*Store)(nil)

// New prepares a Store; call Init or Load before use.
func New(connStr string, opts Options) *Store {
	s := &Store{
		connStr: connStr,
		scope:   opts.Scope,
		keyer:   opts.Keyer,
		now:     opts.Now,
	}
	if s.keyer.Location == nil {
		s.keyer = period.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.ensureSearchPath()
	s.broker = storage.NewBroker(newNotifier(s))
	return s
}

func (s *Store) ensureSearchPath() {
	if strings.HasPrefix(s.connStr, "postgres://") || strings.HasPrefix(s.connStr, "postgresql://") {
		u, err := url.Parse(s.connStr)
		if err != nil {
			logger.Warn("failed to parse remote connection string", "error", err)
			return
		}
		q := u.Query()
		if q.Get("search_path") == "" {
			q.Set("search_path", constants.AppName)
			u.RawQuery = q.Encode()
			s.connStr = u.String()
		}
		return
	}
	if !hasParam(s.connStr, "search_path") {
		s.connStr = strings.TrimSpace(s.connStr) + " search_path=" + constants.AppName
	}
}

// hasParam reports whether a DSN-style connection string sets key.
func hasParam(connStr, key string) bool {
	for _, part := range strings.Fields(connStr) {
		k, _, ok := strings.Cut(part, "=")
		if ok && strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// hasSSLMode checks URL-style and DSN-style connection strings for sslmode.
func hasSSLMode(connStr string) bool {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		for key := range u.Query() {
			if strings.EqualFold(key, "sslmode") {
				return true
			}
		}
	}
	return hasParam(connStr, "sslmode")
}

// ValidateConnString checks that connStr is a PostgreSQL URI or DSN without
// an embedded password. Passwords belong in ~/.pgpass or PGPASSWORD.
func ValidateConnString(connStr string) (bool, error) {
	if strings.TrimSpace(connStr) == "" {
		return false, fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}

	if _, err := pq.NewConnector(connStr); err != nil {
		return false, fmt.Errorf("%w: invalid connection string format: %v", ErrInvalidConnectionString, err)
	}

	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return false, fmt.Errorf("%w: failed to parse connection URL: %v", ErrInvalidConnectionString, err)
		}
		if _, isSet := u.User.Password(); isSet {
			return false, ErrEmbeddedCredentials
		}
		if u.Host == "" && u.User == nil && (u.Path == "" || u.Path == "/") {
			return false, fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
		}
		return true, nil
	}

	if hasParam(connStr, "password") {
		return false, ErrEmbeddedCredentials
	}
	return true, nil
}

// Init connects, creates the schema and applies pending migrations. It
// returns the number of migrations applied.
func (s *Store) Init(ctx context.Context) (int, error) {
	if err := s.connect(ctx, true); err != nil {
		return 0, err
	}
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return 0, errors.Storage("Init", fmt.Errorf("failed to access postgres migrations: %w", err))
	}
	runner := migration.NewRunner(s.db, subFS, migration.DriverPostgres)
	applied, err := runner.ApplyMigrations(ctx, logger.Info)
	if err != nil {
		return applied, classify("Init", fmt.Errorf("failed to run migrations: %w", err))
	}
	return applied, nil
}

// Load connects to an initialized database and checks its schema version.
// Data access needs a scope; Init does not.
func (s *Store) Load(ctx context.Context) error {
	if s.scope == "" {
		return errors.Validation("Load", "%s", ErrNoScope)
	}
	if err := s.connect(ctx, false); err != nil {
		return err
	}
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return errors.Storage("Load", fmt.Errorf("failed to access postgres migrations: %w", err))
	}
	runner := migration.NewRunner(s.db, subFS, migration.DriverPostgres)
	if err := runner.ValidateVersion(ctx); err != nil {
		return classify("Load", err)
	}
	return nil
}

func (s *Store) connect(ctx context.Context, createSchema bool) error {
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return errors.Storage("Open", fmt.Errorf("failed to open database: %w", err))
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(s.connStr) {
			err = fmt.Errorf("%w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return classify("Open", fmt.Errorf("failed to connect to database: %w", err))
	}

	if createSchema {
		if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+constants.AppName); err != nil {
			db.Close()
			return classify("Open", fmt.Errorf("failed to create schema: %w", err))
		}
	}

	s.db = db
	logger.Debug("opened remote store", "scope", s.scope)
	return nil
}

func (s *Store) Backend() storage.Backend {
	return storage.BackendRemote
}

// Scope returns the scope id the store is bound to.
func (s *Store) Scope() string {
	return s.scope
}

// Close stops live updates and closes the connection pool.
func (s *Store) Close() error {
	s.broker.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CheckAccess probes the scope with a single-row read so callers can tell a
// denied session from an unreachable server before doing real work.
func (s *Store) CheckAccess(ctx context.Context) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM habits WHERE scope_id = $1 LIMIT 1", s.scope).Scan(&one)
	if err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return classify("CheckAccess", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
