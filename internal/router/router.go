// Package router picks the habit repository for a session: the on-device
// store for guests, the shared remote store for signed-in users.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/metrics"
	"github.com/julianstephens/tally/internal/period"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/storage/postgres"
	"github.com/julianstephens/tally/internal/storage/sqlite"
)

// Session identifies who is signed in. The zero value is a guest.
type Session struct {
	Scope string
}

// SignedIn reports whether the session belongs to an account.
func (s Session) SignedIn() bool {
	return s.Scope != ""
}

// Options configure a Router.
type Options struct {
	DBPath    string
	RemoteDSN string
	Keyer     period.Keyer
	Now       func() time.Time
	Metrics   *metrics.Metrics
}

// Router opens repositories. It owns the local store, which is opened once
// and shared by every repository handed out for a guest session.
type Router struct {
	opts Options

	mu    sync.Mutex
	local *sqlite.Store
}

// New returns a Router; nothing is opened until first use.
func New(opts Options) *Router {
	return &Router{opts: opts}
}

// Local returns the on-device store, opening it on first use.
func (r *Router) Local(ctx context.Context) (*sqlite.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.local != nil {
		return r.local, nil
	}
	s, err := sqlite.Open(ctx, r.opts.DBPath, sqlite.Options{Keyer: r.opts.Keyer, Now: r.opts.Now})
	if err != nil {
		return nil, err
	}
	r.local = s
	return s, nil
}

// Current reads the persisted session.
func (r *Router) Current(ctx context.Context) (Session, error) {
	local, err := r.Local(ctx)
	if err != nil {
		return Session{}, err
	}
	scope, err := local.Session(ctx)
	if err != nil {
		return Session{}, err
	}
	return Session{Scope: scope}, nil
}

// Open returns the repository for session. The result does not follow
// later session changes; callers reopen when the session changes.
func (r *Router) Open(ctx context.Context, session Session) (storage.Repository, error) {
	if !session.SignedIn() {
		local, err := r.Local(ctx)
		if err != nil {
			return nil, err
		}
		logger.Debug("using local repository")
		return metrics.Instrument(borrowed{local}, r.opts.Metrics), nil
	}

	remote, err := r.OpenRemote(ctx, session.Scope)
	if err != nil {
		return nil, err
	}
	logger.Debug("using remote repository", "scope", session.Scope)
	return metrics.Instrument(remote, r.opts.Metrics), nil
}

// OpenRemote connects to the remote store for scope and checks that the
// scope is readable.
func (r *Router) OpenRemote(ctx context.Context, scope string) (*postgres.Store, error) {
	if r.opts.RemoteDSN == "" {
		return nil, errors.Validation("Open", "no remote database configured (set remote.dsn or run 'tally keyring set')")
	}
	remote := postgres.New(r.opts.RemoteDSN, postgres.Options{
		Scope: scope,
		Keyer: r.opts.Keyer,
		Now:   r.opts.Now,
	})
	if err := remote.Load(ctx); err != nil {
		remote.Close()
		return nil, err
	}
	if err := remote.CheckAccess(ctx); err != nil {
		remote.Close()
		return nil, err
	}
	return remote, nil
}

// Close closes the local store if it was opened.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.local == nil {
		return nil
	}
	err := r.local.Close()
	r.local = nil
	return err
}

// borrowed hands out the shared local store without letting callers close it.
type borrowed struct {
	*sqlite.Store
}

func (borrowed) Close() error {
	return nil
}
