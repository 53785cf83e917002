package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
)

func (s *Store) Subscribe(ctx context.Context, fn storage.Listener) (storage.Unsubscribe, error) {
	return s.broker.Subscribe(fn, func() (uint64, []models.Habit, error) {
		gen := s.broker.Mark()
		habits, err := listHabits(ctx, s.db)
		return gen, habits, wrap("Subscribe", err)
	})
}

// watcher publishes the habit list whenever the database changes. Commits
// from other processes are seen by polling PRAGMA data_version on a pinned
// connection; writes made through this Store nudge it directly.
type watcher struct {
	store    *Store
	interval time.Duration
	nudge    chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newWatcher(s *Store, interval time.Duration) *watcher {
	return &watcher{
		store:    s,
		interval: interval,
		nudge:    make(chan struct{}, 1),
	}
}

// Nudge asks for a prompt publish. It never blocks.
func (w *watcher) Nudge() {
	select {
	case w.nudge <- struct{}{}:
	default:
	}
}

func (w *watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	// Drop nudges from writes made while nobody was listening.
	select {
	case <-w.nudge:
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
}

func (w *watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (w *watcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	conn, err := w.store.db.Conn(ctx)
	if err != nil {
		logger.Warn("change polling disabled", "error", err)
	} else {
		defer conn.Close()
	}
	last := dataVersion(ctx, conn)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.nudge:
			last = dataVersion(ctx, conn)
			w.publish(ctx)
		case <-ticker.C:
			if conn == nil {
				continue
			}
			v := dataVersion(ctx, conn)
			if v != last {
				last = v
				w.publish(ctx)
			}
		}
	}
}

func (w *watcher) publish(ctx context.Context) {
	gen := w.store.broker.Mark()
	habits, err := listHabits(ctx, w.store.db)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("failed to reload habits for subscribers", "error", err)
		}
		return
	}
	w.store.broker.Publish(gen, habits)
}

func dataVersion(ctx context.Context, conn *sql.Conn) int64 {
	if conn == nil {
		return 0
	}
	var v int64
	if err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0
	}
	return v
}
